// Copyright 2025 Gavel Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/gavelhq/gavel/database/plugin"
	"github.com/gavelhq/gavel/internal/config"
	"github.com/gavelhq/gavel/internal/version"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const programName = "gavel"

var rootFlags = struct {
	debug      bool
	configFile string
}{}

// maxprocsLog adapts the printf-style logging that maxprocs expects to slog.
func maxprocsLog(format string, v ...any) {
	slog.Info(fmt.Sprintf(format, v...),
		"component", programName,
	)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	source := false
	if rootFlags.debug {
		level = slog.LevelDebug
		source = true
	}
	logger := slog.New(
		slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			AddSource: source,
			Level:     level,
		}),
	)
	slog.SetDefault(logger)
	// Size GOMAXPROCS from the container CPU quota. The undo func is
	// useless in a process that runs until exit.
	if _, err := maxprocs.Set(maxprocs.Logger(maxprocsLog)); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
	logger.Info(
		"starting",
		"program", programName,
		"version", version.GetVersionString(),
	)
	return logger
}

// mustConfig pulls the resolved configuration out of the command context.
// PersistentPreRunE stores it there, so a miss means the command tree is
// wired wrong.
func mustConfig(cmd *cobra.Command) *config.Config {
	cfg := config.FromContext(cmd.Context())
	if cfg == nil {
		slog.Error("configuration missing from command context")
		os.Exit(1)
	}
	return cfg
}

func pluginList(pluginType plugin.PluginType) string {
	var b strings.Builder
	for _, p := range plugin.GetPlugins(pluginType) {
		fmt.Fprintf(&b, "  %-12s%s\n", p.Name, p.Description)
	}
	return b.String()
}

// printRequestedPluginLists handles the 'list' sentinel on the plugin
// selection flags. It reports whether anything was printed, in which case
// the caller should exit instead of starting the engine.
func printRequestedPluginLists(blobPlugin, metadataPlugin string) bool {
	printed := false
	if blobPlugin == "list" {
		fmt.Printf("Blob store plugins:\n%s", pluginList(plugin.PluginTypeBlob))
		printed = true
	}
	if metadataPlugin == "list" {
		if printed {
			fmt.Println()
		}
		fmt.Printf(
			"Metadata store plugins:\n%s",
			pluginList(plugin.PluginTypeMetadata),
		)
		printed = true
	}
	return printed
}

func listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the available storage plugins",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf(
				"Blob store plugins:\n%s\nMetadata store plugins:\n%s",
				pluginList(plugin.PluginTypeBlob),
				pluginList(plugin.PluginTypeMetadata),
			)
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use: programName,
		Run: func(cmd *cobra.Command, args []string) {
			serveRun(cmd, args, mustConfig(cmd))
		},
	}

	rootCmd.PersistentFlags().
		BoolVarP(&rootFlags.debug, "debug", "D", false, "log at debug level")
	rootCmd.PersistentFlags().
		StringVar(&rootFlags.configFile, "config", "", "config file to load")
	rootCmd.PersistentFlags().
		StringP("blob", "b", config.DefaultBlobPlugin, "blob store plugin, or 'list' to print the choices")
	rootCmd.PersistentFlags().
		StringP("metadata", "m", config.DefaultMetadataPlugin, "metadata store plugin, or 'list' to print the choices")

	// Every registered plugin contributes its own flags
	if err := plugin.PopulateCmdlineOptions(rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register plugin flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		flags := cmd.Root().PersistentFlags()
		blobPlugin, _ := flags.GetString("blob")
		metadataPlugin, _ := flags.GetString("metadata")

		if printRequestedPluginLists(blobPlugin, metadataPlugin) {
			os.Exit(0)
		}

		cfg, err := config.LoadConfig(rootFlags.configFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		// Flags win over the config file
		if blobPlugin != config.DefaultBlobPlugin {
			cfg.BlobPlugin = blobPlugin
		}
		if metadataPlugin != config.DefaultMetadataPlugin {
			cfg.MetadataPlugin = metadataPlugin
		}
		cmd.SetContext(config.WithContext(cmd.Context(), cfg))
		return nil
	}

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(devCommand())
	rootCmd.AddCommand(listCommand())
	rootCmd.AddCommand(versionCommand())

	if err := rootCmd.Execute(); err != nil {
		// Cobra has already printed the error
		os.Exit(1)
	}
}
