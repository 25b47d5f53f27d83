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

package config

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gavelhq/gavel/database/plugin"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "gavel.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

const (
	DefaultBlobPlugin     = "badger"
	DefaultMetadataPlugin = "sqlite"
)

// RunMode represents the operational mode of the gavel engine
type RunMode string

const (
	RunModeServe RunMode = "serve" // Engine with external height feed (default)
	RunModeDev   RunMode = "dev"   // Development mode (tip advances on a local timer)
)

// Valid returns true if the RunMode is a known valid mode
func (m RunMode) Valid() bool {
	switch m {
	case RunModeServe, RunModeDev, "":
		return true
	default:
		return false
	}
}

// IsDevMode returns true if the mode enables development behaviors
func (m RunMode) IsDevMode() bool {
	return m == RunModeDev
}

type tempConfig struct {
	Config   *Config                   `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	MetadataPlugin      string   `yaml:"metadataPlugin"      envconfig:"GAVEL_DATABASE_METADATA_PLUGIN"`
	BlobPlugin          string   `yaml:"blobPlugin"          envconfig:"GAVEL_DATABASE_BLOB_PLUGIN"`
	DatabasePath        string   `yaml:"databasePath"                                                   split_words:"true"`
	BindAddr            string   `yaml:"bindAddr"                                                       split_words:"true"`
	ShutdownTimeout     string   `yaml:"shutdownTimeout"                                                split_words:"true"`
	MaintenanceSchedule string   `yaml:"maintenanceSchedule"                                            split_words:"true"`
	DevTickInterval     string   `yaml:"devTickInterval"                                                split_words:"true"`
	PrivilegedActors    []string `yaml:"privilegedActors"                                               split_words:"true"`
	RunMode             RunMode  `yaml:"runMode"             envconfig:"GAVEL_RUN_MODE"`
	// Governance policy knobs (0 = use engine default)
	QuorumBps                  uint64 `yaml:"quorumBps"                  split_words:"true"`
	ProposerThresholdBps       uint64 `yaml:"proposerThresholdBps"       split_words:"true"`
	VotingDelay                uint64 `yaml:"votingDelay"                split_words:"true"`
	StandardVotingPeriod       uint64 `yaml:"standardVotingPeriod"       split_words:"true"`
	EmergencyVotingPeriod      uint64 `yaml:"emergencyVotingPeriod"      split_words:"true"`
	ConstitutionalVotingPeriod uint64 `yaml:"constitutionalVotingPeriod" split_words:"true"`
	UpgradeVotingPeriod        uint64 `yaml:"upgradeVotingPeriod"        split_words:"true"`
	StandardQueueDelay         uint64 `yaml:"standardQueueDelay"         split_words:"true"`
	EmergencyQueueDelay        uint64 `yaml:"emergencyQueueDelay"        split_words:"true"`
	ConstitutionalQueueDelay   uint64 `yaml:"constitutionalQueueDelay"   split_words:"true"`
	MinDelay                   uint64 `yaml:"minDelay"                   split_words:"true"`
	EmergencyMinDelay          uint64 `yaml:"emergencyMinDelay"          split_words:"true"`
	UpgradeDelay               uint64 `yaml:"upgradeDelay"               split_words:"true"`
	EmergencyUpgradeDelay      uint64 `yaml:"emergencyUpgradeDelay"      split_words:"true"`
	UpgradeExecutionWindow     uint64 `yaml:"upgradeExecutionWindow"     split_words:"true"`
	ApiPort                    uint   `yaml:"apiPort"                    split_words:"true"`
	MetricsPort                uint   `yaml:"metricsPort"                split_words:"true"`
	Tracing                    bool   `yaml:"tracing"`
	TracingStdout              bool   `yaml:"tracingStdout"              split_words:"true"`
}

// ApiListenAddress returns the governance API listen address, or an empty
// string when the API listener is disabled (apiPort 0)
func (c *Config) ApiListenAddress() string {
	if c.ApiPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.BindAddr, c.ApiPort)
}

// MetricsListenAddress returns the metrics listen address, or an empty
// string when the metrics listener is disabled (metricsPort 0)
func (c *Config) MetricsListenAddress() string {
	if c.MetricsPort == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.BindAddr, c.MetricsPort)
}

var globalConfig = &Config{
	BindAddr:        "0.0.0.0",
	DatabasePath:    ".gavel",
	BlobPlugin:      DefaultBlobPlugin,
	MetadataPlugin:  DefaultMetadataPlugin,
	RunMode:         RunModeServe,
	ShutdownTimeout: DefaultShutdownTimeout,
	ApiPort:         3000,
	MetricsPort:     2112,
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.gavel/gavel.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".gavel", "gavel.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/gavel/gavel.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/gavel/gavel.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		// First unmarshal into temp config to handle plugin sections
		var tempCfg tempConfig
		err = yaml.Unmarshal(buf, &tempCfg)
		if err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}

		// If config section exists, use it for main config
		if tempCfg.Config != nil {
			// Overlay config values onto existing defaults
			configBytes, err := yaml.Marshal(tempCfg.Config)
			if err != nil {
				return nil, fmt.Errorf("re-encode config section: %w", err)
			}
			err = yaml.Unmarshal(configBytes, globalConfig)
			if err != nil {
				return nil, fmt.Errorf("parse config section: %w", err)
			}
		} else {
			// Otherwise treat the whole file as the main config
			err = yaml.Unmarshal(buf, globalConfig)
			if err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}

		// Gather plugin option sections from both the top-level blob/metadata
		// maps and the database section, then apply them to the registry
		blobSections := map[string]map[string]any{}
		metadataSections := map[string]map[string]any{}
		maps.Copy(blobSections, tempCfg.Blob)
		maps.Copy(metadataSections, tempCfg.Metadata)
		if tempCfg.Database != nil {
			maps.Copy(
				blobSections,
				pluginSections(
					tempCfg.Database.Blob,
					&globalConfig.BlobPlugin,
				),
			)
			maps.Copy(
				metadataSections,
				pluginSections(
					tempCfg.Database.Metadata,
					&globalConfig.MetadataPlugin,
				),
			)
		}
		if err := applyPluginSections(
			plugin.PluginTypeBlob,
			blobSections,
		); err != nil {
			return nil, fmt.Errorf("apply blob plugin config: %w", err)
		}
		if err := applyPluginSections(
			plugin.PluginTypeMetadata,
			metadataSections,
		); err != nil {
			return nil, fmt.Errorf("apply metadata plugin config: %w", err)
		}
	}
	// Environment overrides the file
	err := envconfig.Process("gavel", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	err = processPluginEnvVars()
	if err != nil {
		return nil, fmt.Errorf("apply plugin env vars: %w", err)
	}

	// Validate and default RunMode
	if !globalConfig.RunMode.Valid() {
		return nil, fmt.Errorf(
			"invalid runMode: %q (must be 'serve' or 'dev')",
			globalConfig.RunMode,
		)
	}
	if globalConfig.RunMode == "" {
		globalConfig.RunMode = RunModeServe
	}

	return globalConfig, nil
}

func GetConfig() *Config {
	return globalConfig
}

// pluginSections splits a database config section into per-plugin option
// maps. A "plugin" key selects the active plugin; every other key must be
// a map of options for the named plugin
func pluginSections(
	section map[string]any,
	activePlugin *string,
) map[string]map[string]any {
	out := map[string]map[string]any{}
	for k, v := range section {
		if k == "plugin" {
			if pluginName, ok := v.(string); ok {
				*activePlugin = pluginName
			}
			continue
		}
		options, ok := v.(map[string]any)
		if !ok {
			fmt.Fprintf(
				os.Stderr,
				"warning: skipping config entry %q: expected map, got %T\n",
				k,
				v,
			)
			continue
		}
		out[k] = options
	}
	return out
}

// applyPluginSections writes per-plugin option maps into the plugin
// registry
func applyPluginSections(
	pluginType plugin.PluginType,
	sections map[string]map[string]any,
) error {
	for pluginName, options := range sections {
		for optName, value := range options {
			if err := plugin.SetPluginOption(
				pluginType,
				pluginName,
				optName,
				value,
			); err != nil {
				return fmt.Errorf(
					"%s plugin %s: option %s: %w",
					plugin.PluginTypeName(pluginType),
					pluginName,
					optName,
					err,
				)
			}
		}
	}
	return nil
}

// processPluginEnvVars applies plugin options from the environment. Env
// var names follow GAVEL_<TYPE>_<PLUGIN>_<OPTION>, for example
// GAVEL_BLOB_BADGER_DATA_DIR
func processPluginEnvVars() error {
	for _, pluginType := range []plugin.PluginType{
		plugin.PluginTypeBlob,
		plugin.PluginTypeMetadata,
	} {
		for _, entry := range plugin.GetPlugins(pluginType) {
			for _, opt := range entry.Options {
				envName := strings.ToUpper(
					strings.ReplaceAll(
						fmt.Sprintf(
							"GAVEL_%s_%s_%s",
							plugin.PluginTypeName(pluginType),
							entry.Name,
							opt.Name,
						),
						"-",
						"_",
					),
				)
				rawValue, ok := os.LookupEnv(envName)
				if !ok {
					continue
				}
				value, err := parseOptionValue(opt.Type, rawValue)
				if err != nil {
					return fmt.Errorf("%s: %w", envName, err)
				}
				if err := plugin.SetPluginOption(
					pluginType,
					entry.Name,
					opt.Name,
					value,
				); err != nil {
					return fmt.Errorf("%s: %w", envName, err)
				}
			}
		}
	}
	return nil
}

func parseOptionValue(
	optType plugin.PluginOptionType,
	raw string,
) (any, error) {
	switch optType {
	case plugin.PluginOptionTypeString:
		return raw, nil
	case plugin.PluginOptionTypeBool:
		return strconv.ParseBool(raw)
	case plugin.PluginOptionTypeInt:
		return strconv.Atoi(raw)
	case plugin.PluginOptionTypeUint:
		return strconv.ParseUint(raw, 10, 64)
	default:
		return nil, fmt.Errorf("unknown plugin option type %d", optType)
	}
}
