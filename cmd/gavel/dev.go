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
	"github.com/gavelhq/gavel/internal/config"
	"github.com/spf13/cobra"
)

func devCommand() *cobra.Command {
	var tickInterval string
	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Run with a local ticker advancing the tip (no external height feed)",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := mustConfig(cmd)
			cfg.RunMode = config.RunModeDev
			// CLI flag takes priority over config
			if tickInterval != "" {
				cfg.DevTickInterval = tickInterval
			}
			serveRun(cmd, args, cfg)
		},
	}
	cmd.Flags().StringVar(
		&tickInterval,
		"tick-interval",
		"",
		"how often to advance the tip (e.g. 500ms, 2s)",
	)
	return cmd
}
