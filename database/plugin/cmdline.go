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

package plugin

import (
	"fmt"

	"github.com/spf13/pflag"
)

// PopulateCmdlineOptions registers a command line flag for every option of
// every registered plugin. Flag names follow <type>-<plugin>-<option>, for
// example blob-badger-data-dir
func PopulateCmdlineOptions(flags *pflag.FlagSet) error {
	for i := range pluginEntries {
		entry := &pluginEntries[i]
		for _, opt := range entry.Options {
			flagName := fmt.Sprintf(
				"%s-%s-%s",
				PluginTypeName(entry.Type),
				entry.Name,
				opt.Name,
			)
			switch opt.Type {
			case PluginOptionTypeString:
				dest, ok := opt.Dest.(*string)
				if !ok {
					return fmt.Errorf(
						"invalid destination for option %s",
						flagName,
					)
				}
				defaultValue, _ := opt.DefaultValue.(string)
				flags.StringVar(dest, flagName, defaultValue, opt.Description)
			case PluginOptionTypeBool:
				dest, ok := opt.Dest.(*bool)
				if !ok {
					return fmt.Errorf(
						"invalid destination for option %s",
						flagName,
					)
				}
				defaultValue, _ := opt.DefaultValue.(bool)
				flags.BoolVar(dest, flagName, defaultValue, opt.Description)
			case PluginOptionTypeInt:
				dest, ok := opt.Dest.(*int)
				if !ok {
					return fmt.Errorf(
						"invalid destination for option %s",
						flagName,
					)
				}
				defaultValue, _ := opt.DefaultValue.(int)
				flags.IntVar(dest, flagName, defaultValue, opt.Description)
			case PluginOptionTypeUint:
				dest, ok := opt.Dest.(*uint64)
				if !ok {
					return fmt.Errorf(
						"invalid destination for option %s",
						flagName,
					)
				}
				defaultValue, _ := opt.DefaultValue.(uint64)
				flags.Uint64Var(dest, flagName, defaultValue, opt.Description)
			default:
				return fmt.Errorf(
					"unknown option type %d for option %s",
					opt.Type,
					flagName,
				)
			}
		}
	}
	return nil
}
