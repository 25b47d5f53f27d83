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

package sqlite

import (
	"sync"

	"github.com/gavelhq/gavel/database/plugin"
)

const defaultDataDir = ".gavel"

// registryOpts receives option values written through the plugin registry.
// The embedded mutex keeps instantiation from reading while an option write
// is in flight
var registryOpts = struct {
	sync.RWMutex
	dataDir string
}{
	dataDir: defaultDataDir,
}

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeMetadata,
			Name:               "sqlite",
			Description:        "SQLite relational database",
			NewFromOptionsFunc: newFromRegistry,
			Options: []plugin.PluginOption{
				{
					Name:         "data-dir",
					Type:         plugin.PluginOptionTypeString,
					Description:  "Data directory for sqlite storage",
					DefaultValue: defaultDataDir,
					Dest:         &(registryOpts.dataDir),
				},
			},
		},
	)
}

// newFromRegistry builds the store from the current registry option values
func newFromRegistry() plugin.Plugin {
	registryOpts.RLock()
	dataDir := registryOpts.dataDir
	registryOpts.RUnlock()

	p, err := NewWithOptions(WithDataDir(dataDir))
	if err != nil {
		// Surface the failure from Start() instead of here
		return plugin.NewErrorPlugin(err)
	}
	return p
}
