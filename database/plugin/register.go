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

type PluginType int

const (
	PluginTypeBlob PluginType = iota + 1
	PluginTypeMetadata
)

// PluginTypeName returns a human-readable name for a plugin type
func PluginTypeName(pluginType PluginType) string {
	switch pluginType {
	case PluginTypeBlob:
		return "blob"
	case PluginTypeMetadata:
		return "metadata"
	default:
		return "unknown"
	}
}

type PluginOptionType int

const (
	PluginOptionTypeString PluginOptionType = iota + 1
	PluginOptionTypeBool
	PluginOptionTypeInt
	PluginOptionTypeUint
)

// PluginOption describes a single configurable option for a plugin. Dest
// points at the package-level registry option var the value is written to,
// from command line flags, config files, or SetPluginOption.
type PluginOption struct {
	Dest         any
	DefaultValue any
	Name         string
	Description  string
	Type         PluginOptionType
}

// PluginEntry describes a registered plugin
type PluginEntry struct {
	NewFromOptionsFunc func() Plugin
	Name               string
	Description        string
	Options            []PluginOption
	Type               PluginType
}

// pluginEntries holds all registered plugins. Registration happens from
// package init() functions, so access is not synchronized.
var pluginEntries []PluginEntry

// Register adds a plugin to the registry
func Register(entry PluginEntry) {
	pluginEntries = append(pluginEntries, entry)
}

// GetPlugins returns the registered plugin entries for a type
func GetPlugins(pluginType PluginType) []PluginEntry {
	var ret []PluginEntry
	for _, entry := range pluginEntries {
		if entry.Type == pluginType {
			ret = append(ret, entry)
		}
	}
	return ret
}

// GetPlugin instantiates the named plugin from its current options. It
// returns nil if no plugin matches
func GetPlugin(pluginType PluginType, name string) Plugin {
	for _, entry := range pluginEntries {
		if entry.Type == pluginType && entry.Name == name {
			return entry.NewFromOptionsFunc()
		}
	}
	return nil
}
