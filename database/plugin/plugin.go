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

import "fmt"

type Plugin interface {
	Start() error
	Stop() error
}

// failPlugin defers a constructor error to Start so it surfaces through the
// normal plugin startup path.
type failPlugin struct {
	err error
}

func (p *failPlugin) Start() error {
	return p.err
}

func (p *failPlugin) Stop() error {
	return nil
}

// NewErrorPlugin wraps err in a Plugin whose Start returns it.
func NewErrorPlugin(err error) Plugin {
	return &failPlugin{err: err}
}

// StartPlugin looks up a registered plugin by type and name and starts it.
func StartPlugin(pluginType PluginType, pluginName string) (Plugin, error) {
	p := GetPlugin(pluginType, pluginName)
	if p == nil {
		return nil, fmt.Errorf(
			"no %s plugin registered under %q",
			PluginTypeName(pluginType),
			pluginName,
		)
	}
	if err := p.Start(); err != nil {
		return nil, fmt.Errorf(
			"start %s plugin %q: %w",
			PluginTypeName(pluginType),
			pluginName,
			err,
		)
	}
	return p, nil
}

// SetPluginOption writes a value into a registered plugin's named option.
// Callers use it to override plugin defaults programmatically, for example
// pointing data-dir somewhere else before the plugin starts.
// NOTE: the write goes straight to the option's destination with no
// synchronization, so this must only run during initialization, before any
// plugin is instantiated.
func SetPluginOption(
	pluginType PluginType,
	pluginName string,
	optionName string,
	value any,
) error {
	for i := range pluginEntries {
		p := &pluginEntries[i]
		if p.Type != pluginType || p.Name != pluginName {
			continue
		}
		for _, opt := range p.Options {
			if opt.Name != optionName {
				continue
			}
			switch opt.Type {
			case PluginOptionTypeString:
				return assignOption[string](opt, optionName, value)
			case PluginOptionTypeBool:
				return assignOption[bool](opt, optionName, value)
			case PluginOptionTypeInt:
				return assignOption[int](opt, optionName, value)
			case PluginOptionTypeUint:
				// Config wiring hands over plain ints, accept them
				if intVal, ok := value.(int); ok {
					if intVal < 0 {
						return fmt.Errorf(
							"option %s cannot take a negative value",
							optionName,
						)
					}
					value = uint64(intVal)
				}
				return assignOption[uint64](opt, optionName, value)
			default:
				return fmt.Errorf(
					"option %s has unrecognized type %d",
					optionName,
					opt.Type,
				)
			}
		}
		// The plugin exists but carries no such option. Callers probe
		// options like data-dir across implementations that may not have
		// them, so a miss is not an error.
		return nil
	}
	return fmt.Errorf(
		"no %s plugin registered under %q",
		PluginTypeName(pluginType),
		pluginName,
	)
}

// assignOption stores value into the option's destination after checking
// both sides of the assignment.
func assignOption[T any](
	opt PluginOption,
	optionName string,
	value any,
) error {
	v, ok := value.(T)
	if !ok {
		return fmt.Errorf(
			"option %s wants a %T value, got %T",
			optionName,
			v,
			value,
		)
	}
	if opt.Dest == nil {
		return fmt.Errorf("option %s has no destination", optionName)
	}
	dest, ok := opt.Dest.(*T)
	if !ok {
		return fmt.Errorf(
			"option %s destination is not %T",
			optionName,
			dest,
		)
	}
	if dest == nil {
		return fmt.Errorf(
			"option %s destination is a nil pointer",
			optionName,
		)
	}
	*dest = v
	return nil
}
