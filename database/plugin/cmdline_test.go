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

package plugin_test

import (
	"testing"

	"github.com/gavelhq/gavel/database/plugin"
	"github.com/spf13/pflag"
)

func TestPopulateCmdlineOptions(t *testing.T) {
	pluginName := "cmdline-test-" + t.Name()
	var dataDir string
	var cacheSize uint64
	var gcEnabled bool

	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "data-dir",
				Type:         plugin.PluginOptionTypeString,
				Description:  "data directory",
				DefaultValue: "/tmp/default",
				Dest:         &dataDir,
			},
			{
				Name:         "cache-size",
				Type:         plugin.PluginOptionTypeUint,
				Description:  "cache size",
				DefaultValue: uint64(1024),
				Dest:         &cacheSize,
			},
			{
				Name:         "gc",
				Type:         plugin.PluginOptionTypeBool,
				Description:  "enable gc",
				DefaultValue: true,
				Dest:         &gcEnabled,
			},
		},
	})

	flags := pflag.NewFlagSet(t.Name(), pflag.ContinueOnError)
	if err := plugin.PopulateCmdlineOptions(flags); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Defaults apply when flags are not passed
	if err := flags.Parse([]string{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataDir != "/tmp/default" {
		t.Errorf("expected default data dir, got %q", dataDir)
	}
	if cacheSize != 1024 {
		t.Errorf("expected default cache size, got %d", cacheSize)
	}
	if !gcEnabled {
		t.Error("expected gc enabled by default")
	}

	// Passed flags write through to the option destinations
	flags2 := pflag.NewFlagSet(t.Name()+"-2", pflag.ContinueOnError)
	if err := plugin.PopulateCmdlineOptions(flags2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := flags2.Parse([]string{
		"--blob-" + pluginName + "-data-dir", "/tmp/other",
		"--blob-" + pluginName + "-cache-size", "2048",
		"--blob-" + pluginName + "-gc=false",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dataDir != "/tmp/other" {
		t.Errorf("expected overridden data dir, got %q", dataDir)
	}
	if cacheSize != 2048 {
		t.Errorf("expected overridden cache size, got %d", cacheSize)
	}
	if gcEnabled {
		t.Error("expected gc disabled")
	}
}

func TestPopulateCmdlineOptionsBadDest(t *testing.T) {
	pluginName := "cmdline-bad-dest-" + t.Name()
	var wrongType int

	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               pluginName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
		Options: []plugin.PluginOption{
			{
				Name:         "broken",
				Type:         plugin.PluginOptionTypeString,
				Description:  "string option with int destination",
				DefaultValue: "x",
				Dest:         &wrongType,
			},
		},
	})

	flags := pflag.NewFlagSet(t.Name(), pflag.ContinueOnError)
	if err := plugin.PopulateCmdlineOptions(flags); err == nil {
		t.Error("expected error for mismatched option destination")
	}
}
