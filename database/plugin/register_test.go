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
	"errors"
	"testing"

	"github.com/gavelhq/gavel/database/plugin"
)

type mockPlugin struct {
	started bool
	stopped bool
}

func (m *mockPlugin) Start() error {
	m.started = true
	return nil
}

func (m *mockPlugin) Stop() error {
	m.stopped = true
	return nil
}

// registerMock registers a fresh mock plugin under a test-unique name. The
// registry is global and append-only, so names must not collide across tests.
func registerMock(t *testing.T, pluginType plugin.PluginType) string {
	t.Helper()
	name := "mock-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               pluginType,
		Name:               name,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})
	return name
}

func hasEntry(
	entries []plugin.PluginEntry,
	pluginType plugin.PluginType,
	name string,
) bool {
	for _, entry := range entries {
		if entry.Type == pluginType && entry.Name == name {
			return true
		}
	}
	return false
}

func TestRegisterAndLookup(t *testing.T) {
	name := registerMock(t, plugin.PluginTypeBlob)

	p := plugin.GetPlugin(plugin.PluginTypeBlob, name)
	if p == nil {
		t.Fatal("registered plugin not found")
	}
	if _, ok := p.(*mockPlugin); !ok {
		t.Errorf("expected *mockPlugin, got %T", p)
	}

	// Same name under the other type must not match
	if p := plugin.GetPlugin(plugin.PluginTypeMetadata, name); p != nil {
		t.Errorf("lookup crossed plugin types: %v", p)
	}
	if p := plugin.GetPlugin(plugin.PluginTypeBlob, "missing-"+t.Name()); p != nil {
		t.Errorf("expected nil for unknown plugin, got %v", p)
	}
}

func TestGetPluginsFiltersByType(t *testing.T) {
	blobName := registerMock(t, plugin.PluginTypeBlob)
	metaName := "mock-meta-" + t.Name()
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeMetadata,
		Name:               metaName,
		NewFromOptionsFunc: func() plugin.Plugin { return &mockPlugin{} },
	})

	blobEntries := plugin.GetPlugins(plugin.PluginTypeBlob)
	if !hasEntry(blobEntries, plugin.PluginTypeBlob, blobName) {
		t.Error("blob entry missing from blob listing")
	}
	if hasEntry(blobEntries, plugin.PluginTypeMetadata, metaName) {
		t.Error("metadata entry leaked into blob listing")
	}

	metaEntries := plugin.GetPlugins(plugin.PluginTypeMetadata)
	if !hasEntry(metaEntries, plugin.PluginTypeMetadata, metaName) {
		t.Error("metadata entry missing from metadata listing")
	}
}

func TestPluginTypeName(t *testing.T) {
	for _, tc := range []struct {
		pluginType plugin.PluginType
		want       string
	}{
		{plugin.PluginTypeBlob, "blob"},
		{plugin.PluginTypeMetadata, "metadata"},
		{plugin.PluginType(99), "unknown"},
	} {
		if got := plugin.PluginTypeName(tc.pluginType); got != tc.want {
			t.Errorf("PluginTypeName(%d) = %q, want %q", tc.pluginType, got, tc.want)
		}
	}
}

func TestStartPlugin(t *testing.T) {
	name := registerMock(t, plugin.PluginTypeBlob)

	p, err := plugin.StartPlugin(plugin.PluginTypeBlob, name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mock, ok := p.(*mockPlugin)
	if !ok {
		t.Fatalf("expected *mockPlugin, got %T", p)
	}
	if !mock.started {
		t.Error("StartPlugin did not start the plugin")
	}

	if _, err := plugin.StartPlugin(plugin.PluginTypeBlob, "missing-"+t.Name()); err == nil {
		t.Error("expected error for unknown plugin")
	}
}

func TestStartPluginSurfacesDeferredError(t *testing.T) {
	// Stores that fail construction register an error plugin so the
	// failure surfaces here rather than inside init()
	name := "mock-broken-" + t.Name()
	errBroken := errors.New("bucket not reachable")
	plugin.Register(plugin.PluginEntry{
		Type:               plugin.PluginTypeBlob,
		Name:               name,
		NewFromOptionsFunc: func() plugin.Plugin { return plugin.NewErrorPlugin(errBroken) },
	})

	_, err := plugin.StartPlugin(plugin.PluginTypeBlob, name)
	if !errors.Is(err, errBroken) {
		t.Errorf("expected construction error from Start, got %v", err)
	}
}
