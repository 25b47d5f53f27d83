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

package gcs

import (
	"sync"

	"github.com/gavelhq/gavel/database/plugin"
)

// registryOpts receives option values written through the plugin registry.
// There are no defaults, the bucket name is required
var registryOpts = struct {
	sync.RWMutex
	bucket          string
	credentialsFile string
}{}

func init() {
	plugin.Register(
		plugin.PluginEntry{
			Type:               plugin.PluginTypeBlob,
			Name:               "gcs",
			Description:        "Google Cloud Storage blob store",
			NewFromOptionsFunc: newFromRegistry,
			Options: []plugin.PluginOption{
				{
					Name:         "bucket",
					Type:         plugin.PluginOptionTypeString,
					Description:  "GCS bucket name",
					DefaultValue: "",
					Dest:         &(registryOpts.bucket),
				},
				{
					Name:         "credentials-file",
					Type:         plugin.PluginOptionTypeString,
					Description:  "path to service account key file",
					DefaultValue: "",
					Dest:         &(registryOpts.credentialsFile),
				},
			},
		},
	)
}

// newFromRegistry builds the store from the current registry option values
func newFromRegistry() plugin.Plugin {
	registryOpts.RLock()
	opts := []BlobStoreGCSOptionFunc{
		WithBucket(registryOpts.bucket),
		WithCredentialsFile(registryOpts.credentialsFile),
	}
	registryOpts.RUnlock()

	p, err := NewWithOptions(opts...)
	if err != nil {
		// Surface the failure from Start() instead of here
		return plugin.NewErrorPlugin(err)
	}
	return p
}
