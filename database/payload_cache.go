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

package database

import (
	"maps"
	"sort"
	"sync/atomic"
)

// payloadCacheData holds entries and access counts together so both maps
// swap atomically and never disagree about membership.
type payloadCacheData struct {
	entries   map[string][]byte
	accessCnt map[string]uint64
}

// accessSampleRate controls how often access counts are updated on Get().
// A value of 4 means ~25% of Gets trigger an access count update, trading
// LFU accuracy for fewer map copies on the read path.
const accessSampleRate = 4

// PayloadCache is a lock-free read-through cache in front of the blob
// store for call batches and proposal descriptions. Blob payloads are
// keyed by the owning record's content hash, so a cached entry can never
// go stale; eviction is approximate LFU with probabilistic counting.
type PayloadCache struct {
	data      atomic.Pointer[payloadCacheData]
	maxSize   int   // max number of entries (0 = unlimited)
	maxBytes  int64 // max memory in bytes (0 = unlimited)
	curBytes  atomic.Int64
	evicting  atomic.Bool
	sampleCnt atomic.Uint64
}

// NewPayloadCache creates a PayloadCache with the given limits. A zero
// maxSize disables the entry-count limit, a zero maxBytes disables the
// memory limit.
func NewPayloadCache(maxSize int, maxBytes int64) *PayloadCache {
	cache := &PayloadCache{
		maxSize:  maxSize,
		maxBytes: maxBytes,
	}
	cache.data.Store(&payloadCacheData{
		entries:   make(map[string][]byte),
		accessCnt: make(map[string]uint64),
	})
	return cache
}

// Get retrieves a cached payload by blob key. The returned slice is a
// copy, safe for the caller to hold or mutate.
func (c *PayloadCache) Get(key []byte) ([]byte, bool) {
	data := c.data.Load()
	if data == nil {
		return nil, false
	}
	value, ok := data.entries[string(key)]
	if ok {
		if c.sampleCnt.Add(1)%accessSampleRate == 0 {
			c.incrementAccess(key)
		}
		return append([]byte(nil), value...), true
	}
	return nil, false
}

// Put adds or updates a payload. Entries larger than 10% of maxBytes are
// skipped so a single oversized payload cannot flush the whole cache.
func (c *PayloadCache) Put(key []byte, value []byte) {
	keyStr := string(key)
	entrySize := int64(len(key) + len(value))

	if c.maxBytes > 0 && entrySize > c.maxBytes/10 {
		return
	}

	// Copy-on-write: build a new combined snapshot with the update and
	// swap it in, retrying on concurrent modification
	for {
		oldData := c.data.Load()

		newEntries := make(map[string][]byte, len(oldData.entries)+1)
		maps.Copy(newEntries, oldData.entries)

		var memDelta int64
		if oldValue, exists := newEntries[keyStr]; exists {
			memDelta = entrySize - int64(len(keyStr)+len(oldValue))
		} else {
			memDelta = entrySize
		}

		valueCopy := make([]byte, len(value))
		copy(valueCopy, value)
		newEntries[keyStr] = valueCopy

		newAccessCnt := make(map[string]uint64, len(oldData.accessCnt)+1)
		maps.Copy(newAccessCnt, oldData.accessCnt)
		newAccessCnt[keyStr]++

		newData := &payloadCacheData{
			entries:   newEntries,
			accessCnt: newAccessCnt,
		}

		if c.data.CompareAndSwap(oldData, newData) {
			if c.maxBytes > 0 {
				c.curBytes.Add(memDelta)
			}
			break
		}
	}

	c.maybeEvict()
}

// incrementAccess bumps the access counter for a key, skipping keys that
// were evicted between the Get and the update.
func (c *PayloadCache) incrementAccess(key []byte) {
	keyStr := string(key)

	for {
		oldData := c.data.Load()
		if oldData == nil {
			return
		}
		if _, exists := oldData.entries[keyStr]; !exists {
			return
		}

		newAccessCnt := make(map[string]uint64, len(oldData.accessCnt))
		maps.Copy(newAccessCnt, oldData.accessCnt)
		newAccessCnt[keyStr]++

		newData := &payloadCacheData{
			entries:   oldData.entries, // entries map is immutable, reuse
			accessCnt: newAccessCnt,
		}

		if c.data.CompareAndSwap(oldData, newData) {
			return
		}
	}
}

// maybeEvict drops the least-frequently-used entries when either limit is
// exceeded, targeting 75% occupancy. Only one goroutine evicts at a time.
func (c *PayloadCache) maybeEvict() {
	data := c.data.Load()
	if data == nil {
		return
	}

	needEvictBySize := c.maxSize > 0 && len(data.entries) > c.maxSize
	needEvictByBytes := c.maxBytes > 0 && c.curBytes.Load() > c.maxBytes
	if !needEvictBySize && !needEvictByBytes {
		return
	}

	if !c.evicting.CompareAndSwap(false, true) {
		return
	}
	defer c.evicting.Store(false)

	for {
		oldData := c.data.Load()
		if oldData == nil {
			return
		}

		var targetSize int
		if c.maxSize > 0 {
			targetSize = c.maxSize * 3 / 4
			if targetSize < 1 {
				targetSize = 1
			}
		}
		var targetBytes int64
		if c.maxBytes > 0 {
			targetBytes = c.maxBytes * 3 / 4
		}

		type entry struct {
			key   string
			count uint64
			size  int64
		}
		entriesList := make([]entry, 0, len(oldData.entries))
		for k, v := range oldData.entries {
			entriesList = append(entriesList, entry{
				key:   k,
				count: oldData.accessCnt[k],
				size:  int64(len(k) + len(v)),
			})
		}
		sort.Slice(entriesList, func(i, j int) bool {
			return entriesList[i].count < entriesList[j].count
		})

		// Walk from most-frequently-used down, keeping entries until a
		// limit would be exceeded
		keysToRemove := make(map[string]bool)
		keptSize := 0
		var keptBytes int64
		for i := len(entriesList) - 1; i >= 0; i-- {
			e := entriesList[i]
			wouldExceedSize := c.maxSize > 0 && keptSize >= targetSize
			wouldExceedBytes := c.maxBytes > 0 && keptBytes+e.size > targetBytes
			if wouldExceedSize || wouldExceedBytes {
				keysToRemove[e.key] = true
			} else {
				keptSize++
				keptBytes += e.size
			}
		}
		if len(keysToRemove) == 0 {
			return
		}

		newEntries := make(map[string][]byte, keptSize)
		newAccessCnt := make(map[string]uint64, keptSize)
		var bytesRemoved int64
		for k, v := range oldData.entries {
			if keysToRemove[k] {
				bytesRemoved += int64(len(k) + len(v))
				continue
			}
			newEntries[k] = v
			newAccessCnt[k] = oldData.accessCnt[k]
		}

		newData := &payloadCacheData{
			entries:   newEntries,
			accessCnt: newAccessCnt,
		}
		if c.data.CompareAndSwap(oldData, newData) {
			if c.maxBytes > 0 {
				c.curBytes.Add(-bytesRemoved)
			}
			return
		}
	}
}
