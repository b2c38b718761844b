// Package registry tracks which mDNS service instances have already been seen.
//
// The registry is the deduplication source of truth for discovery: a key is
// added when a live SRV record is first processed and removed when a goodbye
// (TTL=0) record for the same key arrives.
package registry

import (
	"fmt"
	"strings"
	"sync"
)

// ServiceKey builds the registry key for a service instance: the lower-cased
// owner name without its trailing dot, a colon, and the SRV port.
//
//	ServiceKey("VRChat-Client-1._oscjson._tcp.local.", 9001)
//	// "vrchat-client-1._oscjson._tcp.local:9001"
func ServiceKey(name string, port uint16) string {
	return fmt.Sprintf("%s:%d", strings.ToLower(strings.TrimSuffix(name, ".")), port)
}

// ServiceRegistry is a set of service keys safe for concurrent use.
type ServiceRegistry struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// New creates an empty registry.
func New() *ServiceRegistry {
	return &ServiceRegistry{keys: make(map[string]struct{})}
}

// Add inserts key. It reports whether the key was newly added, which lets the
// discovery path check-and-insert in one step.
func (r *ServiceRegistry) Add(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.keys[key]; ok {
		return false
	}
	r.keys[key] = struct{}{}
	return true
}

// Remove deletes key. Removing an absent key is a no-op.
func (r *ServiceRegistry) Remove(key string) {
	r.mu.Lock()
	delete(r.keys, key)
	r.mu.Unlock()
}

// Contains reports whether key is present.
func (r *ServiceRegistry) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.keys[key]
	return ok
}

// Len returns the number of keys.
func (r *ServiceRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
