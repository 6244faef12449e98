package intercept

import "sync"

// Namespaces is an opaque key value registry used to make installation
// idempotent when the shim is set up more than once in a process.
type Namespaces struct {
	lock    sync.Mutex
	entries map[string]interface{}
}

var globalNamespaces = NewNamespaces()

// GlobalNamespaces returns the process wide registry
func GlobalNamespaces() *Namespaces {
	return globalNamespaces
}

// NewNamespaces creates an empty registry
func NewNamespaces() *Namespaces {
	return &Namespaces{entries: make(map[string]interface{})}
}

// LoadOrStore returns the existing value for key, or stores and returns the
// result of create. loaded is true if the key was already set.
func (n *Namespaces) LoadOrStore(key string, create func() interface{}) (value interface{}, loaded bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if v, ok := n.entries[key]; ok {
		return v, true
	}
	v := create()
	n.entries[key] = v
	return v, false
}

// Load the value stored for key
func (n *Namespaces) Load(key string) (interface{}, bool) {
	n.lock.Lock()
	defer n.lock.Unlock()
	v, ok := n.entries[key]
	return v, ok
}

// Delete key, only meant for tests and teardown
func (n *Namespaces) Delete(key string) {
	n.lock.Lock()
	defer n.lock.Unlock()
	delete(n.entries, key)
}
