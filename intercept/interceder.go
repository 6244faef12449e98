package intercept

import "sort"

// Method names of the intercepted native operations
// revive:disable:var-naming
const (
	MethodOpen                  = "open"
	MethodSend                  = "send"
	MethodSetRequestHeader      = "setRequestHeader"
	MethodAbort                 = "abort"
	MethodGetAllResponseHeaders = "getAllResponseHeaders"
	MethodGetResponseHeader     = "getResponseHeader"
	MethodOverrideMimeType      = "overrideMimeType"
	MethodSetResponseType       = "responseType"
	MethodSetTimeout            = "timeout"
	MethodSetWithCredentials    = "withCredentials"
)

// InterceptedMethods that every intercepted request wraps
var InterceptedMethods = []string{
	MethodOpen,
	MethodSend,
	MethodSetRequestHeader,
	MethodAbort,
	MethodGetAllResponseHeaders,
	MethodGetResponseHeader,
	MethodOverrideMimeType,
}

// StorageKey under which the original implementation of name is kept
func StorageKey(name string) string {
	return "&" + name
}

// MethodRecord of a single interception
type MethodRecord struct {
	Name        string
	Key         string
	Original    interface{}
	Replacement interface{}
}

// Interceder keeps the originals and replacements of intercepted methods.
// Originals live under their storage key and are never listed as methods.
type Interceder struct {
	hidden  map[string]interface{}
	methods map[string]*MethodRecord
}

// NewInterceder creates an empty method table
func NewInterceder() *Interceder {
	return &Interceder{
		hidden:  make(map[string]interface{}),
		methods: make(map[string]*MethodRecord),
	}
}

// Intercede stores original under key and installs replacement as name.
// Returns false without changing anything if key is already present, so a
// method is never wrapped twice.
func (i *Interceder) Intercede(name, key string, original, replacement interface{}) bool {
	if _, exist := i.hidden[key]; exist {
		return false
	}
	i.hidden[key] = original
	i.methods[name] = &MethodRecord{
		Name:        name,
		Key:         key,
		Original:    original,
		Replacement: replacement,
	}
	return true
}

// Original stored under key
func (i *Interceder) Original(key string) (interface{}, bool) {
	v, ok := i.hidden[key]
	return v, ok
}

// Method returns the installed replacement for name
func (i *Interceder) Method(name string) (interface{}, bool) {
	r, ok := i.methods[name]
	if !ok {
		return nil, false
	}
	return r.Replacement, true
}

// Names of the installed methods, sorted
func (i *Interceder) Names() []string {
	names := make([]string, 0, len(i.methods))
	for name := range i.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records of every interception, sorted by name
func (i *Interceder) Records() []MethodRecord {
	records := make([]MethodRecord, 0, len(i.methods))
	for _, name := range i.Names() {
		records = append(records, *i.methods[name])
	}
	return records
}
