package xhrk

// HeaderValue recorded for a request header. When the native call failed the
// error is recorded in place of a value.
type HeaderValue struct {
	Value string
	Err   error
}

func (h HeaderValue) String() string {
	if h.Err != nil {
		return h.Err.Error()
	}
	return h.Value
}

// IsSet mirrors a truthy check on the recorded value
func (h HeaderValue) IsSet() bool {
	return h.Err != nil || h.Value != ""
}

// HeaderMap is an insertion ordered mapping of header name to value. Names
// are kept exactly as given.
type HeaderMap struct {
	names  []string
	values map[string]HeaderValue
}

// NewHeaderMap creates an empty header map
func NewHeaderMap() *HeaderMap {
	return &HeaderMap{
		names:  make([]string, 0),
		values: make(map[string]HeaderValue),
	}
}

// Get the recorded value for name
func (h *HeaderMap) Get(name string) (HeaderValue, bool) {
	v, ok := h.values[name]
	return v, ok
}

// Set replaces the value for name
func (h *HeaderMap) Set(name string, value HeaderValue) {
	if _, exist := h.values[name]; !exist {
		h.names = append(h.names, name)
	}
	h.values[name] = value
}

// Append joins value to an already recorded value with ", " the way repeated
// HTTP headers combine, otherwise sets it.
func (h *HeaderMap) Append(name, value string) {
	if existing, ok := h.values[name]; ok && existing.IsSet() {
		h.Set(name, HeaderValue{Value: existing.String() + ", " + value})
		return
	}
	h.Set(name, HeaderValue{Value: value})
}

// SetError records err as the value of name
func (h *HeaderMap) SetError(name string, err error) {
	h.Set(name, HeaderValue{Err: err})
}

// Names in insertion order
func (h *HeaderMap) Names() []string {
	names := make([]string, len(h.names))
	copy(names, h.names)
	return names
}

// Len of the header map
func (h *HeaderMap) Len() int {
	return len(h.names)
}

// Map flattens the headers, errors are rendered as their message
func (h *HeaderMap) Map() map[string]string {
	m := make(map[string]string, len(h.names))
	for _, name := range h.names {
		m[name] = h.values[name].String()
	}
	return m
}

// Clone the header map
func (h *HeaderMap) Clone() *HeaderMap {
	c := NewHeaderMap()
	for _, name := range h.names {
		c.Set(name, h.values[name])
	}
	return c
}

// Metadata captured for an outgoing request
type Metadata struct {
	Method   string
	URL      string
	Async    bool
	User     string
	Password string
	Headers  *HeaderMap
	Body     []byte
	HasBody  bool
}

// NewMetadata with an empty header mapping
func NewMetadata(method, url string, async bool, user, password string) *Metadata {
	return &Metadata{
		Method:   method,
		URL:      url,
		Async:    async,
		User:     user,
		Password: password,
		Headers:  NewHeaderMap(),
	}
}

// Clone returns a deep copy so observers can't mutate the live record
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Headers != nil {
		c.Headers = m.Headers.Clone()
	}
	if m.Body != nil {
		c.Body = make([]byte, len(m.Body))
		copy(c.Body, m.Body)
	}
	return &c
}
