package store

import (
	"fmt"
	"strings"
	"time"

	"gitlab.com/xhrshim/xhrk"
)

// Header recorded for a request, Failed is set when the native call rejected it
type Header struct {
	Name   string `msgpack:"name"`
	Value  string `msgpack:"value"`
	Failed bool   `msgpack:"failed"`
}

// Record is the persisted form of an xhrk.Capture. Passwords are never
// stored.
type Record struct {
	ID        string           `store:"id"`
	RequestID string           `store:"request_id"`
	Kind      xhrk.CaptureKind `store:"kind"`
	Observed  time.Time        `store:"observed"`
	Method    string           `store:"req_method"`
	URL       string           `store:"url"`
	Async     bool             `store:"async"`
	User      string           `store:"user"`
	Headers   []Header         `store:"headers"`
	Body      []byte           `store:"body"`
	HasBody   bool             `store:"has_body"`
	Rule      string           `store:"rule"`
	Call      string           `store:"call"` // intercepted method that failed
	Error     string           `store:"error"`
}

// NewRecord from a capture
func NewRecord(capture *xhrk.Capture) *Record {
	r := &Record{
		ID:        capture.ID,
		RequestID: capture.RequestID,
		Kind:      capture.Kind,
		Observed:  capture.Observed,
		Rule:      capture.Rule,
		Call:      capture.Method,
		Error:     capture.Error,
	}

	meta := capture.Metadata
	if meta == nil {
		return r
	}

	r.Method = meta.Method
	r.URL = meta.URL
	r.Async = meta.Async
	r.User = meta.User
	r.Body = meta.Body
	r.HasBody = meta.HasBody
	if meta.Headers != nil {
		for _, name := range meta.Headers.Names() {
			v, _ := meta.Headers.Get(name)
			r.Headers = append(r.Headers, Header{Name: name, Value: v.String(), Failed: v.Err != nil})
		}
	}
	return r
}

func (r *Record) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s %s %s %s", r.Observed.Format(time.RFC3339Nano), r.RequestID, r.Kind, r.Method, r.URL)
	if r.Rule != "" {
		fmt.Fprintf(&sb, " rule=%s", r.Rule)
	}
	if r.Call != "" {
		fmt.Fprintf(&sb, " call=%s", r.Call)
	}
	if r.Error != "" {
		fmt.Fprintf(&sb, " error=%q", r.Error)
	}
	for _, h := range r.Headers {
		fmt.Fprintf(&sb, "\n\t%s: %s", h.Name, h.Value)
	}
	if r.HasBody {
		fmt.Fprintf(&sb, "\n\tbody: %d bytes", len(r.Body))
	}
	return sb.String()
}
