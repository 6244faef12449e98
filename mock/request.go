package mock

import (
	"fmt"
	"time"

	"gitlab.com/xhrshim/xhrk"
)

// Call made on a mock request
type Call struct {
	Method string
	Args   []interface{}
}

// Request is a scriptable native request. Every Fn can be replaced, the
// defaults behave like a request that never touches the network.
type Request struct {
	*xhrk.Listeners

	Calls []Call

	OpenFn     func(method, url string, async bool, user, password string) error
	OpenCalled bool

	SendFn     func(body []byte) error
	SendCalled bool

	SetRequestHeaderFn     func(name, value string) error
	SetRequestHeaderCalled bool

	AbortFn     func() error
	AbortCalled bool

	GetAllResponseHeadersFn     func() (string, error)
	GetAllResponseHeadersCalled bool

	GetResponseHeaderFn     func(name string) (string, bool, error)
	GetResponseHeaderCalled bool

	OverrideMimeTypeFn     func(mime string) error
	OverrideMimeTypeCalled bool

	State           xhrk.ReadyState
	StatusCode      int
	StatusMessage   string
	Body            []byte
	Document        string
	HasDocument     bool
	Type            string
	URL             string
	TimeoutValue    time.Duration
	Credentials     bool
	ResponseHeaders map[string]string
	UploadTarget    *xhrk.Listeners
}

// MakeMockRequest with default behaviour: open moves to OPENED, everything
// else succeeds without side effects.
func MakeMockRequest() *Request {
	r := &Request{
		Listeners:       xhrk.NewListeners(),
		Calls:           make([]Call, 0),
		ResponseHeaders: make(map[string]string),
		UploadTarget:    xhrk.NewListeners(),
	}
	r.OpenFn = func(method, url string, async bool, user, password string) error {
		r.State = xhrk.Opened
		return nil
	}
	r.SendFn = func(body []byte) error {
		return nil
	}
	r.SetRequestHeaderFn = func(name, value string) error {
		return nil
	}
	r.AbortFn = func() error {
		return nil
	}
	r.GetAllResponseHeadersFn = func() (string, error) {
		out := ""
		for k, v := range r.ResponseHeaders {
			out += k + ": " + v + "\r\n"
		}
		return out, nil
	}
	r.GetResponseHeaderFn = func(name string) (string, bool, error) {
		v, ok := r.ResponseHeaders[name]
		return v, ok, nil
	}
	r.OverrideMimeTypeFn = func(mime string) error {
		return nil
	}
	return r
}

// MakeMockFactory returns a factory and a pointer to the requests it made
func MakeMockFactory() (xhrk.Factory, *[]*Request) {
	made := make([]*Request, 0)
	return func() xhrk.Request {
		r := MakeMockRequest()
		made = append(made, r)
		return r
	}, &made
}

func (r *Request) String() string {
	return "[object XMLHttpRequest]"
}

func (r *Request) record(method string, args ...interface{}) {
	r.Calls = append(r.Calls, Call{Method: method, Args: args})
}

// CallCount for method
func (r *Request) CallCount(method string) int {
	n := 0
	for _, c := range r.Calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (r *Request) Open(method, url string, async bool, user, password string) error {
	r.OpenCalled = true
	r.record("open", method, url, async, user, password)
	return r.OpenFn(method, url, async, user, password)
}

func (r *Request) Send(body []byte) error {
	r.SendCalled = true
	r.record("send", body)
	return r.SendFn(body)
}

func (r *Request) SetRequestHeader(name, value string) error {
	r.SetRequestHeaderCalled = true
	r.record("setRequestHeader", name, value)
	return r.SetRequestHeaderFn(name, value)
}

func (r *Request) Abort() error {
	r.AbortCalled = true
	r.record("abort")
	return r.AbortFn()
}

func (r *Request) GetAllResponseHeaders() (string, error) {
	r.GetAllResponseHeadersCalled = true
	r.record("getAllResponseHeaders")
	return r.GetAllResponseHeadersFn()
}

func (r *Request) GetResponseHeader(name string) (string, bool, error) {
	r.GetResponseHeaderCalled = true
	r.record("getResponseHeader", name)
	return r.GetResponseHeaderFn(name)
}

func (r *Request) OverrideMimeType(mime string) error {
	r.OverrideMimeTypeCalled = true
	r.record("overrideMimeType", mime)
	return r.OverrideMimeTypeFn(mime)
}

func (r *Request) ReadyState() xhrk.ReadyState { return r.State }
func (r *Request) Status() int { return r.StatusCode }
func (r *Request) StatusText() string { return r.StatusMessage }
func (r *Request) ResponseText() string { return string(r.Body) }
func (r *Request) ResponseXML() (string, bool) { return r.Document, r.HasDocument }
func (r *Request) Response() []byte { return r.Body }
func (r *Request) ResponseType() string { return r.Type }
func (r *Request) ResponseURL() string { return r.URL }
func (r *Request) Timeout() time.Duration { return r.TimeoutValue }
func (r *Request) WithCredentials() bool { return r.Credentials }
func (r *Request) Upload() xhrk.EventTarget { return r.UploadTarget }

func (r *Request) SetResponseType(responseType string) error {
	r.record("responseType", responseType)
	r.Type = responseType
	return nil
}

func (r *Request) SetTimeout(timeout time.Duration) error {
	r.record("timeout", timeout)
	r.TimeoutValue = timeout
	return nil
}

func (r *Request) SetWithCredentials(withCredentials bool) error {
	r.record("withCredentials", withCredentials)
	r.Credentials = withCredentials
	return nil
}

// EventRecorder collects dispatched events in order
type EventRecorder struct {
	Events []*xhrk.Event
	States []xhrk.ReadyState
}

// Listen for every known event type on target
func (e *EventRecorder) Listen(target xhrk.Request) {
	for _, t := range xhrk.EventTypes {
		target.AddEventListener(t, func(evt *xhrk.Event) {
			e.Events = append(e.Events, evt)
			if evt.Target != nil {
				e.States = append(e.States, evt.Target.ReadyState())
			} else {
				e.States = append(e.States, target.ReadyState())
			}
		})
	}
}

// Types of the recorded events
func (e *EventRecorder) Types() []xhrk.EventType {
	types := make([]xhrk.EventType, len(e.Events))
	for i, evt := range e.Events {
		types[i] = evt.Type
	}
	return types
}

// Count of events of eventType
func (e *EventRecorder) Count(eventType xhrk.EventType) int {
	n := 0
	for _, evt := range e.Events {
		if evt.Type == eventType {
			n++
		}
	}
	return n
}

func (e *EventRecorder) String() string {
	return fmt.Sprintf("%v", e.Types())
}

// Observer records captures
type Observer struct {
	Captures []*xhrk.Capture
}

// Observe appends capture
func (o *Observer) Observe(capture *xhrk.Capture) {
	o.Captures = append(o.Captures, capture)
}

// Kinds of the recorded captures
func (o *Observer) Kinds() []xhrk.CaptureKind {
	kinds := make([]xhrk.CaptureKind, len(o.Captures))
	for i, c := range o.Captures {
		kinds[i] = c.Kind
	}
	return kinds
}
