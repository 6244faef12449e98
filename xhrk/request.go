package xhrk

import "time"

// ReadyState of a request, values match the XMLHttpRequest constants
type ReadyState int8

// revive:disable:var-naming
const (
	Unsent ReadyState = iota
	Opened
	HeadersReceived
	Loading
	Done
)

var readyStateMap = map[ReadyState]string{
	Unsent:          "UNSENT",
	Opened:          "OPENED",
	HeadersReceived: "HEADERS_RECEIVED",
	Loading:         "LOADING",
	Done:            "DONE",
}

func (s ReadyState) String() string {
	if str, ok := readyStateMap[s]; ok {
		return str
	}
	return "INVALID"
}

// Request is the capability set of a native XMLHttpRequest. Every operation
// reports failure as an explicit error value.
type Request interface {
	EventTarget

	// Open initializes the request. An empty user/password means absent.
	Open(method, url string, async bool, user, password string) error
	SetRequestHeader(name, value string) error
	// Send starts the request, a nil body means no body argument was given.
	Send(body []byte) error
	Abort() error
	GetAllResponseHeaders() (string, error)
	// GetResponseHeader returns false if the header is not present (null).
	GetResponseHeader(name string) (string, bool, error)
	OverrideMimeType(mime string) error

	ReadyState() ReadyState
	Status() int
	StatusText() string
	ResponseText() string
	// ResponseXML is the response as a text document, false means null.
	ResponseXML() (string, bool)
	Response() []byte
	ResponseType() string
	SetResponseType(responseType string) error
	ResponseURL() string
	Timeout() time.Duration
	SetTimeout(timeout time.Duration) error
	WithCredentials() bool
	SetWithCredentials(withCredentials bool) error
	// Upload progress target. Upload events are never fired.
	Upload() EventTarget
}

// Factory constructs new requests, the equivalent of `new XMLHttpRequest()`
type Factory func() Request

// Unwrapper is implemented by requests that decorate another request
type Unwrapper interface {
	Unwrap() Request
}

// Innermost follows the Unwrap chain of req down to the request that does
// not decorate another one
func Innermost(req Request) Request {
	for {
		u, ok := req.(Unwrapper)
		if !ok {
			return req
		}
		inner := u.Unwrap()
		if inner == nil {
			return req
		}
		req = inner
	}
}
