package intercept

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	uuid "github.com/satori/go.uuid"
	"gitlab.com/xhrshim/xhrk"
)

// the original implementations, bound to the native request
type originals struct {
	open                  func(method, url string, async bool, user, password string) error
	send                  func(body []byte) error
	setRequestHeader      func(name, value string) error
	abort                 func() error
	getAllResponseHeaders func() (string, error)
	getResponseHeader     func(name string) (string, bool, error)
	overrideMimeType      func(mime string) error
}

// shadowed properties forced by Finish, they take precedence over the
// native values until the request is opened again
type shadow struct {
	readyState   xhrk.ReadyState
	final        bool
	status       int
	statusText   string
	responseText string
}

// Request intercepts a native request. It implements xhrk.Request with the
// contract that no call panics past it: failures of the native request are
// logged, recorded in Err and returned as values.
type Request struct {
	id      string
	shim    *Shim
	native  xhrk.Request
	orig    originals
	methods *Interceder
	meta    *xhrk.Metadata
	shadow  *shadow
	err     error
}

func newRequest(shim *Shim, native xhrk.Request) *Request {
	r := &Request{
		id:      uuid.NewV4().String(),
		shim:    shim,
		native:  native,
		methods: NewInterceder(),
		orig: originals{
			open:                  native.Open,
			send:                  native.Send,
			setRequestHeader:      native.SetRequestHeader,
			abort:                 native.Abort,
			getAllResponseHeaders: native.GetAllResponseHeaders,
			getResponseHeader:     native.GetResponseHeader,
			overrideMimeType:      native.OverrideMimeType,
		},
	}
	r.methods.Intercede(MethodOpen, StorageKey(MethodOpen), r.orig.open, r.Open)
	r.methods.Intercede(MethodSend, StorageKey(MethodSend), r.orig.send, r.Send)
	r.methods.Intercede(MethodSetRequestHeader, StorageKey(MethodSetRequestHeader), r.orig.setRequestHeader, r.SetRequestHeader)
	r.methods.Intercede(MethodAbort, StorageKey(MethodAbort), r.orig.abort, r.Abort)
	r.methods.Intercede(MethodGetAllResponseHeaders, StorageKey(MethodGetAllResponseHeaders), r.orig.getAllResponseHeaders, r.GetAllResponseHeaders)
	r.methods.Intercede(MethodGetResponseHeader, StorageKey(MethodGetResponseHeader), r.orig.getResponseHeader, r.GetResponseHeader)
	r.methods.Intercede(MethodOverrideMimeType, StorageKey(MethodOverrideMimeType), r.orig.overrideMimeType, r.OverrideMimeType)
	return r
}

// ID of this request
func (r *Request) ID() string {
	return r.id
}

// Unwrap returns the native request
func (r *Request) Unwrap() xhrk.Request {
	return r.native
}

// String returns the native request's string form
func (r *Request) String() string {
	native := xhrk.Innermost(r.native)
	if s, ok := native.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", native)
}

// Methods returns the interception records of this request
func (r *Request) Methods() []MethodRecord {
	return r.methods.Records()
}

// Original implementation of the method name
func (r *Request) Original(name string) (interface{}, bool) {
	return r.methods.Original(StorageKey(name))
}

// Metadata recorded for the request, nil until Open or SetRequestHeader
func (r *Request) Metadata() *xhrk.Metadata {
	return r.meta
}

// Err is the last failure observed on this request
func (r *Request) Err() error {
	return r.err
}

// Open records fresh metadata and delegates to the native open. The method
// defaults to GET and is upper-cased.
func (r *Request) Open(method, url string, async bool, user, password string) error {
	return r.guard(MethodOpen, []interface{}{method, url, async, user, redact(password)}, func() error {
		if method == "" {
			method = "GET"
		}
		method = strings.ToUpper(method)
		r.meta = xhrk.NewMetadata(method, url, async, user, password)
		r.shadow = nil
		r.notify(xhrk.CaptureOpened, "", "", nil)
		return r.orig.open(method, url, async, user, password)
	}, nil)
}

// SetRequestHeader delegates first so native validation happens before the
// header is recorded. On failure the error is recorded as the header value.
func (r *Request) SetRequestHeader(name, value string) error {
	meta := r.metadata()
	err := r.guard(MethodSetRequestHeader, []interface{}{name, value}, func() error {
		return r.orig.setRequestHeader(name, value)
	}, nil)
	if err != nil {
		meta.Headers.SetError(name, err)
		return err
	}
	meta.Headers.Append(name, value)
	return nil
}

// Send runs the send handlers and forwards to the native send. A blocked
// request is dropped: the native send is not called and no event will ever
// fire for it, the request stays in its pre-send state. If the native send
// fails the request is finished with a synthetic 500 response.
func (r *Request) Send(body []byte) error {
	meta := r.metadata()
	return r.guard(MethodSend, []interface{}{bodyArg(body)}, func() error {
		c := newSendContext(r, meta, body, r.shim.sendHandlers())
		c.Next()
		if c.IsBlocked() {
			log.Warn().Str("request_id", r.id).Str("url", meta.URL).Str("rule", c.Rule()).Msg("request blocked")
			r.notify(xhrk.CaptureBlocked, c.Rule(), "", nil)
			return nil
		}

		if body != nil {
			meta.Body = body
			meta.HasBody = true
		}
		r.notify(xhrk.CaptureSent, "", "", nil)
		return r.orig.send(body)
	}, r.Finish)
}

// Abort delegates to the native abort
func (r *Request) Abort() error {
	return r.guard(MethodAbort, nil, r.orig.abort, nil)
}

// GetAllResponseHeaders delegates to the native call, on failure it returns
// the error's property dump along with the error.
func (r *Request) GetAllResponseHeaders() (string, error) {
	var headers string
	err := r.guard(MethodGetAllResponseHeaders, nil, func() error {
		var err error
		headers, err = r.orig.getAllResponseHeaders()
		return err
	}, nil)
	if err != nil {
		return xhrk.DumpError(err), err
	}
	return headers, nil
}

// GetResponseHeader delegates to the native call, on failure it returns the
// error message along with the error.
func (r *Request) GetResponseHeader(name string) (string, bool, error) {
	var value string
	var ok bool
	err := r.guard(MethodGetResponseHeader, []interface{}{name}, func() error {
		var err error
		value, ok, err = r.orig.getResponseHeader(name)
		return err
	}, nil)
	if err != nil {
		return err.Error(), true, err
	}
	return value, ok, nil
}

// OverrideMimeType delegates to the native call
func (r *Request) OverrideMimeType(mime string) error {
	return r.guard(MethodOverrideMimeType, []interface{}{mime}, func() error {
		return r.orig.overrideMimeType(mime)
	}, nil)
}

// ReadyState, shadowed after Finish
func (r *Request) ReadyState() xhrk.ReadyState {
	if r.shadow != nil {
		return r.shadow.readyState
	}
	return r.native.ReadyState()
}

// Status, 500 after Finish
func (r *Request) Status() int {
	if r.shadow != nil && r.shadow.final {
		return r.shadow.status
	}
	return r.native.Status()
}

// StatusText, the error message after Finish
func (r *Request) StatusText() string {
	if r.shadow != nil && r.shadow.final {
		return r.shadow.statusText
	}
	return r.native.StatusText()
}

// ResponseText, the error dump after Finish. Bodies of the non-text
// response types are rendered as text instead of reading empty.
func (r *Request) ResponseText() string {
	if r.shadow != nil && r.shadow.final {
		return r.shadow.responseText
	}
	switch r.native.ResponseType() {
	case "document":
		if doc, ok := r.native.ResponseXML(); ok {
			return doc
		}
		return string(r.native.Response())
	case "arraybuffer", "blob", "json":
		return string(r.native.Response())
	}
	return r.native.ResponseText()
}

// ResponseXML is never null: without a native document the response text,
// or the status text when that is empty, is used as a text document
func (r *Request) ResponseXML() (string, bool) {
	if r.shadow != nil && r.shadow.final {
		return r.shadow.responseText, true
	}
	if doc, ok := r.native.ResponseXML(); ok {
		return doc, true
	}
	if text := r.ResponseText(); text != "" {
		return text, true
	}
	return r.native.StatusText(), true
}

// Response body, the error dump after Finish
func (r *Request) Response() []byte {
	if r.shadow != nil && r.shadow.final {
		return []byte(r.shadow.responseText)
	}
	return r.native.Response()
}

// ResponseType of the native request
func (r *Request) ResponseType() string {
	return r.native.ResponseType()
}

// SetResponseType on the native request
func (r *Request) SetResponseType(responseType string) error {
	return r.guard(MethodSetResponseType, []interface{}{responseType}, func() error {
		return r.native.SetResponseType(responseType)
	}, nil)
}

// Upload target of the native request
func (r *Request) Upload() xhrk.EventTarget {
	return r.native.Upload()
}

// ResponseURL of the native request
func (r *Request) ResponseURL() string {
	return r.native.ResponseURL()
}

// Timeout of the native request
func (r *Request) Timeout() time.Duration {
	return r.native.Timeout()
}

// SetTimeout on the native request
func (r *Request) SetTimeout(timeout time.Duration) error {
	return r.guard(MethodSetTimeout, []interface{}{timeout}, func() error {
		return r.native.SetTimeout(timeout)
	}, nil)
}

// WithCredentials of the native request
func (r *Request) WithCredentials() bool {
	return r.native.WithCredentials()
}

// SetWithCredentials on the native request
func (r *Request) SetWithCredentials(withCredentials bool) error {
	return r.guard(MethodSetWithCredentials, []interface{}{withCredentials}, func() error {
		return r.native.SetWithCredentials(withCredentials)
	}, nil)
}

// AddEventListener on the native request
func (r *Request) AddEventListener(eventType xhrk.EventType, listener xhrk.Listener) xhrk.ListenerID {
	return r.native.AddEventListener(eventType, listener)
}

// RemoveEventListener from the native request
func (r *Request) RemoveEventListener(eventType xhrk.EventType, id xhrk.ListenerID) {
	r.native.RemoveEventListener(eventType, id)
}

// SetHandler sets the on<type> handler of the native request
func (r *Request) SetHandler(eventType xhrk.EventType, listener xhrk.Listener) {
	r.native.SetHandler(eventType, listener)
}

// Handler returns the on<type> handler of the native request
func (r *Request) Handler(eventType xhrk.EventType) xhrk.Listener {
	return r.native.Handler(eventType)
}

// DispatchEvent through the native request's listeners
func (r *Request) DispatchEvent(evt *xhrk.Event) bool {
	return r.native.DispatchEvent(evt)
}

// metadata returns the current record, allocating one for requests that
// were never opened through the interceptor
func (r *Request) metadata() *xhrk.Metadata {
	if r.meta == nil {
		r.meta = xhrk.NewMetadata("", "", true, "", "")
	}
	return r.meta
}

// guard is the failure boundary of every intercepted call. A panic or error
// from fn is passed to onFail (if set), logged, stored on the request and
// returned.
func (r *Request) guard(method string, args []interface{}, fn func() error, onFail func(err error)) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = recovered(rec)
		}
		if err == nil {
			return
		}
		if onFail != nil {
			r.safely(method, func() { onFail(err) })
		}
		log.Warn().Err(err).Str("method", method).Str("request_id", r.id).Interface("args", args).Str("request", r.String()).Msg("intercepted call failed")
		r.err = err
		r.notify(xhrk.CaptureFailed, "", method, err)
	}()
	return fn()
}

func (r *Request) safely(method string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Err(recovered(rec)).Str("method", method).Str("request_id", r.id).Msg("failure handler panicked")
		}
	}()
	fn()
}

func (r *Request) notify(kind xhrk.CaptureKind, rule, method string, err error) {
	capture := &xhrk.Capture{
		ID:        uuid.NewV4().String(),
		RequestID: r.id,
		Kind:      kind,
		Observed:  time.Now(),
		Metadata:  r.meta.Clone(),
		Rule:      rule,
		Method:    method,
	}
	if err != nil {
		capture.Error = err.Error()
	}
	r.shim.notify(capture)
}

func recovered(rec interface{}) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return errors.Errorf("%v", rec)
}

func redact(password string) string {
	if password == "" {
		return ""
	}
	return "********"
}

func bodyArg(body []byte) interface{} {
	if body == nil {
		return nil
	}
	return fmt.Sprintf("%d bytes", len(body))
}
