package native

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gitlab.com/xhrshim/xhrk"
)

var responseTypes = map[string]struct{}{
	"":            {},
	"arraybuffer": {},
	"blob":        {},
	"document":    {},
	"json":        {},
	"text":        {},
}

// Request is an XMLHttpRequest backed by net/http. State changes happen
// under the lock, events are always dispatched without holding it so
// listeners are free to call back into the request.
type Request struct {
	*xhrk.Listeners
	client *Client
	upload *xhrk.Listeners

	lock sync.Mutex
	// gen is bumped by open and abort, completions of an older generation
	// are dropped
	gen    uint64
	cancel context.CancelFunc

	state           xhrk.ReadyState
	sent            bool
	method          string
	url             string
	async           bool
	user            string
	password        string
	header          http.Header
	timeout         time.Duration
	withCredentials bool
	responseType    string
	mimeOverride    string

	status      int
	statusText  string
	respHeader  http.Header
	body        []byte
	responseURL string
}

func newRequest(client *Client) *Request {
	return &Request{
		Listeners: xhrk.NewListeners(),
		client:    client,
		upload:    xhrk.NewListeners(),
		header:    make(http.Header),
	}
}

func (r *Request) String() string {
	return "[object XMLHttpRequest]"
}

// Open initializes the request, terminating any round trip in flight
func (r *Request) Open(method, rawurl string, async bool, user, password string) error {
	if !isToken(method) {
		return domError(SyntaxError, "'%s' is not a valid HTTP method", method)
	}

	if isForbiddenMethod(method) {
		return domError(SecurityError, "'%s' HTTP method is unsupported", method)
	}

	u, err := r.client.resolve(rawurl)
	if err != nil {
		return err
	}

	if u.User != nil && user == "" && password == "" {
		user = u.User.Username()
		password, _ = u.User.Password()
	}

	r.lock.Lock()
	if !async && r.timeout > 0 {
		r.lock.Unlock()
		return domError(InvalidAccessError, "synchronous requests can not have a timeout")
	}

	cancel := r.cancel
	r.cancel = nil
	r.gen++
	r.method = normalizeMethod(method)
	r.url = u.String()
	r.async = async
	r.user = user
	r.password = password
	r.sent = false
	r.header = make(http.Header)
	r.resetResponse()

	changed := r.state != xhrk.Opened
	r.state = xhrk.Opened
	r.lock.Unlock()

	if cancel != nil {
		cancel()
	}

	if changed {
		r.fire(xhrk.EvtReadyStateChange)
	}
	return nil
}

// SetRequestHeader appends value to the header name. Forbidden names are
// silently ignored.
func (r *Request) SetRequestHeader(name, value string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.state != xhrk.Opened || r.sent {
		return domError(InvalidStateError, "the object's state must be OPENED")
	}

	value = trimHTTPWhitespace(value)
	if !isToken(name) {
		return domError(SyntaxError, "'%s' is not a valid HTTP header field name", name)
	}

	if !isHeaderValue(value) {
		return domError(SyntaxError, "'%s' is not a valid HTTP header field value", value)
	}

	if isForbiddenHeader(name) {
		log.Debug().Str("header", name).Msg("refused to set unsafe header")
		return nil
	}

	key := http.CanonicalHeaderKey(name)
	if existing, ok := r.header[key]; ok && len(existing) > 0 {
		r.header.Set(key, existing[0]+", "+value)
		return nil
	}
	r.header.Set(key, value)
	return nil
}

// Send starts the round trip. Async requests return immediately and complete
// through the client's scheduler, sync requests block until DONE.
func (r *Request) Send(body []byte) error {
	r.lock.Lock()
	if r.state != xhrk.Opened || r.sent {
		r.lock.Unlock()
		return domError(InvalidStateError, "the object's state must be OPENED")
	}

	if r.method == "GET" || r.method == "HEAD" {
		body = nil
	}

	req, err := r.buildRequest(body)
	if err != nil {
		r.lock.Unlock()
		return domError(SyntaxError, "%s", err.Error())
	}

	r.sent = true
	gen := r.gen
	async := r.async
	withCredentials := r.withCredentials
	r.lock.Unlock()

	if !async {
		return r.sendSync(req, gen, withCredentials)
	}

	r.fireProgress(xhrk.EvtLoadStart, 0, 0)
	r.client.scheduler.Go(func() func() {
		res := r.client.roundTrip(req, withCredentials)
		return func() {
			r.complete(gen, res)
		}
	})
	return nil
}

func (r *Request) buildRequest(body []byte) (*http.Request, error) {
	var ctx context.Context
	var cancel context.CancelFunc
	if r.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, reader)
	if err != nil {
		cancel()
		return nil, err
	}

	for name, values := range r.header {
		req.Header[name] = append([]string(nil), values...)
	}

	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "text/plain;charset=UTF-8")
	}

	if r.client.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", r.client.UserAgent)
	}

	if r.user != "" || r.password != "" {
		req.SetBasicAuth(r.user, r.password)
	}

	r.cancel = cancel
	return req, nil
}

func (r *Request) sendSync(req *http.Request, gen uint64, withCredentials bool) error {
	res := r.client.roundTrip(req, withCredentials)

	r.lock.Lock()
	if gen != r.gen {
		r.lock.Unlock()
		return domError(AbortError, "the request was aborted")
	}
	r.release()

	if res.err != nil {
		r.state = xhrk.Done
		r.sent = false
		r.resetResponse()
		r.lock.Unlock()
		if res.timedOut {
			return domError(TimeoutError, "the request timed out")
		}
		return domError(NetworkError, "failed to load %s: %s", req.URL, res.err)
	}

	r.setResponse(res)
	r.state = xhrk.Done
	r.sent = false
	loaded := int64(len(res.body))
	r.lock.Unlock()

	r.fire(xhrk.EvtReadyStateChange)
	r.fireProgress(xhrk.EvtLoad, loaded, loaded)
	r.fireProgress(xhrk.EvtLoadEnd, loaded, loaded)
	return nil
}

// complete runs on the loop once the round trip of generation gen is done.
// Listeners may abort or reopen the request between any two events, so
// each step checks the generation again.
func (r *Request) complete(gen uint64, res *result) {
	r.lock.Lock()
	if gen != r.gen {
		r.lock.Unlock()
		return
	}
	r.release()

	if res.err != nil {
		r.state = xhrk.Done
		r.sent = false
		r.resetResponse()
		r.lock.Unlock()

		r.fire(xhrk.EvtReadyStateChange)
		if res.timedOut {
			r.fireProgress(xhrk.EvtTimeout, 0, 0)
		} else {
			r.fireProgress(xhrk.EvtError, 0, 0)
		}
		r.fireProgress(xhrk.EvtLoadEnd, 0, 0)
		return
	}

	r.setResponse(res)
	r.state = xhrk.HeadersReceived
	r.lock.Unlock()
	r.fire(xhrk.EvtReadyStateChange)

	if !r.advance(gen, xhrk.Loading) {
		return
	}
	r.fire(xhrk.EvtReadyStateChange)

	total := int64(len(res.body))
	r.fireProgress(xhrk.EvtProgress, total, total)

	if !r.advance(gen, xhrk.Done) {
		return
	}
	r.lock.Lock()
	r.sent = false
	r.lock.Unlock()

	r.fire(xhrk.EvtReadyStateChange)
	r.fireProgress(xhrk.EvtLoad, total, total)
	r.fireProgress(xhrk.EvtLoadEnd, total, total)
}

func (r *Request) advance(gen uint64, state xhrk.ReadyState) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	if gen != r.gen {
		return false
	}
	r.state = state
	return true
}

// Abort cancels the round trip. A request in flight moves to DONE firing
// readystatechange, abort and loadend, then (like a request already DONE)
// silently returns to UNSENT.
func (r *Request) Abort() error {
	r.lock.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.gen++
	gen := r.gen

	inFlight := (r.state == xhrk.Opened && r.sent) || r.state == xhrk.HeadersReceived || r.state == xhrk.Loading
	if inFlight {
		r.state = xhrk.Done
		r.sent = false
		r.resetResponse()
	}
	r.lock.Unlock()

	if cancel != nil {
		cancel()
	}

	if inFlight {
		r.fire(xhrk.EvtReadyStateChange)
		r.fireProgress(xhrk.EvtAbort, 0, 0)
		r.fireProgress(xhrk.EvtLoadEnd, 0, 0)
	}

	r.lock.Lock()
	defer r.lock.Unlock()
	if gen == r.gen && r.state == xhrk.Done {
		r.state = xhrk.Unsent
		r.resetResponse()
	}
	return nil
}

// GetAllResponseHeaders as lower-cased, sorted "name: value\r\n" lines
func (r *Request) GetAllResponseHeaders() (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state < xhrk.HeadersReceived || r.respHeader == nil {
		return "", nil
	}
	return formatHeaders(r.respHeader), nil
}

// GetResponseHeader returns the combined value of name and whether it was
// present
func (r *Request) GetResponseHeader(name string) (string, bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state < xhrk.HeadersReceived || r.respHeader == nil {
		return "", false, nil
	}

	if strings.EqualFold(name, "Set-Cookie") || strings.EqualFold(name, "Set-Cookie2") {
		return "", false, nil
	}

	values := r.respHeader[http.CanonicalHeaderKey(name)]
	if len(values) == 0 {
		return "", false, nil
	}
	return strings.Join(values, ", "), true, nil
}

// OverrideMimeType used when interpreting the response
func (r *Request) OverrideMimeType(mimeType string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state == xhrk.Loading || r.state == xhrk.Done {
		return domError(InvalidStateError, "the object's state must not be LOADING or DONE")
	}

	if _, _, err := mime.ParseMediaType(mimeType); err != nil {
		mimeType = "application/octet-stream"
	}
	r.mimeOverride = mimeType
	return nil
}

// MimeType of the response, the override if one was set
func (r *Request) MimeType() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.mimeType()
}

// caller must hold the lock
func (r *Request) mimeType() string {
	if r.mimeOverride != "" {
		return r.mimeOverride
	}
	if r.respHeader != nil {
		if ct := r.respHeader.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return "text/xml"
}

func (r *Request) ReadyState() xhrk.ReadyState {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.state
}

func (r *Request) Status() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.status
}

func (r *Request) StatusText() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.statusText
}

// ResponseText is empty unless responseType is "" or "text"
func (r *Request) ResponseText() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.responseType != "" && r.responseType != "text" {
		return ""
	}
	if r.state < xhrk.Loading {
		return ""
	}
	return string(r.body)
}

// ResponseXML is the body of a finished request when the response type
// allows a document and the MIME type is HTML or XML
func (r *Request) ResponseXML() (string, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.responseType != "" && r.responseType != "document" {
		return "", false
	}
	if r.state != xhrk.Done || r.body == nil {
		return "", false
	}
	if !isDocumentType(r.mimeType()) {
		return "", false
	}
	return string(r.body), true
}

// Response body bytes
func (r *Request) Response() []byte {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state < xhrk.Loading {
		return nil
	}
	return r.body
}

func (r *Request) ResponseType() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.responseType
}

// SetResponseType ignores unknown types
func (r *Request) SetResponseType(responseType string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state == xhrk.Loading || r.state == xhrk.Done {
		return domError(InvalidStateError, "the response type can not be set if the object's state is LOADING or DONE")
	}

	if r.state != xhrk.Unsent && !r.async {
		return domError(InvalidAccessError, "the response type can not be changed for synchronous requests")
	}

	if _, ok := responseTypes[responseType]; !ok {
		return nil
	}
	r.responseType = responseType
	return nil
}

// Upload target, upload progress is not reported
func (r *Request) Upload() xhrk.EventTarget {
	return r.upload
}

func (r *Request) ResponseURL() string {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.responseURL
}

func (r *Request) Timeout() time.Duration {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.timeout
}

// SetTimeout applies to the next send
func (r *Request) SetTimeout(timeout time.Duration) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if r.state != xhrk.Unsent && !r.async {
		return domError(InvalidAccessError, "timeouts are not supported for synchronous requests")
	}
	r.timeout = timeout
	return nil
}

func (r *Request) WithCredentials() bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.withCredentials
}

// SetWithCredentials selects the cookie jar client for the next send
func (r *Request) SetWithCredentials(withCredentials bool) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if (r.state != xhrk.Unsent && r.state != xhrk.Opened) || r.sent {
		return domError(InvalidStateError, "the value may only be set if the object's state is UNSENT or OPENED")
	}
	r.withCredentials = withCredentials
	return nil
}

func isDocumentType(mimeType string) bool {
	essence, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	switch essence {
	case "text/html", "text/xml", "application/xml":
		return true
	}
	return strings.HasSuffix(essence, "+xml")
}

// release the round trip's context, caller must hold the lock
func (r *Request) release() {
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// caller must hold the lock
func (r *Request) setResponse(res *result) {
	r.status = res.status
	r.statusText = res.statusText
	r.respHeader = res.header
	r.body = res.body
	r.responseURL = res.url
}

// caller must hold the lock
func (r *Request) resetResponse() {
	r.status = 0
	r.statusText = ""
	r.respHeader = nil
	r.body = nil
	r.responseURL = ""
}

func (r *Request) fire(eventType xhrk.EventType) {
	r.DispatchEvent(xhrk.NewEvent(eventType, r))
}

func (r *Request) fireProgress(eventType xhrk.EventType, loaded, total int64) {
	r.DispatchEvent(xhrk.NewProgressEvent(eventType, r, loaded, total))
}
