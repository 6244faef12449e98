package intercept

import (
	"github.com/pkg/errors"
	"gitlab.com/xhrshim/xhrk"
)

// ErrUnknown is used when Finish is called without an error
var ErrUnknown = errors.New("unknown error")

// Finish drives the request to DONE as if the server had answered with an
// error. readyState is raised one step at a time up to LOADING, firing
// readystatechange at each step; at DONE status is 500, statusText is the
// error message and responseText its property dump, followed by
// readystatechange, loadstart, load and loadend in that order. A request
// already at DONE only gets the terminal sequence.
func (r *Request) Finish(err error) {
	if err == nil {
		err = ErrUnknown
	}

	state := r.ReadyState()
	r.shadow = &shadow{readyState: state}
	for r.shadow.readyState < xhrk.Loading {
		r.shadow.readyState++
		r.dispatch(xhrk.EvtReadyStateChange)
	}

	r.shadow.readyState = xhrk.Done
	r.shadow.status = 500
	r.shadow.statusText = err.Error()
	r.shadow.responseText = xhrk.DumpError(err)
	r.shadow.final = true

	r.dispatch(xhrk.EvtReadyStateChange)
	r.dispatch(xhrk.EvtLoadStart)
	r.dispatch(xhrk.EvtLoad)
	r.dispatch(xhrk.EvtLoadEnd)

	r.err = err
	r.notify(xhrk.CaptureFinished, "", "", err)
}

func (r *Request) dispatch(eventType xhrk.EventType) {
	r.native.DispatchEvent(xhrk.NewEvent(eventType, r))
}
