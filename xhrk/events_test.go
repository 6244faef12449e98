package xhrk_test

import (
	"strings"
	"testing"

	"gitlab.com/xhrshim/xhrk"
)

func TestListenersOrder(t *testing.T) {
	l := xhrk.NewListeners()
	calls := make([]string, 0)

	l.AddEventListener(xhrk.EvtLoad, func(*xhrk.Event) { calls = append(calls, "a") })
	l.SetHandler(xhrk.EvtLoad, func(*xhrk.Event) { calls = append(calls, "handler1") })
	id := l.AddEventListener(xhrk.EvtLoad, func(*xhrk.Event) { calls = append(calls, "b") })
	// replacing the handler keeps its position
	l.SetHandler(xhrk.EvtLoad, func(*xhrk.Event) { calls = append(calls, "handler2") })
	l.AddEventListener(xhrk.EvtError, func(*xhrk.Event) { calls = append(calls, "error") })

	l.DispatchEvent(xhrk.NewEvent(xhrk.EvtLoad, nil))
	if strings.Join(calls, ",") != "a,handler2,b" {
		t.Fatalf("unexpected calls %v\n", calls)
	}

	calls = calls[:0]
	l.RemoveEventListener(xhrk.EvtLoad, id)
	l.SetHandler(xhrk.EvtLoad, nil)
	l.DispatchEvent(xhrk.NewEvent(xhrk.EvtLoad, nil))
	if strings.Join(calls, ",") != "a" {
		t.Fatalf("unexpected calls after removal %v\n", calls)
	}

	if l.Handler(xhrk.EvtLoad) != nil {
		t.Fatalf("handler should have been cleared\n")
	}
}

func TestListenerPanic(t *testing.T) {
	l := xhrk.NewListeners()
	called := false
	l.AddEventListener(xhrk.EvtLoad, func(*xhrk.Event) { panic("listener failed") })
	l.AddEventListener(xhrk.EvtLoad, func(*xhrk.Event) { called = true })

	if !l.DispatchEvent(xhrk.NewEvent(xhrk.EvtLoad, nil)) {
		t.Fatalf("dispatch should succeed\n")
	}

	if !called {
		t.Fatalf("a panicking listener stopped dispatch\n")
	}

	if l.DispatchEvent(nil) {
		t.Fatalf("nil events are not dispatched\n")
	}
}

func TestListenerAddedDuringDispatch(t *testing.T) {
	l := xhrk.NewListeners()
	count := 0
	l.AddEventListener(xhrk.EvtLoad, func(*xhrk.Event) {
		count++
		l.AddEventListener(xhrk.EvtLoad, func(*xhrk.Event) { count++ })
	})

	l.DispatchEvent(xhrk.NewEvent(xhrk.EvtLoad, nil))
	if count != 1 {
		t.Fatalf("listener added during dispatch was called, count %d\n", count)
	}
}

func TestProgressEvent(t *testing.T) {
	evt := xhrk.NewProgressEvent(xhrk.EvtProgress, nil, 5, 10)
	if !evt.LengthComputable || evt.Loaded != 5 || evt.Total != 10 {
		t.Fatalf("unexpected progress event %#v\n", evt)
	}

	if xhrk.NewProgressEvent(xhrk.EvtLoadEnd, nil, 0, 0).LengthComputable {
		t.Fatalf("zero total is not computable\n")
	}
}

func TestReadyStateString(t *testing.T) {
	if xhrk.HeadersReceived.String() != "HEADERS_RECEIVED" || xhrk.ReadyState(9).String() != "INVALID" {
		t.Fatalf("unexpected ready state names\n")
	}
}
