package jsrt_test

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"gitlab.com/xhrshim/intercept"
	"gitlab.com/xhrshim/jsrt"
	"gitlab.com/xhrshim/mock"
	"gitlab.com/xhrshim/native"
	"gitlab.com/xhrshim/xhrk"
)

func testVM(t *testing.T, factory xhrk.Factory) *goja.Runtime {
	vm := goja.New()
	if err := jsrt.Bind(vm, factory); err != nil {
		t.Fatalf("error binding: %s\n", err)
	}
	return vm
}

func run(t *testing.T, vm *goja.Runtime, src string) goja.Value {
	v, err := vm.RunString(src)
	if err != nil {
		t.Fatalf("error running script: %s\n", err)
	}
	return v
}

func TestConstructor(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	vm := testVM(t, factory)

	v := run(t, vm, `
	var x = new XMLHttpRequest();
	[XMLHttpRequest.DONE, x.LOADING, x.readyState, x instanceof XMLHttpRequest, String(x), x.onload === null].join(",");
	`)

	if v.String() != "4,3,0,true,[object XMLHttpRequest],true" {
		t.Fatalf("unexpected constructor result %s\n", v)
	}

	if len(*made) != 1 {
		t.Fatalf("expected one request got %d\n", len(*made))
	}
}

func TestDelegation(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	vm := testVM(t, factory)

	run(t, vm, `
	var x = new XMLHttpRequest();
	x.open("POST", "http://example.com/api", false, "user", "pass");
	x.setRequestHeader("X-Test", 1);
	x.overrideMimeType("text/plain");
	x.responseType = "json";
	x.timeout = 250;
	x.withCredentials = true;
	x.send("a=b");
	x.abort();
	`)

	r := (*made)[0]
	expected := []string{"open", "setRequestHeader", "overrideMimeType", "responseType", "timeout", "withCredentials", "send", "abort"}
	if len(r.Calls) != len(expected) {
		t.Fatalf("unexpected calls %#v\n", r.Calls)
	}

	for i, name := range expected {
		if r.Calls[i].Method != name {
			t.Fatalf("call %d expected %s got %s\n", i, name, r.Calls[i].Method)
		}
	}

	if r.Calls[0].Args[2] != false || r.Calls[0].Args[4] != "pass" {
		t.Fatalf("unexpected open args %#v\n", r.Calls[0].Args)
	}

	if r.Calls[1].Args[1] != "1" {
		t.Fatalf("header value should be stringified %#v\n", r.Calls[1].Args)
	}

	if string(r.Calls[6].Args[0].([]byte)) != "a=b" {
		t.Fatalf("unexpected body %#v\n", r.Calls[6].Args)
	}

	if r.TimeoutValue.Milliseconds() != 250 || !r.Credentials || r.Type != "json" {
		t.Fatalf("properties not forwarded %d %v %s\n", r.TimeoutValue.Milliseconds(), r.Credentials, r.Type)
	}
}

func TestListeners(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	vm := testVM(t, factory)

	run(t, vm, `
	var log = [];
	var x = new XMLHttpRequest();
	function onLoad(e) { log.push("listener:" + e.type + ":" + (this === x)); }
	x.addEventListener("load", onLoad);
	x.addEventListener("load", onLoad);
	x.onload = function (e) { log.push("handler:" + e.type); };
	x.onerror = function () { throw new Error("boom"); };
	`)

	r := (*made)[0]
	r.DispatchEvent(xhrk.NewEvent(xhrk.EvtLoad, r))
	r.DispatchEvent(xhrk.NewEvent(xhrk.EvtError, r))

	if v := run(t, vm, `log.join(",")`); v.String() != "listener:load:true,handler:load" {
		t.Fatalf("unexpected listener calls %s\n", v)
	}

	run(t, vm, `x.removeEventListener("load", onLoad); x.onload = null; log = [];`)
	r.DispatchEvent(xhrk.NewEvent(xhrk.EvtLoad, r))

	if v := run(t, vm, `log.length + ":" + (x.onload === null)`); v.String() != "0:true" {
		t.Fatalf("listeners were not removed %s\n", v)
	}
}

func TestResponseHeaders(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	vm := testVM(t, factory)
	run(t, vm, `var x = new XMLHttpRequest();`)
	(*made)[0].ResponseHeaders["content-type"] = "text/html"

	v := run(t, vm, `[x.getResponseHeader("content-type"), x.getResponseHeader("missing") === null].join(",")`)
	if v.String() != "text/html,true" {
		t.Fatalf("unexpected headers %s\n", v)
	}
}

func TestInterceptedFailure(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	shim, _ := intercept.Install(factory, &intercept.Options{Namespaces: intercept.NewNamespaces()})
	vm := testVM(t, shim.Factory())

	run(t, vm, `
	var events = [];
	var x = new XMLHttpRequest();
	x.onreadystatechange = function () { events.push("rsc" + this.readyState); };
	x.onloadend = function () { events.push("loadend"); };
	x.open("GET", "http://example.com/");
	`)

	(*made)[0].SendFn = func(body []byte) error {
		return errors.New("connection refused")
	}

	res := run(t, vm, `var res = x.send(); [typeof res, res, x.status, x.statusText, x.readyState, events.join(",")].join("|")`)
	expected := "string|connection refused|500|connection refused|4|rsc2,rsc3,rsc4,loadend"
	if res.String() != expected {
		t.Fatalf("expected %s got %s\n", expected, res)
	}

	if !strings.Contains(run(t, vm, `x.responseText`).String(), "message: connection refused") {
		t.Fatalf("responseText is missing the error dump\n")
	}
}

func testServer() (string, *http.Server) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/hello", func(c *gin.Context) {
		c.String(http.StatusOK, "hello")
	})
	router.GET("/json", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"name": "xhrshim"})
	})

	testListener, _ := net.Listen("tcp", "127.0.0.1:0")
	srv := &http.Server{Handler: router}
	go func() {
		if err := srv.Serve(testListener); err != http.ErrServerClosed {
			log.Fatalf("Serve(): %s", err)
		}
	}()
	return fmt.Sprintf("http://%s", testListener.Addr().String()), srv
}

func TestRuntimeAsync(t *testing.T) {
	target, srv := testServer()
	defer srv.Shutdown(context.Background())

	rt := jsrt.NewRuntime()
	defer rt.Stop()

	client, err := native.NewClient(&xhrk.Config{BaseURL: target}, rt.Scheduler())
	if err != nil {
		t.Fatalf("error creating client: %s\n", err)
	}

	observer := &mock.Observer{}
	shim, _ := intercept.Install(client.Factory(), &intercept.Options{
		Namespaces: intercept.NewNamespaces(),
		Observers:  []xhrk.Observer{observer},
	})

	if err := rt.Bind(shim.Factory()); err != nil {
		t.Fatalf("error binding: %s\n", err)
	}

	_, err = rt.RunString("test.js", `
	var result = {};
	var x = new XMLHttpRequest();
	x.onload = function () {
		result.text = this.responseText;
		var y = new XMLHttpRequest();
		y.responseType = "json";
		y.onload = function () { result.name = y.response.name; };
		y.open("GET", "/json");
		y.send();
	};
	x.open("GET", "/hello");
	x.send();

	var blocked = new XMLHttpRequest();
	blocked.onreadystatechange = function () { result.blockedEvent = true; };
	blocked.open("GET", "https://googleads.example.com/pixel");
	blocked.send();
	`)
	if err != nil {
		t.Fatalf("error running script: %s\n", err)
	}

	var text, name string
	var blockedEvent bool
	rt.Do(func(vm *goja.Runtime) {
		result := vm.Get("result").ToObject(vm)
		text = result.Get("text").String()
		name = result.Get("name").String()
		blockedEvent = result.Get("blockedEvent") != nil && result.Get("blockedEvent").ToBoolean()
	})

	if text != "hello" || name != "xhrshim" {
		t.Fatalf("unexpected results text=%s name=%s\n", text, name)
	}

	// only the open transition fired on the blocked request
	if !blockedEvent {
		t.Fatalf("expected the OPENED readystatechange on the blocked request\n")
	}

	blocked := 0
	for _, kind := range observer.Kinds() {
		if kind == xhrk.CaptureBlocked {
			blocked++
		}
	}
	if blocked != 1 {
		t.Fatalf("expected one blocked capture got %v\n", observer.Kinds())
	}
}

func TestRuntimeScriptError(t *testing.T) {
	rt := jsrt.NewRuntime()
	defer rt.Stop()

	if _, err := rt.RunString("bad.js", `this is not javascript`); err == nil {
		t.Fatalf("expected syntax error\n")
	}
}

func TestBinaryBody(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	vm := testVM(t, factory)

	run(t, vm, `
	var x = new XMLHttpRequest();
	x.open("POST", "http://example.com/upload");
	x.send(new Uint8Array([1, 2, 3]).buffer);
	x.send(new Uint8Array([9, 4, 5, 6, 9]).subarray(1, 4));
	x.send(new DataView(new Uint8Array([7, 8]).buffer));
	x.send({ toString: function () { return "obj"; } });
	`)

	r := (*made)[0]
	var inputs = []struct {
		call     int
		expected []byte
	}{
		{1, []byte{1, 2, 3}},
		{2, []byte{4, 5, 6}},
		{3, []byte{7, 8}},
		{4, []byte("obj")},
	}

	for _, in := range inputs {
		body := r.Calls[in.call].Args[0].([]byte)
		if !bytes.Equal(body, in.expected) {
			t.Fatalf("send %d expected %v got %v\n", in.call, in.expected, body)
		}
	}
}

func TestOpenDefaultMethod(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	shim, _ := intercept.Install(factory, &intercept.Options{Namespaces: intercept.NewNamespaces()})
	vm := testVM(t, shim.Factory())

	run(t, vm, `
	var x = new XMLHttpRequest();
	x.open(undefined, "http://example.com/");
	`)

	if method := (*made)[0].Calls[0].Args[0]; method != "GET" {
		t.Fatalf("expected GET got %v\n", method)
	}
}

func TestResponseXMLAndUpload(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	vm := testVM(t, factory)

	run(t, vm, `
	var uploads = [];
	var x = new XMLHttpRequest();
	x.upload.addEventListener("progress", function (e) { uploads.push(e.type + ":" + (e.target === x.upload)); });
	`)

	v := run(t, vm, `[x.responseXML === null, "upload" in x, x.upload === x.upload, typeof x.upload.onprogress, typeof x.upload.onreadystatechange].join(",")`)
	if v.String() != "true,true,true,object,undefined" {
		t.Fatalf("unexpected document or upload %s\n", v)
	}

	r := (*made)[0]
	r.Document = "<p>hi</p>"
	r.HasDocument = true
	r.UploadTarget.DispatchEvent(xhrk.NewEvent(xhrk.EvtProgress, nil))

	v = run(t, vm, `[x.responseXML.documentElement.textContent, uploads.join(",")].join("|")`)
	if v.String() != "<p>hi</p>|progress:true" {
		t.Fatalf("unexpected document text or upload events %s\n", v)
	}

	// upload events never reach the request's own listeners
	if v := run(t, vm, `x.onprogress === null`); !v.ToBoolean() {
		t.Fatalf("upload handler leaked onto the request\n")
	}
}

func TestArrayBufferResponse(t *testing.T) {
	factory, made := mock.MakeMockFactory()
	vm := testVM(t, factory)
	run(t, vm, `var x = new XMLHttpRequest();`)

	r := (*made)[0]
	r.Type = "arraybuffer"
	r.Body = []byte{1, 2, 3}

	v := run(t, vm, `[x.response instanceof ArrayBuffer, new Uint8Array(x.response).join(",")].join("|")`)
	if v.String() != "true|1,2,3" {
		t.Fatalf("unexpected array buffer response %s\n", v)
	}

	r.Type = "document"
	r.HasDocument = false
	if v := run(t, vm, `x.response === null`); !v.ToBoolean() {
		t.Fatalf("expected a null document\n")
	}
}

func TestRuntimeInterrupt(t *testing.T) {
	rt := jsrt.NewRuntime()
	defer rt.Stop()

	factory, _ := mock.MakeMockFactory()
	if err := rt.Bind(factory); err != nil {
		t.Fatalf("error binding: %s\n", err)
	}

	timer := time.AfterFunc(50*time.Millisecond, func() {
		rt.Interrupt("shutting down")
	})
	defer timer.Stop()

	_, err := rt.RunString("forever.js", `for (;;) {}`)
	if err == nil || !strings.Contains(err.Error(), "shutting down") {
		t.Fatalf("expected the script to be interrupted got %v\n", err)
	}
}
