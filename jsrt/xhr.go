package jsrt

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gitlab.com/xhrshim/xhrk"
)

// constructor wraps the Go factory so `new XMLHttpRequest()` returns an
// object inheriting XMLHttpRequest.prototype and the readyState constants,
// its members are defined from Go by create
const constructor = `(function (create) {
	function XMLHttpRequest() {
		var xhr = Object.create(XMLHttpRequest.prototype);
		create(xhr);
		return xhr;
	}
	var states = ["UNSENT", "OPENED", "HEADERS_RECEIVED", "LOADING", "DONE"];
	for (var i = 0; i < states.length; i++) {
		XMLHttpRequest[states[i]] = i;
		XMLHttpRequest.prototype[states[i]] = i;
	}
	XMLHttpRequest.prototype.toString = function () { return "[object XMLHttpRequest]"; };
	return XMLHttpRequest;
})`

// Bind installs XMLHttpRequest into vm, instances are created by factory.
// Must be called from the goroutine that owns vm.
func Bind(vm *goja.Runtime, factory xhrk.Factory) error {
	prog, err := vm.RunString(constructor)
	if err != nil {
		return errors.Wrap(err, "failed to compile XMLHttpRequest constructor")
	}

	wrap, ok := goja.AssertFunction(prog)
	if !ok {
		return errors.New("XMLHttpRequest constructor is not a function")
	}

	create := func(call goja.FunctionCall) goja.Value {
		newXHR(vm, call.Argument(0).ToObject(vm), factory())
		return goja.Undefined()
	}

	ctor, err := wrap(goja.Undefined(), vm.ToValue(create))
	if err != nil {
		return errors.Wrap(err, "failed to create XMLHttpRequest constructor")
	}
	return vm.Set("XMLHttpRequest", ctor)
}

// xhr is the script facing object of a single request
type xhr struct {
	*target
	req    xhrk.Request
	upload *target
}

func newXHR(vm *goja.Runtime, obj *goja.Object, req xhrk.Request) *xhr {
	x := &xhr{
		target: newTarget(vm, obj, req, req, xhrk.EventTypes),
		req:    req,
		upload: newTarget(vm, vm.NewObject(), req.Upload(), nil, uploadEventTypes),
	}

	x.method("open", x.open)
	x.method("send", x.send)
	x.method("setRequestHeader", x.setRequestHeader)
	x.method("abort", x.abort)
	x.method("getAllResponseHeaders", x.getAllResponseHeaders)
	x.method("getResponseHeader", x.getResponseHeader)
	x.method("overrideMimeType", x.overrideMimeType)

	x.getter("readyState", func() interface{} { return int(req.ReadyState()) })
	x.getter("status", func() interface{} { return req.Status() })
	x.getter("statusText", func() interface{} { return req.StatusText() })
	x.getter("responseText", func() interface{} { return req.ResponseText() })
	x.getter("responseXML", x.responseXML)
	x.getter("responseURL", func() interface{} { return req.ResponseURL() })
	x.getter("response", x.response)
	x.getter("upload", func() interface{} { return x.upload.obj })

	x.accessor("responseType", func() interface{} { return req.ResponseType() }, func(v goja.Value) {
		x.check("responseType", req.SetResponseType(v.String()))
	})
	x.accessor("timeout", func() interface{} { return req.Timeout().Milliseconds() }, func(v goja.Value) {
		x.check("timeout", req.SetTimeout(time.Duration(v.ToInteger())*time.Millisecond))
	})
	x.accessor("withCredentials", func() interface{} { return req.WithCredentials() }, func(v goja.Value) {
		x.check("withCredentials", req.SetWithCredentials(v.ToBoolean()))
	})

	log.Debug().Str("native", fmt.Sprintf("%T", xhrk.Innermost(req))).Msg("created XMLHttpRequest")
	return x
}

// check logs failed property writes, assignments can't report errors to the script
func (x *xhr) check(name string, err error) {
	if err != nil {
		log.Warn().Err(err).Str("property", name).Msg("failed to set property")
	}
}

// result maps a failed call to its message, nothing is thrown into the script
func (x *xhr) result(err error) goja.Value {
	if err != nil {
		return x.vm.ToValue(err.Error())
	}
	return goja.Undefined()
}

func (x *xhr) open(call goja.FunctionCall) goja.Value {
	async := true
	if a := call.Argument(2); !goja.IsUndefined(a) {
		async = a.ToBoolean()
	}
	return x.result(x.req.Open(optString(call.Argument(0)), call.Argument(1).String(), async, optString(call.Argument(3)), optString(call.Argument(4))))
}

func (x *xhr) send(call goja.FunctionCall) goja.Value {
	var body []byte
	if b := call.Argument(0); !goja.IsUndefined(b) && !goja.IsNull(b) {
		body = bodyBytes(b)
	}
	return x.result(x.req.Send(body))
}

func (x *xhr) setRequestHeader(call goja.FunctionCall) goja.Value {
	return x.result(x.req.SetRequestHeader(call.Argument(0).String(), call.Argument(1).String()))
}

func (x *xhr) abort(call goja.FunctionCall) goja.Value {
	return x.result(x.req.Abort())
}

func (x *xhr) getAllResponseHeaders(call goja.FunctionCall) goja.Value {
	headers, _ := x.req.GetAllResponseHeaders()
	return x.vm.ToValue(headers)
}

func (x *xhr) getResponseHeader(call goja.FunctionCall) goja.Value {
	value, ok, _ := x.req.GetResponseHeader(call.Argument(0).String())
	if !ok {
		return goja.Null()
	}
	return x.vm.ToValue(value)
}

func (x *xhr) overrideMimeType(call goja.FunctionCall) goja.Value {
	return x.result(x.req.OverrideMimeType(call.Argument(0).String()))
}

// response decodes the body according to responseType
func (x *xhr) response() interface{} {
	switch strings.ToLower(x.req.ResponseType()) {
	case "", "text":
		return x.req.ResponseText()
	case "json":
		body := x.req.Response()
		if len(body) == 0 {
			return goja.Null()
		}
		parse, ok := goja.AssertFunction(x.vm.Get("JSON").ToObject(x.vm).Get("parse"))
		if !ok {
			return goja.Null()
		}
		v, err := parse(goja.Undefined(), x.vm.ToValue(string(body)))
		if err != nil {
			return goja.Null()
		}
		return v
	case "arraybuffer":
		body := x.req.Response()
		if body == nil {
			return goja.Null()
		}
		return x.vm.NewArrayBuffer(clone(body))
	case "document":
		return x.responseXML()
	default:
		return string(x.req.Response())
	}
}

func (x *xhr) responseXML() interface{} {
	text, ok := x.req.ResponseXML()
	if !ok {
		return goja.Null()
	}
	return x.textDocument(text)
}

// textDocument stands in for a parsed document, only its text is available
func (x *xhr) textDocument(text string) *goja.Object {
	root := x.vm.NewObject()
	root.Set("textContent", text)
	root.Set("outerHTML", text)

	doc := x.vm.NewObject()
	doc.Set("contentType", "text/html")
	doc.Set("documentElement", root)
	return doc
}

// bodyBytes converts a send argument. Buffers and buffer views are sent as
// their bytes, anything else as its string value.
func bodyBytes(v goja.Value) []byte {
	if buf, ok := v.Export().(goja.ArrayBuffer); ok {
		return clone(buf.Bytes())
	}

	if o, ok := v.(*goja.Object); ok {
		if b := o.Get("buffer"); b != nil {
			if buf, ok := b.Export().(goja.ArrayBuffer); ok {
				data := buf.Bytes()
				offset, length := intProp(o, "byteOffset"), intProp(o, "byteLength")
				if offset >= 0 && length >= 0 && offset+length <= int64(len(data)) {
					return clone(data[offset : offset+length])
				}
			}
		}
	}
	return []byte(v.String())
}

func intProp(o *goja.Object, name string) int64 {
	v := o.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return -1
	}
	return v.ToInteger()
}

func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func optString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
