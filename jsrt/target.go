package jsrt

import (
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"
	"gitlab.com/xhrshim/xhrk"
)

// upload targets have no readystatechange
var uploadEventTypes = []xhrk.EventType{
	xhrk.EvtLoadStart,
	xhrk.EvtProgress,
	xhrk.EvtLoad,
	xhrk.EvtLoadEnd,
	xhrk.EvtError,
	xhrk.EvtAbort,
	xhrk.EvtTimeout,
}

type jsListener struct {
	eventType xhrk.EventType
	fn        goja.Value
	id        xhrk.ListenerID
}

// target exposes an xhrk.EventTarget on a script object: the listener
// methods and one on<type> property per event type
type target struct {
	vm        *goja.Runtime
	obj       *goja.Object
	events    xhrk.EventTarget
	source    xhrk.Request // target of events dispatched by scripts, nil for upload
	listeners []*jsListener
	handlers  map[xhrk.EventType]goja.Value
}

func newTarget(vm *goja.Runtime, obj *goja.Object, events xhrk.EventTarget, source xhrk.Request, types []xhrk.EventType) *target {
	if events == nil {
		events = xhrk.NewListeners()
	}

	t := &target{
		vm:        vm,
		obj:       obj,
		events:    events,
		source:    source,
		listeners: make([]*jsListener, 0),
		handlers:  make(map[xhrk.EventType]goja.Value),
	}

	t.method("addEventListener", t.addEventListener)
	t.method("removeEventListener", t.removeEventListener)
	t.method("dispatchEvent", t.dispatchEvent)
	for _, eventType := range types {
		t.handler(eventType)
	}
	return t
}

func (t *target) method(name string, fn func(call goja.FunctionCall) goja.Value) {
	if err := t.obj.Set(name, fn); err != nil {
		log.Error().Err(err).Str("method", name).Msg("failed to define method")
	}
}

func (t *target) getter(name string, get func() interface{}) {
	t.accessor(name, get, nil)
}

func (t *target) accessor(name string, get func() interface{}, set func(v goja.Value)) {
	getter := t.vm.ToValue(func(goja.FunctionCall) goja.Value {
		return t.vm.ToValue(get())
	})

	var setter goja.Value
	if set != nil {
		setter = t.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}

	if err := t.obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		log.Error().Err(err).Str("property", name).Msg("failed to define property")
	}
}

// handler defines the on<type> property
func (t *target) handler(eventType xhrk.EventType) {
	t.accessor("on"+string(eventType), func() interface{} {
		if fn, ok := t.handlers[eventType]; ok {
			return fn
		}
		return goja.Null()
	}, func(v goja.Value) {
		if _, ok := goja.AssertFunction(v); !ok {
			delete(t.handlers, eventType)
			t.events.SetHandler(eventType, nil)
			return
		}
		t.handlers[eventType] = v
		t.events.SetHandler(eventType, t.listener(v))
	})
}

// listener adapts a script function, exceptions are logged
func (t *target) listener(v goja.Value) xhrk.Listener {
	fn, _ := goja.AssertFunction(v)
	return func(evt *xhrk.Event) {
		if _, err := fn(t.obj, t.event(evt)); err != nil {
			log.Warn().Err(err).Str("event", string(evt.Type)).Msg("uncaught exception in event listener")
		}
	}
}

func (t *target) event(evt *xhrk.Event) goja.Value {
	o := t.vm.NewObject()
	o.Set("type", string(evt.Type))
	o.Set("target", t.obj)
	o.Set("currentTarget", t.obj)
	o.Set("lengthComputable", evt.LengthComputable)
	o.Set("loaded", evt.Loaded)
	o.Set("total", evt.Total)
	o.Set("timeStamp", evt.Observed.UnixNano()/int64(time.Millisecond))
	return o
}

func (t *target) addEventListener(call goja.FunctionCall) goja.Value {
	eventType := xhrk.EventType(call.Argument(0).String())
	fn := call.Argument(1)
	if _, ok := goja.AssertFunction(fn); !ok {
		return goja.Undefined()
	}

	for _, l := range t.listeners {
		if l.eventType == eventType && l.fn.SameAs(fn) {
			return goja.Undefined()
		}
	}

	id := t.events.AddEventListener(eventType, t.listener(fn))
	t.listeners = append(t.listeners, &jsListener{eventType: eventType, fn: fn, id: id})
	return goja.Undefined()
}

func (t *target) removeEventListener(call goja.FunctionCall) goja.Value {
	eventType := xhrk.EventType(call.Argument(0).String())
	fn := call.Argument(1)
	for i, l := range t.listeners {
		if l.eventType == eventType && l.fn.SameAs(fn) {
			t.events.RemoveEventListener(eventType, l.id)
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			break
		}
	}
	return goja.Undefined()
}

func (t *target) dispatchEvent(call goja.FunctionCall) goja.Value {
	evt := call.Argument(0)
	if goja.IsUndefined(evt) || goja.IsNull(evt) {
		return t.vm.ToValue(false)
	}

	eventType := evt.String()
	if o, ok := evt.(*goja.Object); ok {
		eventType = o.Get("type").String()
	}
	return t.vm.ToValue(t.events.DispatchEvent(xhrk.NewEvent(xhrk.EventType(eventType), t.source)))
}
