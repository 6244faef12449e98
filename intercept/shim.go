package intercept

import (
	"sync"

	"github.com/rs/zerolog/log"
	"gitlab.com/xhrshim/xhrk"
)

// Options for installing the shim
type Options struct {
	Namespace  string            // install guard key, defaults to xhrk.DefaultNamespace
	Namespaces *Namespaces       // registry holding the guard, defaults to GlobalNamespaces()
	Blocker    xhrk.BlockService // defaults to NewDefaultBlockList()
	Handlers   []SendHandler     // run after the block rule on every send
	Observers  []xhrk.Observer
}

// OptionsFromConfig builds install options from cfg
func OptionsFromConfig(cfg *xhrk.Config) *Options {
	blocker := NewBlockList()
	if !cfg.DisableDefaultBlock {
		blocker.Add([]string{DefaultBlockPattern})
	}
	blocker.Add(cfg.BlockPatterns)
	return &Options{
		Namespace: cfg.Namespace,
		Blocker:   blocker,
	}
}

// Shim is the installed interception handle. Requests created through it
// are wrapped exactly once.
type Shim struct {
	namespace string
	factory   xhrk.Factory
	blocker   xhrk.BlockService

	lock      sync.RWMutex
	handlers  []SendHandler
	observers []xhrk.Observer
}

// Install wraps factory with interception. Installation is guarded by the
// namespace: if a shim is already installed under it, that shim is returned
// unchanged (and factory and opts are ignored) with installed false.
func Install(factory xhrk.Factory, opts *Options) (shim *Shim, installed bool) {
	if opts == nil {
		opts = &Options{}
	}
	namespace := opts.Namespace
	if namespace == "" {
		namespace = xhrk.DefaultNamespace
	}
	registry := opts.Namespaces
	if registry == nil {
		registry = GlobalNamespaces()
	}

	v, loaded := registry.LoadOrStore(namespace, func() interface{} {
		return newShim(namespace, factory, opts)
	})
	if loaded {
		log.Debug().Str("namespace", namespace).Msg("interception already installed")
	}
	return v.(*Shim), !loaded
}

func newShim(namespace string, factory xhrk.Factory, opts *Options) *Shim {
	blocker := opts.Blocker
	if blocker == nil {
		blocker = NewDefaultBlockList()
	}
	s := &Shim{
		namespace: namespace,
		factory:   factory,
		blocker:   blocker,
		handlers:  make([]SendHandler, 0),
		observers: make([]xhrk.Observer, 0),
	}
	s.Use(opts.Handlers...)
	s.AddObserver(opts.Observers...)
	return s
}

// Namespace the shim was installed under
func (s *Shim) Namespace() string {
	return s.namespace
}

// Blocker used by the shim
func (s *Shim) Blocker() xhrk.BlockService {
	return s.blocker
}

// Use appends send handlers, they run after the block rule
func (s *Shim) Use(handlers ...SendHandler) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, h := range handlers {
		if h != nil {
			s.handlers = append(s.handlers, h)
		}
	}
}

// AddObserver registers observers for captures
func (s *Shim) AddObserver(observers ...xhrk.Observer) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for _, o := range observers {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// New creates a native request through the installed factory and wraps it
func (s *Shim) New() *Request {
	return s.Wrap(s.factory())
}

// Factory that creates intercepted requests
func (s *Shim) Factory() xhrk.Factory {
	return func() xhrk.Request {
		return s.New()
	}
}

// Wrap native with interception. An already intercepted request is returned
// as is, a request is never wrapped twice.
func (s *Shim) Wrap(native xhrk.Request) *Request {
	if r, ok := native.(*Request); ok {
		return r
	}
	return newRequest(s, native)
}

// Methods lists the intercepted method names
func (s *Shim) Methods() []string {
	names := make([]string, len(InterceptedMethods))
	copy(names, InterceptedMethods)
	return names
}

func (s *Shim) sendHandlers() []SendHandler {
	s.lock.RLock()
	defer s.lock.RUnlock()
	handlers := make([]SendHandler, 0, len(s.handlers)+1)
	handlers = append(handlers, s.blockHandler)
	return append(handlers, s.handlers...)
}

func (s *Shim) blockHandler(c *SendContext) {
	if c.Metadata == nil {
		return
	}
	if rule, blocked := s.blocker.Match(c.Metadata.URL); blocked {
		c.Block(rule)
	}
}

func (s *Shim) notify(capture *xhrk.Capture) {
	s.lock.RLock()
	observers := make([]xhrk.Observer, len(s.observers))
	copy(observers, s.observers)
	s.lock.RUnlock()

	for _, o := range observers {
		observe(o, capture)
	}
}

func observe(o xhrk.Observer, capture *xhrk.Capture) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Interface("panic", r).Str("capture_id", capture.ID).Msg("observer failed")
		}
	}()
	o.Observe(capture)
}
