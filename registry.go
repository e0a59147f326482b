package confhttpd

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// HandlerFactory builds a fresh Handler instance. A factory is invoked once
// per `location` block that names its handler type; the returned Handler is
// then configured from that block's body via Configure.
type HandlerFactory func() Handler

var (
	handlerTypesMu sync.Mutex
	handlerTypes   = map[string]HandlerFactory{}
)

// RegisterHandlerType adds name to the process-wide handler type registry.
// registerBuiltinHandlers is the only caller; a custom build embedding this
// package can call it too, to make an additional handler type available to
// the config parser without the registry needing to import it directly.
// Calling it twice for the same name panics, since that can only happen from
// a programming mistake, never from user-supplied configuration.
func RegisterHandlerType(name string, factory HandlerFactory) {
	handlerTypesMu.Lock()
	defer handlerTypesMu.Unlock()

	if _, exists := handlerTypes[name]; exists {
		panic(fmt.Sprintf("confhttpd: handler type %q already registered", name))
	}
	handlerTypes[name] = factory
}

// newHandlerInstance looks up name in the registry and, if found, invokes its
// factory. The bool result is false when no handler type with that name has
// been registered.
func newHandlerInstance(name string) (Handler, bool) {
	handlerTypesMu.Lock()
	factory, ok := handlerTypes[name]
	handlerTypesMu.Unlock()

	if !ok {
		return nil, false
	}
	return factory(), true
}

func init() {
	registerBuiltinHandlers()
}

// registerBuiltinHandlers registers every handler type this package ships
// with. Keeping every RegisterHandlerType call in this one function, run
// from this package's single init, avoids spreading file-scope initializers
// across every handler_*.go translation unit: the registry is populated in
// one place, the way spec.md §9 asks for, even though each handler type is
// still implemented in its own file.
func registerBuiltinHandlers() {
	RegisterHandlerType("EchoHandler", func() Handler { return &EchoHandler{} })
	RegisterHandlerType("HealthRequestHandler", func() Handler { return &HealthRequestHandler{} })
	RegisterHandlerType("NotFoundHandler", func() Handler { return &NotFoundHandler{} })
	RegisterHandlerType("SleepHandler", func() Handler {
		return &SleepHandler{Delay: 3000 * time.Millisecond}
	})
	RegisterHandlerType("StaticHandler", func() Handler {
		return &StaticHandler{fs: RealFileSystem{}, cache: staticAssetCache}
	})
	RegisterHandlerType("CrudHandler", func() Handler {
		return &CrudHandler{fs: RealFileSystem{}}
	})
	RegisterHandlerType("MarkdownHandler", func() Handler {
		return &MarkdownHandler{fs: RealFileSystem{}, cache: globalMarkdownCache}
	})
	RegisterHandlerType("WebSocketHandler", func() Handler {
		return &WebSocketHandler{}
	})
}

// registeredHandlerTypeNames returns the names currently registered, sorted,
// mainly for diagnostics and tests.
func registeredHandlerTypeNames() []string {
	handlerTypesMu.Lock()
	defer handlerTypesMu.Unlock()

	names := make([]string, 0, len(handlerTypes))
	for n := range handlerTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
