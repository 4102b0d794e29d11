// Package jsleaf provides behavior tree leaves implemented in JavaScript,
// run on an embedded goja runtime.
//
// A Host owns one runtime. Every call into it, whether loading a script or
// ticking a leaf, holds the host's execution lock, so leaves from one host
// never run concurrently even when their trees are ticked from different
// goroutines. The lock is re-entrant: a script may call a Go function that
// ticks another tree whose leaves live on the same host.
//
// Scripts declare leaves through the "bte" module:
//
//	const bte = require("bte");
//	bte.registerCondition("HasTarget", (bb) => bb.has("target"));
//	bte.registerAction("Approach", (bb) => {
//	    const d = bb.get("distance") - 1;
//	    bb.set("distance", d);
//	    return d > 0 ? bte.RUNNING : bte.SUCCESS;
//	}, { halt: (bb) => bb.delete("distance") });
package jsleaf

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"

	"github.com/joeycumines/bte/internal/bt"
	"github.com/joeycumines/bte/internal/factory"
)

// ModuleName is the name scripts pass to require.
const ModuleName = "bte"

// Host runs JavaScript leaves.
type Host struct {
	vm       *goja.Runtime
	registry *require.Registry
	lock     *reentrantLock
	logger   *slog.Logger

	declared []declaration
	names    map[string]struct{}
}

type declaration struct {
	name string
	kind bt.Kind
	fn   goja.Callable
	halt goja.Callable
}

// HostOption configures a Host.
type HostOption func(*hostOptions)

type hostOptions struct {
	logger   *slog.Logger
	registry *require.Registry
}

// WithLogger sets the logger used by bte.log and for script diagnostics.
func WithLogger(logger *slog.Logger) HostOption {
	return func(o *hostOptions) { o.logger = logger }
}

// WithRegistry uses registry instead of a new one, so additional native
// modules can be made available to scripts.
func WithRegistry(registry *require.Registry) HostOption {
	return func(o *hostOptions) { o.registry = registry }
}

// NewHost returns a Host with the bte module registered.
func NewHost(opts ...HostOption) *Host {
	var o hostOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.registry == nil {
		o.registry = require.NewRegistry()
	}

	h := &Host{
		vm:       goja.New(),
		registry: o.registry,
		lock:     new(reentrantLock),
		logger:   o.logger,
		names:    make(map[string]struct{}),
	}
	h.vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	h.registry.RegisterNativeModule(ModuleName, h.moduleLoader)
	h.registry.Enable(h.vm)
	return h
}

// Locker returns the host's execution lock.
func (h *Host) Locker() sync.Locker { return h.lock }

// Load runs src as a script named name.
func (h *Host) Load(name, src string) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if _, err := h.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("jsleaf: load %s: %w", name, err)
	}
	return nil
}

// LoadFile runs the script at path.
func (h *Host) LoadFile(path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("jsleaf: read script: %w", err)
	}
	return h.Load(path, string(src))
}

// Set exposes a Go value to scripts as a global.
func (h *Host) Set(name string, value any) error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.vm.Set(name, value)
}

// Leaf returns a leaf callable that invokes the global function name.
func (h *Host) Leaf(name string) (bt.LeafFunc, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	fn, ok := goja.AssertFunction(h.vm.Get(name))
	if !ok {
		return nil, fmt.Errorf("jsleaf: global %q is not a function", name)
	}
	return h.Wrap(fn), nil
}

// Wrap adapts a script function into a leaf callable. The function is
// called with a view of the node's blackboard, and its return value is
// mapped with bt.Of. A thrown exception fails the leaf.
func (h *Host) Wrap(fn goja.Callable) bt.LeafFunc {
	return func(bb *bt.Blackboard) (bt.Result, error) {
		h.lock.Lock()
		defer h.lock.Unlock()
		v, err := fn(goja.Undefined(), h.blackboard(bb))
		if err != nil {
			return bt.Result{}, err
		}
		return bt.Of(export(v)), nil
	}
}

func (h *Host) wrapHalt(fn goja.Callable, name string) func(*bt.Blackboard) {
	return func(bb *bt.Blackboard) {
		h.lock.Lock()
		defer h.lock.Unlock()
		if _, err := fn(goja.Undefined(), h.blackboard(bb)); err != nil {
			h.logger.Error("[jsleaf] halt failed", "leaf", name, "error", err)
		}
	}
}

// Declared returns the names of the leaves registered by scripts, in
// registration order.
func (h *Host) Declared() []string {
	h.lock.Lock()
	defer h.lock.Unlock()
	names := make([]string, len(h.declared))
	for i, d := range h.declared {
		names[i] = d.name
	}
	return names
}

// RegisterWith registers every script-declared leaf with f. The leaves hold
// the host's execution lock while running.
func (h *Host) RegisterWith(f *factory.Factory) error {
	h.lock.Lock()
	declared := append([]declaration(nil), h.declared...)
	h.lock.Unlock()

	for _, d := range declared {
		opts := []bt.LeafOption{bt.WithLock(h.lock)}
		if d.halt != nil {
			opts = append(opts, bt.WithHalt(h.wrapHalt(d.halt, d.name)))
		}
		var err error
		if d.kind == bt.KindCondition {
			err = f.RegisterSimpleCondition(d.name, h.Wrap(d.fn), opts...)
		} else {
			err = f.RegisterSimpleAction(d.name, h.Wrap(d.fn), opts...)
		}
		if err != nil {
			return fmt.Errorf("jsleaf: register %q: %w", d.name, err)
		}
	}
	return nil
}

// export converts a script value for bt.Of. Undefined and null become nil,
// which is unmapped.
func export(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}
