package jsleaf

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/joeycumines/bte/internal/bt"
)

// moduleLoader implements require("bte"):
//   - SUCCESS, FAILURE, RUNNING: status names
//   - registerAction(name, fn, options?): declare an action leaf; options.halt
//     is called when the leaf is halted while running
//   - registerCondition(name, fn): declare a condition leaf
//   - log(message, ...attrs): log through the host logger
func (h *Host) moduleLoader(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)

	_ = exports.Set("SUCCESS", bt.Success.String())
	_ = exports.Set("FAILURE", bt.Failure.String())
	_ = exports.Set("RUNNING", bt.Running.String())

	_ = exports.Set("registerAction", func(call goja.FunctionCall) goja.Value {
		h.declare(vm, bt.KindAction, call)
		return goja.Undefined()
	})
	_ = exports.Set("registerCondition", func(call goja.FunctionCall) goja.Value {
		h.declare(vm, bt.KindCondition, call)
		return goja.Undefined()
	})
	_ = exports.Set("log", func(call goja.FunctionCall) goja.Value {
		msg := call.Argument(0).String()
		args := make([]any, 0, len(call.Arguments))
		for i, a := range call.Arguments[min(1, len(call.Arguments)):] {
			args = append(args, fmt.Sprintf("arg%d", i), export(a))
		}
		h.logger.Info("[jsleaf] "+msg, args...)
		return goja.Undefined()
	})
}

func (h *Host) declare(vm *goja.Runtime, kind bt.Kind, call goja.FunctionCall) {
	name := call.Argument(0).String()
	if goja.IsUndefined(call.Argument(0)) || name == "" {
		panic(vm.NewTypeError("%s requires a name", kind))
	}
	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(vm.NewTypeError("%s %q: second argument must be a function", kind, name))
	}
	if _, ok := h.names[name]; ok {
		panic(vm.NewTypeError("%s %q is already registered", kind, name))
	}

	d := declaration{name: name, kind: kind, fn: fn}
	if opts, ok := call.Argument(2).(*goja.Object); ok && kind == bt.KindAction {
		if v := opts.Get("halt"); v != nil && !goja.IsUndefined(v) {
			if d.halt, ok = goja.AssertFunction(v); !ok {
				panic(vm.NewTypeError("action %q: halt must be a function", name))
			}
		}
	}
	h.names[name] = struct{}{}
	h.declared = append(h.declared, d)
}
