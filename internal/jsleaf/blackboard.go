package jsleaf

import (
	"slices"

	"github.com/dop251/goja"

	"github.com/joeycumines/bte/internal/bt"
)

// blackboard creates the script view of bb:
//
//	bb.get("key")     // throws if the key is missing
//	bb.lookup("key")  // undefined if the key is missing
//	bb.set("key", value)
//	bb.has("key")
//	bb.delete("key")
//	bb.keys()         // sorted local keys
func (h *Host) blackboard(bb *bt.Blackboard) goja.Value {
	vm := h.vm
	obj := vm.NewObject()
	_ = obj.Set("get", bb.Get)
	_ = obj.Set("lookup", func(key string) goja.Value {
		v, ok := bb.Lookup(key)
		if !ok {
			return goja.Undefined()
		}
		return vm.ToValue(v)
	})
	_ = obj.Set("set", bb.Set)
	_ = obj.Set("has", bb.Has)
	_ = obj.Set("delete", bb.Delete)
	_ = obj.Set("keys", func() []any {
		keys := bb.Keys()
		slices.Sort(keys)
		out := make([]any, len(keys))
		for i, k := range keys {
			out[i] = k
		}
		return out
	})
	return obj
}
