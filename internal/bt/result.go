package bt

import (
	"fmt"
	"math"
)

type resultKind uint8

const (
	resultUnmapped resultKind = iota
	resultNamed
	resultBool
	resultCode
)

// Result is the value returned by a leaf callable. It is one of:
//
//   - Named: a status name, matched case-sensitively against
//     "SUCCESS", "FAILURE" and "RUNNING"
//   - Bool: true maps to Success, false to Failure
//   - Code: a numeric status code (see Status)
//
// The zero Result is unmapped and resolves to Failure.
type Result struct {
	kind  resultKind
	name  string
	flag  bool
	code  int
	value any
}

// Named returns a status-name result.
func Named(name string) Result { return Result{kind: resultNamed, name: name} }

// Bool returns a boolean result.
func Bool(ok bool) Result { return Result{kind: resultBool, flag: ok} }

// Code returns a numeric status code result.
func Code(code int) Result { return Result{kind: resultCode, code: code} }

// Of classifies a dynamically typed value. Strings become Named, booleans
// become Bool, integers (and integral floats, as produced by scripting
// runtimes) become Code. A Status becomes its code and a Result is
// returned as is. Any other value yields an unmapped Result.
func Of(v any) Result {
	switch v := v.(type) {
	case Result:
		return v
	case Status:
		return Code(int(v))
	case string:
		return Named(v)
	case bool:
		return Bool(v)
	case int:
		return Code(v)
	case int8:
		return Code(int(v))
	case int16:
		return Code(int(v))
	case int32:
		return Code(int(v))
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return Result{value: v}
		}
		return Code(int(v))
	case uint:
		if v > math.MaxInt32 {
			return Result{value: v}
		}
		return Code(int(v))
	case uint8:
		return Code(int(v))
	case uint16:
		return Code(int(v))
	case uint32:
		if v > math.MaxInt32 {
			return Result{value: v}
		}
		return Code(int(v))
	case uint64:
		if v > math.MaxInt32 {
			return Result{value: v}
		}
		return Code(int(v))
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return Result{value: v}
		}
		return Code(int(v))
	}
	return Result{value: v}
}

// Status maps the result onto a Status. The mapping is total: it always
// yields Running, Success or Failure. A non-nil error describes why a
// result was treated as Failure (unknown name, invalid code, unmapped
// shape), and is meant to be reported, not returned to the caller of tick.
//
// Code 0 (Idle) is rejected, since a tick never yields Idle.
func (r Result) Status() (Status, error) {
	switch r.kind {
	case resultNamed:
		switch r.name {
		case "SUCCESS":
			return Success, nil
		case "FAILURE":
			return Failure, nil
		case "RUNNING":
			return Running, nil
		}
		return Failure, fmt.Errorf("%w: %q", ErrUnknownStatusName, r.name)
	case resultBool:
		if r.flag {
			return Success, nil
		}
		return Failure, nil
	case resultCode:
		if s := Status(r.code); s.valid() && s != Idle {
			return s, nil
		}
		return Failure, fmt.Errorf("%w: %d", ErrInvalidStatusCode, r.code)
	}
	return Failure, fmt.Errorf("%w: %T", ErrUnmappedResult, r.value)
}

// String implements fmt.Stringer.
func (r Result) String() string {
	switch r.kind {
	case resultNamed:
		return fmt.Sprintf("Named(%q)", r.name)
	case resultBool:
		return fmt.Sprintf("Bool(%t)", r.flag)
	case resultCode:
		return fmt.Sprintf("Code(%d)", r.code)
	}
	return fmt.Sprintf("Unmapped(%T)", r.value)
}
