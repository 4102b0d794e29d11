package jsleaf

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/bte/internal/bt"
	"github.com/joeycumines/bte/internal/factory"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHost(t *testing.T, src string) *Host {
	t.Helper()
	h := NewHost(WithLogger(quietLogger()))
	require.NoError(t, h.Load("test.js", src))
	return h
}

func tick(t *testing.T, tree *bt.Tree) bt.Status {
	t.Helper()
	s, err := tree.TickRoot()
	require.NoError(t, err)
	return s
}

const countdownJS = `
const bte = require("bte");
bte.registerCondition("Positive", (bb) => bb.lookup("n") > 0);
bte.registerAction("Countdown", (bb) => {
	const n = bb.get("n") - 1;
	bb.set("n", n);
	return n > 0 ? bte.RUNNING : bte.SUCCESS;
}, { halt: (bb) => bb.set("halted", true) });
`

const countdownXML = `<root><BehaviorTree ID="T"><Sequence><Positive/><Countdown/></Sequence></BehaviorTree></root>`

func newCountdown(t *testing.T, n int) (*Host, *bt.Tree) {
	t.Helper()
	h := newHost(t, countdownJS)
	f := factory.New(factory.WithLogger(quietLogger()))
	require.NoError(t, h.RegisterWith(f))

	bb := bt.NewBlackboard(nil)
	bb.Set("n", n)
	tree, err := f.CreateTreeFromText(countdownXML, bb)
	require.NoError(t, err)
	return h, tree
}

func TestRegisterWith(t *testing.T) {
	t.Parallel()

	h, tree := newCountdown(t, 3)
	assert.Equal(t, []string{"Positive", "Countdown"}, h.Declared())
	assert.Equal(t, bt.KindCondition, tree.RootNode().Children()[0].Kind())
	assert.Equal(t, bt.KindAction, tree.RootNode().Children()[1].Kind())

	assert.Equal(t, bt.Running, tick(t, tree))
	assert.Equal(t, bt.Running, tick(t, tree))
	assert.Equal(t, bt.Success, tick(t, tree))

	n, err := tree.RootBlackboard().Get("n")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRegisterWith_Halt(t *testing.T) {
	t.Parallel()

	_, tree := newCountdown(t, 5)
	require.Equal(t, bt.Running, tick(t, tree))
	require.NoError(t, tree.HaltTree())

	halted, err := tree.RootBlackboard().Get("halted")
	require.NoError(t, err)
	assert.Equal(t, true, halted)
}

func TestRegisterWith_Duplicate(t *testing.T) {
	t.Parallel()

	h := newHost(t, `require("bte").registerAction("Sequence", () => "SUCCESS");`)
	err := h.RegisterWith(factory.New())
	require.ErrorIs(t, err, factory.ErrDuplicate)
}

func TestDeclare_Errors(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		`require("bte").registerAction("", () => true);`,
		`require("bte").registerAction("A", 42);`,
		`require("bte").registerAction("A", () => true, { halt: 1 });`,
		`const bte = require("bte"); bte.registerAction("A", () => true); bte.registerCondition("A", () => true);`,
	} {
		h := NewHost(WithLogger(quietLogger()))
		err := h.Load("bad.js", src)
		require.Error(t, err, src)
		assert.ErrorContains(t, err, "TypeError", src)
	}
}

func TestLeaf_ResultShapes(t *testing.T) {
	t.Parallel()

	h := newHost(t, `
function named() { return "RUNNING"; }
function yes() { return true; }
function code() { return 2; }
function fractional() { return 1.5; }
function nothing() {}
function promised() { return Promise.resolve("SUCCESS"); }
function shouting() { return "success"; }
`)

	for _, tc := range []struct {
		fn   string
		want bt.Status
		err  error
	}{
		{"named", bt.Running, nil},
		{"yes", bt.Success, nil},
		{"code", bt.Success, nil},
		{"fractional", bt.Failure, bt.ErrUnmappedResult},
		{"nothing", bt.Failure, bt.ErrUnmappedResult},
		{"promised", bt.Failure, bt.ErrUnmappedResult},
		{"shouting", bt.Failure, bt.ErrUnknownStatusName},
	} {
		fn, err := h.Leaf(tc.fn)
		require.NoError(t, err, tc.fn)
		res, err := fn(bt.NewBlackboard(nil))
		require.NoError(t, err, tc.fn)
		got, err := res.Status()
		assert.Equal(t, tc.want, got, tc.fn)
		if tc.err == nil {
			assert.NoError(t, err, tc.fn)
		} else {
			assert.ErrorIs(t, err, tc.err, tc.fn)
		}
	}
}

func TestLeaf_NotAFunction(t *testing.T) {
	t.Parallel()

	h := newHost(t, `var answer = 42;`)
	_, err := h.Leaf("answer")
	require.Error(t, err)
	_, err = h.Leaf("missing")
	require.Error(t, err)
}

func TestLeaf_ExceptionFailsLeaf(t *testing.T) {
	t.Parallel()

	h := newHost(t, `
function boom() { throw new Error("boom"); }
function missingKey(bb) { return bb.get("absent"); }
`)

	for _, name := range []string{"boom", "missingKey"} {
		fn, err := h.Leaf(name)
		require.NoError(t, err)
		tree, err := bt.NewTree(bt.NewAction(name, fn, bt.WithLock(h.Locker())), bt.WithLogger(quietLogger()))
		require.NoError(t, err)

		var reported *bt.LeafError
		tree.OnLeafError(func(le *bt.LeafError) { reported = le })

		assert.Equal(t, bt.Failure, tick(t, tree), name)
		require.NotNil(t, reported, name)
		assert.Equal(t, name, reported.Name)
	}
}

func TestBlackboardView(t *testing.T) {
	t.Parallel()

	h := newHost(t, `
function inspect(bb) {
	bb.set("seen", bb.keys().join(","));
	bb.set("missing", bb.lookup("nope") === undefined);
	bb.set("inherited", bb.get("fromParent"));
	bb.delete("scratch");
	return bb.has("fromParent") && !bb.has("nope");
}
`)
	fn, err := h.Leaf("inspect")
	require.NoError(t, err)

	parent := bt.NewBlackboard(nil)
	parent.Set("fromParent", "hello")
	bb := bt.NewBlackboard(parent)
	bb.Set("b", 2)
	bb.Set("a", 1)
	bb.Set("scratch", true)

	res, err := fn(bb)
	require.NoError(t, err)
	status, err := res.Status()
	require.NoError(t, err)
	assert.Equal(t, bt.Success, status)

	assert.Equal(t, map[string]any{
		"a":         1,
		"b":         2,
		"seen":      "a,b,scratch",
		"missing":   true,
		"inherited": "hello",
	}, bb.Snapshot())
	assert.False(t, parent.Has("seen"))
}

func TestReentrantTick(t *testing.T) {
	t.Parallel()

	h := newHost(t, `
const bte = require("bte");
bte.registerAction("Inner", (bb) => { bb.set("inner", true); return bte.SUCCESS; });
function outer(bb) { return tickInner(); }
`)
	f := factory.New(factory.WithLogger(quietLogger()))
	require.NoError(t, h.RegisterWith(f))
	inner, err := f.CreateTreeFromText(`<root><BehaviorTree ID="I"><Inner/></BehaviorTree></root>`, nil)
	require.NoError(t, err)

	require.NoError(t, h.Set("tickInner", func() (string, error) {
		s, err := inner.TickRoot()
		return s.String(), err
	}))

	fn, err := h.Leaf("outer")
	require.NoError(t, err)
	outer, err := bt.NewTree(bt.NewAction("outer", fn, bt.WithLock(h.Locker())), bt.WithLogger(quietLogger()))
	require.NoError(t, err)

	assert.Equal(t, bt.Success, tick(t, outer))
	assert.True(t, inner.RootBlackboard().Has("inner"))
}

func TestConcurrentTrees(t *testing.T) {
	t.Parallel()

	h := newHost(t, `
var counter = 0;
require("bte").registerAction("Inc", () => { counter++; return "SUCCESS"; });
function count() { return counter; }
`)
	f := factory.New(factory.WithLogger(quietLogger()))
	require.NoError(t, h.RegisterWith(f))

	const trees, ticks = 4, 50
	var wg sync.WaitGroup
	for range trees {
		tree, err := f.CreateTreeFromText(`<root><BehaviorTree ID="T"><Inc/></BehaviorTree></root>`, nil)
		require.NoError(t, err)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range ticks {
				if _, err := tree.TickRoot(); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	fn, err := h.Leaf("count")
	require.NoError(t, err)
	res, err := fn(nil)
	require.NoError(t, err)
	assert.Equal(t, "Code(200)", res.String())
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "leaves.js")
	require.NoError(t, os.WriteFile(path, []byte(countdownJS), 0o644))

	h := NewHost(WithLogger(quietLogger()))
	require.NoError(t, h.LoadFile(path))
	assert.Equal(t, []string{"Positive", "Countdown"}, h.Declared())

	require.ErrorIs(t, h.LoadFile(filepath.Join(t.TempDir(), "none.js")), os.ErrNotExist)
	require.Error(t, h.Load("syntax.js", "function ("))
}

func TestReentrantLock(t *testing.T) {
	t.Parallel()

	var l reentrantLock
	l.Lock()
	l.Lock()
	l.Unlock()

	acquired := make(chan struct{})
	go func() {
		l.Lock()
		close(acquired)
		l.Unlock()
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired by another goroutine while held")
	default:
	}
	l.Unlock()
	<-acquired
}
