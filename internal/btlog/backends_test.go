package btlog

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/bte/internal/bt"
)

func TestMulti(t *testing.T) {
	t.Parallel()

	ok, bad := new(recorder), &recorder{fail: errBackend}
	m := Multi(ok, bad)

	err := m.WriteBatch(context.Background(), []bt.Transition{transition(0)})
	require.ErrorIs(t, err, errBackend)
	assert.Equal(t, 1, ok.total())
	assert.Equal(t, 1, bad.total(), "every backend is written even if one fails")

	require.NoError(t, m.Close())
	assert.Equal(t, 1, ok.closed)
	assert.Equal(t, 1, bad.closed)
}

type closeBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closeBuffer) Close() error {
	c.closed = true
	return nil
}

func TestJSONL(t *testing.T) {
	t.Parallel()

	var buf closeBuffer
	j := NewJSONL(&buf)
	batch := []bt.Transition{transition(0), transition(1)}
	batch[1].Current = bt.Failure
	require.NoError(t, j.WriteBatch(context.Background(), batch))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &raw))
	assert.Equal(t, "root/n1", raw["path"])
	assert.Equal(t, "Action", raw["kind"])
	assert.Equal(t, "IDLE", raw["previous"])
	assert.Equal(t, "FAILURE", raw["current"])

	var decoded []bt.Transition
	sc := bufio.NewScanner(strings.NewReader(buf.String()))
	for sc.Scan() {
		var tr bt.Transition
		require.NoError(t, json.Unmarshal(sc.Bytes(), &tr))
		decoded = append(decoded, tr)
	}
	if diff := cmp.Diff(batch, decoded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, j.Close())
	assert.True(t, buf.closed)
}

func TestRotatingFileWriter(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "bt.jsonl")
	w, err := NewRotatingFileWriter(path, 10, 2)
	require.NoError(t, err)

	for _, line := range []string{"aaaaaa\n", "bbbbbb\n", "cccccc\n", "dddddd\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	read := func(p string) string {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		return string(data)
	}
	assert.Equal(t, "dddddd\n", read(path))
	assert.Equal(t, "cccccc\n", read(path+".1"))
	assert.Equal(t, "bbbbbb\n", read(path+".2"))
	assert.NoFileExists(t, path+".3", "backups beyond the retention count are removed")

	_, err = w.Write([]byte("x"))
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestRotatingFileWriter_NoBackups(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bt.log")
	require.NoError(t, os.WriteFile(path, []byte("existing\n"), 0o644))

	w, err := NewRotatingFileWriter(path, 12, 0)
	require.NoError(t, err)
	_, err = w.Write([]byte("new line\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "new line\n", string(data))
	assert.NoFileExists(t, path+".1")
}

func TestRotatingFileWriter_RotationFailureLogged(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bt.log")
	// A non-empty directory in the backup slot can be neither removed nor
	// renamed over.
	require.NoError(t, os.MkdirAll(filepath.Join(path+".1", "occupied"), 0o755))

	var logs bytes.Buffer
	w, err := NewRotatingFileWriter(path, 10, 1,
		WithRotationLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	require.NoError(t, err)

	for _, line := range []string{"aaaaaa\n", "bbbbbb\n", "cccccc\n"} {
		_, err := w.Write([]byte(line))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "aaaaaa\nbbbbbb\ncccccc\n", string(data), "writes continue in the current file")
	assert.Equal(t, 2, strings.Count(logs.String(), "log rotation failed"), "every retried rotation is reported")
	assert.DirExists(t, path+".1")
}

func TestRotatingFileWriter_Disabled(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bt.log")
	w, err := NewRotatingFileWriter(path, 0, 3)
	require.NoError(t, err)
	for range 100 {
		_, err := w.Write([]byte("0123456789\n"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	assert.NoFileExists(t, path+".1")
}

func TestConsole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	c := NewConsole(&buf, WithNameWidth(12))
	batch := []bt.Transition{transition(0), transition(1)}
	batch[1].Path = "root/日本"
	batch[1].Previous, batch[1].Current = bt.Running, bt.Success
	require.NoError(t, c.WriteBatch(context.Background(), batch))
	require.NoError(t, c.Close())

	assert.Equal(t,
		"03:04:05.250 root/n0      IDLE -> RUNNING\n"+
			"03:04:05.251 root/日本    RUNNING -> SUCCESS\n",
		buf.String())
}

func TestConsole_Color(t *testing.T) {
	t.Parallel()

	var plain, colored bytes.Buffer
	require.NoError(t, NewConsole(&plain).WriteBatch(context.Background(), []bt.Transition{transition(0)}))
	require.NoError(t, NewConsole(&colored, WithColor(true)).WriteBatch(context.Background(), []bt.Transition{transition(0)}))

	assert.NotContains(t, plain.String(), "\x1b[", "a buffer is not a terminal")
	assert.Contains(t, colored.String(), "\x1b[")
	assert.Contains(t, colored.String(), "RUNNING")
}

func TestPrintTree(t *testing.T) {
	t.Parallel()

	leaf := func(name string) *bt.Node {
		return bt.NewAction(name, func(*bt.Blackboard) (bt.Result, error) { return bt.Bool(true), nil })
	}
	par, err := bt.NewParallel("both", 1, leaf("a"), leaf("b"))
	require.NoError(t, err)
	tree, err := bt.NewTree(bt.NewSequence("main",
		bt.NewCondition("ready", func(*bt.Blackboard) (bt.Result, error) { return bt.Bool(true), nil }),
		par,
		bt.NewSubTree("dock", bt.NewKeepRunningUntilFailure("", leaf("c")), true),
		bt.NewSubTree("scoped", leaf("d"), false),
	))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, PrintTree(&buf, tree))
	assert.Equal(t, `main [Sequence]
  ready [Condition]
  both [Parallel 1/2]
    a [Action]
    b [Action]
  dock [SubTree shared]
    KeepRunningUntilFailure [KeepRunningUntilFailure]
      c [Action]
  scoped [SubTree]
    d [Action]
`, buf.String())
}

func TestSQLite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "transitions.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)

	batch := []bt.Transition{transition(0), transition(1), transition(2)}
	batch[2].Kind = bt.KindParallel
	batch[2].Current = bt.Failure
	require.NoError(t, s.WriteBatch(context.Background(), batch[:2]))
	require.NoError(t, s.WriteBatch(context.Background(), batch[2:]))

	got, err := s.Transitions(context.Background(), 0)
	require.NoError(t, err)
	if diff := cmp.Diff(batch, got); diff != "" {
		t.Errorf("stored transitions mismatch (-want +got):\n%s", diff)
	}

	got, err = s.Transitions(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.NoError(t, s.Close())

	// Reopening keeps existing rows.
	s, err = OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()
	got, err = s.Transitions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSQLite_CancelledContext(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite(filepath.Join(t.TempDir(), "transitions.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.WriteBatch(ctx, []bt.Transition{transition(0)}))

	got, err := s.Transitions(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}
