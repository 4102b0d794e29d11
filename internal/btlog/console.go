package btlog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/rivo/uniseg"
	"golang.org/x/term"

	"github.com/joeycumines/bte/internal/bt"
)

const defaultNameWidth = 32

var statusStyles = map[bt.Status]lipgloss.Style{
	bt.Idle:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	bt.Running: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	bt.Success: lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
	bt.Failure: lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// Console writes one human readable line per transition:
//
//	12:00:01.250 main/approach                  IDLE -> RUNNING
//
// Statuses are coloured when the writer is a terminal.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	color     bool
	nameWidth int
}

// ConsoleOption configures a Console.
type ConsoleOption func(*Console)

// WithColor forces colour on or off instead of detecting a terminal.
func WithColor(enabled bool) ConsoleOption {
	return func(c *Console) { c.color = enabled }
}

// WithNameWidth sets the display width of the node path column.
func WithNameWidth(n int) ConsoleOption {
	return func(c *Console) { c.nameWidth = n }
}

// NewConsole returns a console backend writing to w.
func NewConsole(w io.Writer, opts ...ConsoleOption) *Console {
	c := &Console{w: w, color: isTerminal(w), nameWidth: defaultNameWidth}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WriteBatch implements Backend.
func (c *Console) WriteBatch(_ context.Context, batch []bt.Transition) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var sb strings.Builder
	for _, tr := range batch {
		sb.WriteString(tr.Time.Format("15:04:05.000"))
		sb.WriteByte(' ')
		sb.WriteString(pad(tr.Path, c.nameWidth))
		sb.WriteByte(' ')
		sb.WriteString(c.status(tr.Previous))
		sb.WriteString(" -> ")
		sb.WriteString(c.status(tr.Current))
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(c.w, sb.String())
	return err
}

// Close implements Backend. The writer is not closed.
func (c *Console) Close() error { return nil }

func (c *Console) status(s bt.Status) string {
	if !c.color {
		return s.String()
	}
	return statusStyles[s].Render(s.String())
}

// pad right-pads s with spaces to width display cells.
func pad(s string, width int) string {
	w := uniseg.StringWidth(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// PrintTree writes the structure of tree, one node per line, indented by
// depth:
//
//	main [Sequence]
//	  ready [Condition]
//	  both [Parallel 2/2]
func PrintTree(w io.Writer, tree *bt.Tree) error {
	var err error
	tree.Walk(func(n *bt.Node, depth int) bool {
		if err != nil {
			return false
		}
		detail := n.Kind().String()
		switch n.Kind() {
		case bt.KindParallel:
			detail = fmt.Sprintf("%s %d/%d", detail, n.Threshold(), len(n.Children()))
		case bt.KindSubTree:
			if n.Shared() {
				detail += " shared"
			}
		}
		_, err = fmt.Fprintf(w, "%s%s [%s]\n", strings.Repeat("  ", depth), n.Name(), detail)
		return true
	})
	return err
}
