// Package runner drives a behavior tree at a fixed rate until a stop
// condition is met.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	behaviortree "github.com/joeycumines/go-behaviortree"

	"github.com/joeycumines/bte/internal/bt"
)

// DefaultInterval is the default time between ticks.
const DefaultInterval = 100 * time.Millisecond

// StopPolicy selects which root statuses end a run.
type StopPolicy int

const (
	// StopOnTerminal stops on Success or Failure.
	StopOnTerminal StopPolicy = iota
	// StopOnSuccess stops on Success only.
	StopOnSuccess
	// StopOnFailure stops on Failure only.
	StopOnFailure
	// StopNever only stops on max ticks, errors or cancellation.
	StopNever
)

var policyNames = [...]string{
	StopOnTerminal: "terminal",
	StopOnSuccess:  "success",
	StopOnFailure:  "failure",
	StopNever:      "never",
}

func (p StopPolicy) String() string {
	if p >= 0 && int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("StopPolicy(%d)", int(p))
}

// ParseStopPolicy parses the String form of a policy.
func ParseStopPolicy(s string) (StopPolicy, error) {
	for i, name := range policyNames {
		if name == s {
			return StopPolicy(i), nil
		}
	}
	return 0, fmt.Errorf("runner: unknown stop policy %q (want terminal, success, failure or never)", s)
}

func (p StopPolicy) stops(s bt.Status) bool {
	switch p {
	case StopOnTerminal:
		return s.IsTerminal()
	case StopOnSuccess:
		return s == bt.Success
	case StopOnFailure:
		return s == bt.Failure
	}
	return false
}

// errStop ends the ticker from inside a tick.
var errStop = errors.New("runner: stop")

// Runner ticks one tree periodically.
type Runner struct {
	tree     *bt.Tree
	interval time.Duration
	maxTicks int64
	policy   StopPolicy
	logger   *slog.Logger

	ticks atomic.Int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the time between ticks.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithMaxTicks stops the run after n ticks. Zero means unlimited.
func WithMaxTicks(n int) Option {
	return func(r *Runner) { r.maxTicks = int64(max(n, 0)) }
}

// WithStopPolicy sets which statuses end the run.
func WithStopPolicy(p StopPolicy) Option {
	return func(r *Runner) { r.policy = p }
}

// WithLogger sets the logger for run progress.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New returns a runner for tree.
func New(tree *bt.Tree, opts ...Option) *Runner {
	r := &Runner{
		tree:     tree,
		interval: DefaultInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ticks returns the number of ticks performed so far.
func (r *Runner) Ticks() int64 { return r.ticks.Load() }

// Run ticks the tree every interval until the stop policy matches, the tick
// limit is reached, a tick fails, or ctx is done. It returns the last root
// status. If the root is left Running, the tree is halted before returning.
//
// Cancellation is reported as ctx.Err(); stopping by policy or tick limit
// returns a nil error.
func (r *Runner) Run(ctx context.Context) (bt.Status, error) {
	var (
		last    = bt.Idle
		stopped bool
		tickErr error
	)
	node := behaviortree.New(func([]behaviortree.Node) (behaviortree.Status, error) {
		s, err := r.tree.TickRoot()
		if err != nil {
			tickErr = err
			return behaviortree.Failure, err
		}
		last = s
		n := r.ticks.Add(1)
		r.logger.Debug("[runner] tick", "tick", n, "status", s)
		if r.policy.stops(s) || (r.maxTicks > 0 && n >= r.maxTicks) {
			stopped = true
			return bt.ToBehaviorTree(s), errStop
		}
		return bt.ToBehaviorTree(s), nil
	})

	ticker := behaviortree.NewTicker(ctx, r.interval, node)
	<-ticker.Done()

	// The tick function is only called from the ticker goroutine, which has
	// exited once Done is closed.
	var err error
	switch {
	case stopped:
	case tickErr != nil:
		err = tickErr
	case ctx.Err() != nil:
		err = ctx.Err()
	default:
		err = ticker.Err()
	}

	if r.tree.RootNode().Status() == bt.Running {
		if herr := r.tree.HaltTree(); herr != nil && err == nil {
			err = herr
		}
	}
	r.logger.Info("[runner] stopped",
		"ticks", r.ticks.Load(),
		"status", last,
		"error", err)
	return last, err
}
