// Package btlog records behavior tree status transitions.
//
// Trees deliver transitions synchronously on the ticking goroutine, so
// sinks that do I/O are wrapped in a Buffered sink, which queues
// transitions and writes them to a Backend in batches from its own
// goroutine:
//
//	sink := btlog.NewBuffered(btlog.Multi(
//		btlog.NewJSONL(file),
//		btlog.NewConsole(os.Stdout),
//	))
//	defer sink.Close()
//	cancel := sink.Attach(tree)
//	defer cancel()
package btlog

import (
	"context"
	"errors"

	"github.com/joeycumines/bte/internal/bt"
)

// Backend persists batches of transitions. WriteBatch is only called from
// one goroutine at a time and must not retain the slice.
type Backend interface {
	WriteBatch(ctx context.Context, batch []bt.Transition) error
	Close() error
}

type multi []Backend

// Multi returns a Backend writing every batch to each of backends in turn.
// Errors from all backends are joined.
func Multi(backends ...Backend) Backend {
	return multi(backends)
}

func (m multi) WriteBatch(ctx context.Context, batch []bt.Transition) error {
	var errs []error
	for _, b := range m {
		if err := b.WriteBatch(ctx, batch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, b := range m {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
