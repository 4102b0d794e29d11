package command

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joeycumines/bte/internal/bt"
	"github.com/joeycumines/bte/internal/config"
	"github.com/joeycumines/bte/internal/exprleaf"
	"github.com/joeycumines/bte/internal/factory"
	"github.com/joeycumines/bte/internal/jsleaf"
)

// ErrNoTree is returned when a command needs -tree and it was not given.
var ErrNoTree = errors.New("-tree is required")

// newFactory returns a factory with the configured conditions and, if
// scriptPath is set, the leaves declared by that script.
func newFactory(cfg *config.Config, scriptPath string, logger *slog.Logger) (*factory.Factory, error) {
	f := factory.New(factory.WithLogger(logger))

	for _, cond := range cfg.Conditions {
		if err := exprleaf.Register(f, cond.Name, cond.Expression); err != nil {
			return nil, err
		}
	}

	if scriptPath != "" {
		host := jsleaf.NewHost(jsleaf.WithLogger(logger))
		if err := host.LoadFile(scriptPath); err != nil {
			return nil, err
		}
		if err := host.RegisterWith(f); err != nil {
			return nil, err
		}
		logger.Debug("[command] script loaded", "path", scriptPath, "leaves", host.Declared())
	}

	return f, nil
}

// loadTree builds the tree described by treePath.
func loadTree(cfg *config.Config, treePath, scriptPath string, bb *bt.Blackboard, logger *slog.Logger) (*bt.Tree, error) {
	if treePath == "" {
		return nil, ErrNoTree
	}
	f, err := newFactory(cfg, scriptPath, logger)
	if err != nil {
		return nil, err
	}
	tree, err := f.CreateTreeFromFile(treePath, bb, bt.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create tree: %w", err)
	}
	return tree, nil
}
