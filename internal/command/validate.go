package command

import (
	"flag"
	"fmt"
	"io"

	"github.com/joeycumines/bte/internal/bt"
	"github.com/joeycumines/bte/internal/btlog"
	"github.com/joeycumines/bte/internal/config"
)

// ValidateCommand builds a tree without ticking it and prints its
// structure.
type ValidateCommand struct {
	*BaseCommand
	config     *config.Config
	treePath   string
	scriptPath string
}

// NewValidateCommand creates a new validate command.
func NewValidateCommand(cfg *config.Config) *ValidateCommand {
	return &ValidateCommand{
		BaseCommand: NewBaseCommand(
			"validate",
			"Check that a tree definition builds and print its structure",
			"validate -tree FILE [-script FILE]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the validate command.
func (c *ValidateCommand) SetupFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.treePath, "tree", c.treePath, "XML tree definition file")
	fs.StringVar(&c.scriptPath, "script", c.scriptPath, "JavaScript file declaring leaves")
}

// Execute builds the tree and prints it.
func (c *ValidateCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return ErrUnexpectedArgs
	}
	logger, err := resolveLogger(stderr, "", "", c.config)
	if err != nil {
		return err
	}
	tree, err := loadTree(c.config, c.treePath, c.scriptPath, bt.NewBlackboard(nil), logger)
	if err != nil {
		return err
	}
	defer tree.Close()
	return btlog.PrintTree(stdout, tree)
}
