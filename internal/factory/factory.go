// Package factory builds behavior trees from XML descriptions, using the
// BehaviorTree.CPP v3 dialect, and a registry of named leaf behaviors.
//
//	<root main_tree_to_execute="MainTree">
//	  <BehaviorTree ID="MainTree">
//	    <Sequence name="root">
//	      <CheckBattery/>
//	      <Action ID="SayHello" name="greet"/>
//	      <SubTree ID="Dock"/>
//	    </Sequence>
//	  </BehaviorTree>
//	</root>
//
// A Factory is not safe for concurrent registration. Trees it builds are
// independent of each other and of the factory.
package factory

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"

	"github.com/joeycumines/bte/internal/bt"
)

// builtins is the closed set of non-leaf node types.
var builtins = map[string]bt.Kind{
	"Sequence":                bt.KindSequence,
	"Fallback":                bt.KindFallback,
	"Parallel":                bt.KindParallel,
	"KeepRunningUntilFailure": bt.KindKeepRunningUntilFailure,
}

// reserved element names that are never looked up in the registry.
var reserved = map[string]struct{}{
	"Action":         {},
	"Condition":      {},
	"SubTree":        {},
	"BehaviorTree":   {},
	"TreeNodesModel": {},
	"root":           {},
}

type registration struct {
	kind bt.Kind
	fn   bt.LeafFunc
	opts []bt.LeafOption
}

// Factory holds registered node types and tree definitions.
type Factory struct {
	nodes    map[string]registration
	trees    map[string]*element
	treeOpts []bt.Option
}

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the logger of every tree the factory builds. Options
// passed to the Create methods take precedence.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Factory) { f.treeOpts = append(f.treeOpts, bt.WithLogger(logger)) }
}

// New returns a factory with the built-in control and decorator nodes
// registered.
func New(opts ...Option) *Factory {
	f := &Factory{
		nodes: make(map[string]registration, len(builtins)),
		trees: make(map[string]*element),
	}
	for name, kind := range builtins {
		f.nodes[name] = registration{kind: kind}
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// RegisterSimpleAction registers fn as an action leaf under name.
func (f *Factory) RegisterSimpleAction(name string, fn bt.LeafFunc, opts ...bt.LeafOption) error {
	return f.registerLeaf(bt.KindAction, name, fn, opts)
}

// RegisterSimpleCondition registers fn as a condition leaf under name.
func (f *Factory) RegisterSimpleCondition(name string, fn bt.LeafFunc, opts ...bt.LeafOption) error {
	return f.registerLeaf(bt.KindCondition, name, fn, opts)
}

func (f *Factory) registerLeaf(kind bt.Kind, name string, fn bt.LeafFunc, opts []bt.LeafOption) error {
	if err := f.checkName(name); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("factory: %s %q has no callable", kind, name)
	}
	f.nodes[name] = registration{kind: kind, fn: fn, opts: slices.Clone(opts)}
	return nil
}

// RegisterNode registers name as an alias for one of the built-in node
// types: Sequence, Fallback, Parallel or KeepRunningUntilFailure.
func (f *Factory) RegisterNode(name, typeName string) error {
	kind, ok := builtins[typeName]
	if !ok {
		return fmt.Errorf("%w: %q (want one of %v)", ErrUnknownType, typeName, builtinNames())
	}
	if err := f.checkName(name); err != nil {
		return err
	}
	f.nodes[name] = registration{kind: kind}
	return nil
}

func (f *Factory) checkName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := reserved[name]; ok {
		return fmt.Errorf("%w: %q is a reserved element", ErrDuplicate, name)
	}
	if _, ok := f.nodes[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, name)
	}
	return nil
}

// Registered returns the sorted names of every registered node type,
// built-ins included.
func (f *Factory) Registered() []string {
	names := make([]string, 0, len(f.nodes))
	for name := range f.nodes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Trees returns the sorted IDs of the registered tree definitions.
func (f *Factory) Trees() []string {
	ids := make([]string, 0, len(f.trees))
	for id := range f.trees {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// RegisterFromText registers every BehaviorTree definition in text, for use
// by CreateTree and as SubTree targets. Nothing is registered on error.
func (f *Factory) RegisterFromText(text string) error {
	doc, err := parseDocument([]byte(text))
	if err != nil {
		return err
	}
	for _, id := range doc.order {
		if _, ok := f.trees[id]; ok {
			return fmt.Errorf("%w: tree %q", ErrDuplicate, id)
		}
	}
	for _, id := range doc.order {
		f.trees[id] = doc.trees[id]
	}
	return nil
}

// RegisterFromFile is RegisterFromText reading from path.
func (f *Factory) RegisterFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("factory: read tree file: %w", err)
	}
	return f.RegisterFromText(string(data))
}

// CreateTreeFromText builds the main tree of text. Trees defined in text
// are visible to its SubTree references alongside the registered ones, but
// are not registered. A nil bb gives the tree a fresh root blackboard.
func (f *Factory) CreateTreeFromText(text string, bb *bt.Blackboard, opts ...bt.Option) (*bt.Tree, error) {
	doc, err := parseDocument([]byte(text))
	if err != nil {
		return nil, err
	}
	defs := make(map[string]*element, len(f.trees)+len(doc.trees))
	for id, def := range f.trees {
		defs[id] = def
	}
	for _, id := range doc.order {
		if _, ok := defs[id]; ok {
			return nil, fmt.Errorf("%w: tree %q", ErrDuplicate, id)
		}
		defs[id] = doc.trees[id]
	}

	mainID := doc.mainTree
	if mainID == "" {
		if len(doc.order) != 1 {
			return nil, fmt.Errorf("%w: main_tree_to_execute is required with %d trees", ErrNoMainTree, len(doc.order))
		}
		mainID = doc.order[0]
	}
	return f.create(defs, mainID, bb, opts)
}

// CreateTreeFromFile is CreateTreeFromText reading from path.
func (f *Factory) CreateTreeFromFile(path string, bb *bt.Blackboard, opts ...bt.Option) (*bt.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("factory: read tree file: %w", err)
	}
	return f.CreateTreeFromText(string(data), bb, opts...)
}

// CreateTree builds a registered tree definition.
func (f *Factory) CreateTree(id string, bb *bt.Blackboard, opts ...bt.Option) (*bt.Tree, error) {
	return f.create(f.trees, id, bb, opts)
}

func (f *Factory) create(defs map[string]*element, id string, bb *bt.Blackboard, opts []bt.Option) (*bt.Tree, error) {
	def, ok := defs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not defined", ErrNoMainTree, id)
	}
	b := builder{factory: f, defs: defs, active: map[string]bool{id: true}}
	root, err := b.build(id, &def.Children[0], "")
	if err != nil {
		return nil, err
	}
	treeOpts := slices.Concat(f.treeOpts, opts)
	if bb != nil {
		treeOpts = append(treeOpts, bt.WithBlackboard(bb))
	}
	tree, err := bt.NewTree(root, treeOpts...)
	if err != nil {
		return nil, &BuildError{Tree: id, Err: err}
	}
	return tree, nil
}

// builder instantiates fresh nodes for one tree.
type builder struct {
	factory *Factory
	defs    map[string]*element
	// active holds the tree IDs on the current SubTree expansion path.
	active map[string]bool
}

func (b *builder) build(tree string, e *element, parent string) (*bt.Node, error) {
	path := e.tag()
	if parent != "" {
		path = parent + "/" + path
	}
	fail := func(err error) (*bt.Node, error) {
		return nil, &BuildError{Tree: tree, Path: path, Err: err}
	}
	name, _ := e.attr("name")

	switch e.tag() {
	case "Action", "Condition":
		id, _ := e.attr("ID")
		if id == "" {
			return fail(fmt.Errorf("%w: <%s> without ID", ErrMalformed, e.tag()))
		}
		reg, ok := b.factory.nodes[id]
		if !ok || reg.fn == nil {
			return fail(fmt.Errorf("%w: leaf %q", ErrUnknownNode, id))
		}
		return b.leaf(reg, id, name, e, fail)
	case "SubTree":
		return b.subTree(tree, e, name, path, fail)
	}

	reg, ok := b.factory.nodes[e.tag()]
	if !ok {
		return fail(fmt.Errorf("%w: <%s>", ErrUnknownNode, e.tag()))
	}
	if reg.fn != nil {
		return b.leaf(reg, e.tag(), name, e, fail)
	}

	children := make([]*bt.Node, 0, len(e.Children))
	for i := range e.Children {
		c, err := b.build(tree, &e.Children[i], path)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	if name == "" {
		name = e.tag()
	}

	switch reg.kind {
	case bt.KindSequence, bt.KindFallback, bt.KindParallel:
		if len(children) == 0 {
			return fail(fmt.Errorf("%w: control node %q has no children", ErrMalformed, name))
		}
	case bt.KindKeepRunningUntilFailure:
		if len(children) != 1 {
			return fail(fmt.Errorf("%w: decorator %q must have exactly one child, has %d", ErrMalformed, name, len(children)))
		}
	}

	switch reg.kind {
	case bt.KindSequence:
		return bt.NewSequence(name, children...), nil
	case bt.KindFallback:
		return bt.NewFallback(name, children...), nil
	case bt.KindParallel:
		m, err := successThreshold(e, len(children))
		if err != nil {
			return fail(err)
		}
		n, err := bt.NewParallel(name, m, children...)
		if err != nil {
			return fail(err)
		}
		return n, nil
	case bt.KindKeepRunningUntilFailure:
		return bt.NewKeepRunningUntilFailure(name, children[0]), nil
	}
	return fail(fmt.Errorf("%w: <%s> has unsupported kind %s", ErrUnknownNode, e.tag(), reg.kind))
}

func (b *builder) leaf(reg registration, id, name string, e *element, fail func(error) (*bt.Node, error)) (*bt.Node, error) {
	if len(e.Children) != 0 {
		return fail(fmt.Errorf("%w: leaf %q has children", ErrMalformed, id))
	}
	if name == "" {
		name = id
	}
	if reg.kind == bt.KindCondition {
		return bt.NewCondition(name, reg.fn, reg.opts...), nil
	}
	return bt.NewAction(name, reg.fn, reg.opts...), nil
}

func (b *builder) subTree(tree string, e *element, name, path string, fail func(error) (*bt.Node, error)) (*bt.Node, error) {
	id, _ := e.attr("ID")
	if id == "" {
		return fail(fmt.Errorf("%w: <SubTree> without ID", ErrMalformed))
	}
	if len(e.Children) != 0 {
		return fail(fmt.Errorf("%w: <SubTree> %q has children", ErrMalformed, id))
	}
	def, ok := b.defs[id]
	if !ok {
		return fail(fmt.Errorf("%w: subtree %q", ErrUnknownNode, id))
	}
	if b.active[id] {
		return fail(fmt.Errorf("%w: %q", ErrRecursion, id))
	}
	shared := false
	if v, ok := e.attr("__shared_blackboard"); ok {
		var err error
		if shared, err = strconv.ParseBool(v); err != nil {
			return fail(fmt.Errorf("%w: __shared_blackboard=%q", ErrMalformed, v))
		}
	}

	b.active[id] = true
	child, err := b.build(id, &def.Children[0], path)
	delete(b.active, id)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = id
	}
	return bt.NewSubTree(name, child, shared), nil
}

// successThreshold reads the required success_threshold attribute. Negative
// values count from the end, so -1 requires every child.
func successThreshold(e *element, n int) (int, error) {
	v, ok := e.attr("success_threshold")
	if !ok {
		return 0, fmt.Errorf("%w: Parallel requires success_threshold", ErrMalformed)
	}
	m, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: success_threshold=%q", ErrMalformed, v)
	}
	if m < 0 {
		m += n + 1
	}
	if m < 0 || m > n {
		return 0, fmt.Errorf("%w: success_threshold=%s with %d children", bt.ErrInvalidThreshold, v, n)
	}
	return m, nil
}

func builtinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
