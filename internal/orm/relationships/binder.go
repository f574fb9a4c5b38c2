package relationships

import (
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Binder holds the bindings of one table and the relations resolved from them.
//
// Resolution is serialized per binder by resolveMu. The binding and relation
// maps are guarded by mu, which is never held while another binder is
// consulted, so reciprocal resolutions on two tables cannot deadlock.
type Binder struct {
	owner  Table
	lookup Lookup
	logger *zap.Logger

	resolveMu sync.Mutex

	mu        sync.RWMutex
	bindings  map[string]Binding
	order     []string
	aliases   map[string]string // component name -> alias
	relations map[string]Relation
}

// NewBinder creates the binder of owner. Related tables are obtained through lookup.
func NewBinder(owner Table, lookup Lookup, logger *zap.Logger) *Binder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Binder{
		owner:     owner,
		lookup:    lookup,
		logger:    logger,
		bindings:  make(map[string]Binding),
		aliases:   make(map[string]string),
		relations: make(map[string]Relation),
	}
}

// Bind declares a relation to the named component. The name may carry an
// alias in the form "<name> as <alias>". An empty localKey selects the
// default key during resolution.
func (b *Binder) Bind(name, fieldPath string, cardinality Cardinality, localKey string) error {
	binding, err := newBinding(name, fieldPath, cardinality, localKey)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isBoundLocked(binding.Alias) {
		return fmt.Errorf("%w: %s already has a relation named %s",
			ErrDuplicateRelation, b.owner.ComponentName(), binding.Alias)
	}
	b.addLocked(binding)
	return nil
}

// BindIfAbsent binds like Bind but leaves an existing binding of the same
// alias untouched. It reports whether a binding was added.
func (b *Binder) BindIfAbsent(name, fieldPath string, cardinality Cardinality, localKey string) (bool, error) {
	binding, err := newBinding(name, fieldPath, cardinality, localKey)
	if err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isBoundLocked(binding.Alias) {
		return false, nil
	}
	b.addLocked(binding)
	return true, nil
}

func newBinding(name, fieldPath string, cardinality Cardinality, localKey string) (Binding, error) {
	component, alias := parseName(name)
	if component == "" || alias == "" {
		return Binding{}, fmt.Errorf("%w: empty relation name %q", ErrInvalidRelation, name)
	}

	binding := Binding{
		Name:        component,
		Alias:       alias,
		FieldPath:   strings.TrimSpace(fieldPath),
		Cardinality: cardinality,
		LocalKey:    strings.ToLower(strings.TrimSpace(localKey)),
	}
	if _, _, err := binding.Split(); err != nil {
		return Binding{}, err
	}
	return binding, nil
}

func (b *Binder) isBoundLocked(alias string) bool {
	_, bound := b.bindings[alias]
	_, resolved := b.relations[alias]
	return bound || resolved
}

func (b *Binder) addLocked(binding Binding) {
	b.bindings[binding.Alias] = binding
	b.order = append(b.order, binding.Alias)
	if binding.Alias != binding.Name {
		b.aliases[binding.Name] = binding.Alias
	}
}

// Unbind removes a binding and its resolved relation. It returns false when
// the alias is not bound.
func (b *Binder) Unbind(alias string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	binding, ok := b.bindings[alias]
	if !ok {
		return false
	}

	delete(b.bindings, alias)
	delete(b.relations, alias)
	if b.aliases[binding.Name] == alias {
		delete(b.aliases, binding.Name)
	}
	b.order = lo.Without(b.order, alias)
	return true
}

// UnbindAll removes every binding and resolved relation
func (b *Binder) UnbindAll() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bindings = make(map[string]Binding)
	b.aliases = make(map[string]string)
	b.relations = make(map[string]Relation)
	b.order = nil
}

// Binding returns the binding stored under alias
func (b *Binder) Binding(alias string) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	binding, ok := b.bindings[alias]
	return binding, ok
}

// Bindings returns all bindings in declaration order
func (b *Binder) Bindings() []Binding {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return lo.Map(b.order, func(alias string, _ int) Binding {
		return b.bindings[alias]
	})
}

// BindingForName returns the first binding, in declaration order, whose
// related component is name
func (b *Binder) BindingForName(name string) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, alias := range b.order {
		if binding := b.bindings[alias]; binding.Name == name {
			return binding, true
		}
	}
	return Binding{}, false
}

// Alias returns the alias a component is bound under, or the name itself
func (b *Binder) Alias(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if alias, ok := b.aliases[name]; ok {
		return alias
	}
	return name
}

// HasRelation returns true if name is a bound alias or a component named in
// a binding's field path
func (b *Binder) HasRelation(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.bindings[name]; ok {
		return true
	}
	for _, binding := range b.bindings {
		if strings.Contains(binding.FieldPath, name+".") {
			return true
		}
	}
	return false
}

func (b *Binder) cached(alias string) (Relation, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rel, ok := b.relations[alias]
	return rel, ok
}

// Resolve returns the relation bound under alias, resolving and caching it
// on first use. Repeated calls return the same instance.
func (b *Binder) Resolve(alias string) (Relation, error) {
	if rel, ok := b.cached(alias); ok {
		return rel, nil
	}

	b.resolveMu.Lock()
	defer b.resolveMu.Unlock()

	if rel, ok := b.cached(alias); ok {
		return rel, nil
	}

	binding, ok := b.Binding(alias)
	if !ok {
		return nil, fmt.Errorf("%w: %s doesn't have a relation to %s",
			ErrUnknownRelation, b.owner.ComponentName(), alias)
	}

	rel, aux, err := b.resolve(binding)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	if aux != nil {
		if _, exists := b.relations[aux.Alias()]; !exists {
			b.relations[aux.Alias()] = aux
		}
	}
	b.relations[alias] = rel
	b.mu.Unlock()

	b.logger.Debug("relation resolved",
		zap.String("component", b.owner.ComponentName()),
		zap.String("alias", alias),
		zap.String("relation", Kind(rel)),
		zap.String("target", rel.Table().ComponentName()),
	)
	return rel, nil
}

// resolve builds the relation of a binding. The second result is the
// auxiliary relation from the owner to the join table of a many-to-many
// binding.
func (b *Binder) resolve(binding Binding) (Relation, Relation, error) {
	component, foreign, err := binding.Split()
	if err != nil {
		return nil, nil, err
	}

	target, err := b.lookup(binding.Name)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving %s.%s: %w", b.owner.ComponentName(), binding.Alias, err)
	}

	ownerName := b.owner.ComponentName()
	parents := b.owner.Parents()
	isOwn := func(name string) bool {
		return name == ownerName || lo.Contains(parents, name)
	}

	local := binding.LocalKey

	switch {
	case isOwn(component):
		if !binding.Cardinality.IsOne() {
			return nil, nil, fmt.Errorf("%w: only one-to-one relations are possible when a local key is used (%s.%s)",
				ErrInvalidRelation, ownerName, binding.Alias)
		}
		if local == "" {
			local = target.IdentifierName()
		}
		rel := &LocalKey{base{
			table:       target,
			local:       foreign,
			foreign:     local,
			cardinality: binding.Cardinality,
			alias:       binding.Alias,
		}}
		return rel, nil, nil

	case component == binding.Name || (component == binding.Alias && isOwn(binding.Name)):
		if local == "" {
			local = b.owner.IdentifierName()
		}
		rel := &ForeignKey{base{
			table:       target,
			local:       local,
			foreign:     foreign,
			cardinality: binding.Cardinality,
			alias:       binding.Alias,
		}}
		return rel, nil, nil
	}

	return b.resolveAssociation(binding, target, component, foreign, local)
}

// resolveAssociation handles bindings that go through a join table
func (b *Binder) resolveAssociation(binding Binding, target Table, component, foreign, local string) (Relation, Relation, error) {
	ownerName := b.owner.ComponentName()

	if binding.Cardinality != ManyAggregate {
		return nil, nil, fmt.Errorf("%w: only aggregate relations are allowed for many-to-many relations (%s.%s)",
			ErrInvalidRelation, ownerName, binding.Alias)
	}

	// Most-derived class first
	classes := append(append([]string{}, b.owner.Parents()...), ownerName)
	var (
		reverse Binding
		found   bool
	)
	for i := len(classes) - 1; i >= 0; i-- {
		if reverse, found = target.Binder().BindingForName(classes[i]); found {
			break
		}
	}
	if !found {
		return nil, nil, fmt.Errorf("%w: %s has no binding back to %s",
			ErrInvalidRelation, target.ComponentName(), ownerName)
	}

	if local == "" {
		local = b.owner.IdentifierName()
	}

	joinComponent, joinColumns, err := reverse.Split()
	if err != nil {
		return nil, nil, err
	}
	if joinComponent != component {
		return nil, nil, fmt.Errorf("%w: %s doesn't match %s", ErrInvalidRelation, joinComponent, component)
	}

	join, err := b.lookup(joinComponent)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving join table %s: %w", joinComponent, err)
	}

	if first, second, self := strings.Cut(joinColumns, "-"); self {
		aux := &ForeignKey{base{
			table:       join,
			local:       local,
			foreign:     first,
			cardinality: ManyComposite,
			alias:       joinComponent,
		}}
		rel := &SelfAssociation{
			base: base{
				table:       target,
				local:       first,
				foreign:     second,
				cardinality: binding.Cardinality,
				alias:       binding.Alias,
			},
			join: join,
		}
		return rel, aux, nil
	}

	joinBinder := join.Binder()
	if _, err := joinBinder.BindIfAbsent(ownerName, joinComponent+"."+joinColumns, OneAggregate, b.owner.IdentifierName()); err != nil {
		return nil, nil, err
	}
	if _, err := joinBinder.BindIfAbsent(target.ComponentName(), joinComponent+"."+foreign, OneAggregate, target.IdentifierName()); err != nil {
		return nil, nil, err
	}

	aux := &ForeignKey{base{
		table:       join,
		local:       local,
		foreign:     joinColumns,
		cardinality: ManyComposite,
		alias:       joinComponent,
	}}
	rel := &Association{
		base: base{
			table:       target,
			local:       joinColumns,
			foreign:     foreign,
			cardinality: binding.Cardinality,
			alias:       binding.Alias,
		},
		join: join,
	}
	return rel, aux, nil
}

// ResolveAll resolves every binding and returns all relations keyed by
// alias, including the auxiliary join table relations
func (b *Binder) ResolveAll() (map[string]Relation, error) {
	for _, binding := range b.Bindings() {
		if _, err := b.Resolve(binding.Alias); err != nil {
			return nil, err
		}
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	return lo.Assign(b.relations), nil
}

// CompositePaths returns the dotted component paths reachable through
// composite relations. Bindings that fail to resolve are left out.
func (b *Binder) CompositePaths() []string {
	return b.compositePaths(map[string]bool{})
}

func (b *Binder) compositePaths(visited map[string]bool) []string {
	name := b.owner.ComponentName()
	if visited[name] {
		return nil
	}
	visited[name] = true
	defer delete(visited, name)

	var paths []string
	for _, binding := range b.Bindings() {
		rel, err := b.Resolve(binding.Alias)
		if err != nil {
			b.logger.Debug("skipping unresolvable relation",
				zap.String("component", name),
				zap.String("alias", binding.Alias),
				zap.Error(err),
			)
			continue
		}
		if !rel.Cardinality().IsComposite() {
			continue
		}

		child := rel.Table()
		paths = append(paths, name+"."+child.ComponentName())
		for _, nested := range child.Binder().compositePaths(visited) {
			paths = append(paths, name+"."+nested)
		}
	}
	return paths
}
