package table

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/conduit-lang/tablemap/internal/cache"
	"github.com/conduit-lang/tablemap/internal/orm/identity"
	"github.com/conduit-lang/tablemap/internal/orm/relationships"
	"github.com/conduit-lang/tablemap/internal/orm/schema"
)

// Option configures a Registry
type Option func(*Registry)

// WithLogger sets the logger of the registry and its tables
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithQueryBuilder sets the builder behind FindAll and FindBySQL
func WithQueryBuilder(builder QueryBuilder) Option {
	return func(r *Registry) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithSchemaCreator sets the creator used in create tables mode
func WithSchemaCreator(creator SchemaCreator) Option {
	return func(r *Registry) {
		r.creator = creator
	}
}

// WithCreateTables enables create tables mode
func WithCreateTables(enabled bool) Option {
	return func(r *Registry) {
		r.createTables = enabled
	}
}

// WithMetadataCache sets the cache relation descriptions are written to
func WithMetadataCache(driver cache.Driver) Option {
	return func(r *Registry) {
		r.metadata = driver
	}
}

// Registry holds the registered components and the tables built from them.
// Tables are built on first access and live as long as the registry.
type Registry struct {
	conn         Connection
	logger       *zap.Logger
	builder      QueryBuilder
	creator      SchemaCreator
	createTables bool
	metadata     cache.Driver

	mu         sync.Mutex
	components map[string]Component
	order      []string
	tables     map[string]*Table
	created    map[string]bool
}

// NewRegistry creates a registry whose tables query through conn
func NewRegistry(conn Connection, opts ...Option) *Registry {
	r := &Registry{
		conn:       conn,
		logger:     zap.NewNop(),
		builder:    directBuilder{},
		components: make(map[string]Component),
		tables:     make(map[string]*Table),
		created:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connection returns the connection shared by the tables
func (r *Registry) Connection() Connection {
	return r.conn
}

// Register adds a component
func (r *Registry) Register(c Component) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return fmt.Errorf("%w: component name cannot be empty", schema.ErrConfiguration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.components[c.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateComponent, c.Name)
	}
	r.components[c.Name] = c
	r.order = append(r.order, c.Name)
	return nil
}

// Components returns the registered component names in registration order
func (r *Registry) Components() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Table returns the table of a component, building it on first access
func (r *Registry) Table(name string) (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tableLocked(name)
}

func (r *Registry) lookup(name string) (relationships.Table, error) {
	t, err := r.Table(name)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *Registry) tableLocked(name string) (*Table, error) {
	if t, ok := r.tables[name]; ok {
		return t, nil
	}

	c, ok := r.components[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}

	t, err := r.build(c)
	if err != nil {
		return nil, fmt.Errorf("failed to build table for %s: %w", name, err)
	}
	r.tables[name] = t
	return t, nil
}

// build runs the hooks of c and its ancestors, least-derived first
func (r *Registry) build(c Component) (*Table, error) {
	chain := make([]Component, 0, len(c.Parents)+1)
	for _, parent := range c.Parents {
		p, ok := r.components[parent]
		if !ok {
			return nil, fmt.Errorf("%w: ancestor %s", ErrUnknownComponent, parent)
		}
		chain = append(chain, p)
	}
	chain = append(chain, c)

	def := newDefinition()
	for _, link := range chain {
		if link.Define != nil {
			link.Define(def)
		}
	}
	if err := def.Err(); err != nil {
		return nil, err
	}

	identifierName := lo.CoalesceOrEmpty(c.Identifier, chain[0].Identifier, schema.DefaultIdentifierName)
	identifier, err := def.columns.Finalize(identifierName)
	if err != nil {
		return nil, err
	}

	name := lo.CoalesceOrEmpty(c.TableName, chain[0].TableName, schema.Tableize(c.root()))

	t := &Table{
		component:   c,
		name:        name,
		registry:    r,
		logger:      r.logger.With(zap.String("component", c.Name)),
		columns:     def.columns,
		identifier:  identifier,
		inheritance: def.inheritance,
	}
	t.binder = relationships.NewBinder(t, r.lookup, t.logger)
	t.identity = identity.NewMap(t, c.Construct)

	for _, link := range chain {
		if link.SetUp == nil {
			continue
		}
		if err := link.SetUp(t); err != nil {
			return nil, err
		}
	}

	r.logger.Debug("table built",
		zap.String("component", c.Name),
		zap.String("table", name),
		zap.String("identifier", identifier.Name()),
		zap.Stringer("strategy", identifier.Strategy),
	)
	return t, nil
}

// Load builds the table of every registered component. In create tables
// mode the tables are also created in the database, each at most once.
// Components sharing a table contribute the union of their columns.
func (r *Registry) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var names []string
	columns := make(map[string][]schema.ColumnDefinition)
	for _, name := range r.order {
		t, err := r.tableLocked(name)
		if err != nil {
			return err
		}
		if _, seen := columns[t.name]; !seen {
			names = append(names, t.name)
		}
		columns[t.name] = lo.UniqBy(append(columns[t.name], t.columns.Definitions()...),
			func(def schema.ColumnDefinition) string { return def.Name })
	}

	if !r.createTables || r.creator == nil {
		return nil
	}
	for _, name := range names {
		if r.created[name] {
			continue
		}
		if err := r.creator.CreateTable(ctx, name, columns[name]); err != nil {
			return err
		}
		r.created[name] = true
	}
	return nil
}

// directBuilder runs the base select of a table filtered by where
type directBuilder struct{}

func (directBuilder) Query(_ context.Context, t *Table, where string, params []interface{}) *Collection {
	return NewLazyCollection(t, func(ctx context.Context) ([]*identity.Record, error) {
		query := t.Query()
		switch {
		case where != "" && !t.inheritance.Empty():
			query += " WHERE " + t.inheritance.Apply("("+where+")")
			params = append(append([]interface{}(nil), params...), t.inheritance.Params()...)
		case where != "":
			query += " WHERE " + where
		case !t.inheritance.Empty():
			query += " WHERE " + t.inheritance.Clause()
			params = t.inheritance.Params()
		}

		c, err := t.Execute(ctx, query, params, 0, 0)
		if err != nil {
			return nil, err
		}
		return c.Records(ctx)
	})
}
