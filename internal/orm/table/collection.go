package table

import (
	"context"
	"sync"

	"github.com/conduit-lang/tablemap/internal/orm/identity"
)

// Loader fetches the records of a lazy collection
type Loader func(ctx context.Context) ([]*identity.Record, error)

// Collection is an ordered list of records of one table. A lazy collection
// runs its loader on first access and keeps the outcome.
type Collection struct {
	table *Table

	once    sync.Once
	load    Loader
	records []*identity.Record
	err     error
}

// NewCollection creates a populated collection
func NewCollection(t *Table, records []*identity.Record) *Collection {
	c := &Collection{table: t, records: records}
	c.once.Do(func() {})
	return c
}

// NewLazyCollection creates a collection populated by load on first access
func NewLazyCollection(t *Table, load Loader) *Collection {
	return &Collection{table: t, load: load}
}

// Table returns the table the records belong to
func (c *Collection) Table() *Table {
	return c.table
}

// Records returns the records in row order, loading them if needed
func (c *Collection) Records(ctx context.Context) ([]*identity.Record, error) {
	c.once.Do(func() {
		c.records, c.err = c.load(ctx)
	})
	if c.err != nil {
		return nil, c.err
	}
	return c.records, nil
}

// Len returns the number of records, loading them if needed
func (c *Collection) Len(ctx context.Context) (int, error) {
	records, err := c.Records(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// First returns the first record, or nil when the collection is empty
func (c *Collection) First(ctx context.Context) (*identity.Record, error) {
	records, err := c.Records(ctx)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}
