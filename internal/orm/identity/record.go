// Package identity materializes records from rows and keeps at most one
// live record per identifier value for a table.
package identity

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/conduit-lang/tablemap/internal/orm/schema"
	"github.com/conduit-lang/tablemap/internal/orm/tracking"
)

// ErrMissingIdentifier is returned when a row lacks an identifier column
var ErrMissingIdentifier = errors.New("missing identifier")

// State is the lifecycle state of a record
type State int

const (
	// StateTransientClean is a new, unmodified record
	StateTransientClean State = iota
	// StateTransientDirty is a new record with assigned values
	StateTransientDirty
	// StateClean is a persistent, unmodified record
	StateClean
	// StateDirty is a persistent record with pending changes
	StateDirty
	// StateProxy is a persistent record holding only its identifier
	StateProxy
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateTransientClean:
		return "transient_clean"
	case StateTransientDirty:
		return "transient_dirty"
	case StateClean:
		return "clean"
	case StateDirty:
		return "dirty"
	case StateProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// IsTransient returns true for records without a persistent identity
func (s State) IsTransient() bool {
	return s == StateTransientClean || s == StateTransientDirty
}

// Owner is the table a record belongs to
type Owner interface {
	ComponentName() string
	Columns() *schema.Columns
}

// Constructor is invoked once for every record a table creates, after the
// record has been seeded
type Constructor func(*Record)

// Record is an in-memory row of a table
type Record struct {
	mu      sync.RWMutex
	oid     uuid.UUID
	owner   Owner
	state   State
	data    map[string]interface{}
	tracker *tracking.ChangeTracker
}

func newRecord(owner Owner, state State, data map[string]interface{}) *Record {
	return &Record{
		oid:     uuid.New(),
		owner:   owner,
		state:   state,
		data:    data,
		tracker: tracking.NewChangeTracker(data),
	}
}

// OID returns the process-unique object id
func (r *Record) OID() uuid.UUID {
	return r.oid
}

// Owner returns the table the record belongs to
func (r *Record) Owner() Owner {
	return r.owner
}

// Component returns the component name of the record
func (r *Record) Component() string {
	return r.owner.ComponentName()
}

// State returns the lifecycle state
func (r *Record) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Get returns the value of a field
func (r *Record) Get(field string) (interface{}, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.data[strings.ToLower(field)]
	return v, ok
}

// Set assigns a value to a declared column and marks the record dirty
func (r *Record) Set(field string, value interface{}) error {
	field = strings.ToLower(field)
	if !r.owner.Columns().Has(field) {
		return fmt.Errorf("%w: %s has no column %s", schema.ErrUnknownColumn, r.Component(), field)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.data[field] = value
	r.tracker.Track(field, value)

	switch r.state {
	case StateTransientClean:
		r.state = StateTransientDirty
	case StateClean, StateProxy:
		r.state = StateDirty
	}
	return nil
}

// Data returns a copy of the record's field values
func (r *Record) Data() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	data := make(map[string]interface{}, len(r.data))
	for k, v := range r.data {
		data[k] = v
	}
	return data
}

// Identifier returns the identifier values in primary key order
func (r *Record) Identifier() []interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.owner.Columns().PrimaryKeys()
	values := make([]interface{}, len(keys))
	for i, key := range keys {
		values[i] = r.data[key]
	}
	return values
}

// Modified returns the fields changed since the record was loaded
func (r *Record) Modified() []string {
	return r.tracker.ChangedFields()
}

// Changes returns the pending changes keyed by field
func (r *Record) Changes() map[string]tracking.FieldChange {
	return r.tracker.Changes()
}

// MarkClean makes the current values the persistent state
func (r *Record) MarkClean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = StateClean
	r.tracker.Reset(r.data)
}

// load fills a proxy with a fetched row and marks it clean
func (r *Record) load(data map[string]interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range data {
		r.data[k] = v
	}
	r.state = StateClean
	r.tracker.Reset(r.data)
}
