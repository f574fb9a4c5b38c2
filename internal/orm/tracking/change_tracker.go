// Package tracking computes the change set of a record against the state it
// was loaded with.
package tracking

import (
	"reflect"
	"sort"
	"sync"

	"github.com/samber/lo"
)

// FieldChange represents a change to a single field
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// ChangeTracker tracks field changes on a record
type ChangeTracker struct {
	mu       sync.RWMutex
	original map[string]interface{}
	changes  map[string]*FieldChange
}

// NewChangeTracker creates a tracker whose baseline is original
func NewChangeTracker(original map[string]interface{}) *ChangeTracker {
	return &ChangeTracker{
		original: copyMap(original),
		changes:  make(map[string]*FieldChange),
	}
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	return lo.MapValues(m, func(v interface{}, _ string) interface{} {
		return copyValue(v)
	})
}

// copyValue copies byte slices, drivers reuse their buffers
func copyValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return append([]byte(nil), b...)
	}
	return v
}

// Track records a new value for field. Assigning the original value back
// removes the change.
func (ct *ChangeTracker) Track(field string, value interface{}) {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	old, existed := ct.original[field]
	if existed && reflect.DeepEqual(old, value) {
		delete(ct.changes, field)
		return
	}

	ct.changes[field] = &FieldChange{
		Field:    field,
		OldValue: old,
		NewValue: copyValue(value),
	}
}

// Changed returns true if the specified field has changed
func (ct *ChangeTracker) Changed(field string) bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	_, ok := ct.changes[field]
	return ok
}

// ChangedFields returns the changed fields sorted by name
func (ct *ChangeTracker) ChangedFields() []string {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	fields := lo.Keys(ct.changes)
	sort.Strings(fields)
	return fields
}

// PreviousValue returns the baseline value of a field
func (ct *ChangeTracker) PreviousValue(field string) interface{} {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.original[field]
}

// Changes returns a copy of all changes
func (ct *ChangeTracker) Changes() map[string]FieldChange {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	return lo.MapValues(ct.changes, func(c *FieldChange, _ string) FieldChange {
		return *c
	})
}

// HasChanges returns true if any fields have changed
func (ct *ChangeTracker) HasChanges() bool {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.changes) > 0
}

// Reset makes state the new baseline and drops all changes
func (ct *ChangeTracker) Reset(state map[string]interface{}) {
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.original = copyMap(state)
	ct.changes = make(map[string]*FieldChange)
}
