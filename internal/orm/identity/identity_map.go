package identity

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
)

// keySeparator joins the identifier values of a composite key. It cannot
// appear in a formatted column value.
const keySeparator = "\x00"

// Map caches one record per identifier value of a table
type Map struct {
	owner     Owner
	construct Constructor

	mu      sync.Mutex
	records map[string]*Record
	scratch map[string]interface{}

	newEntry atomic.Bool
}

// NewMap creates the identity map of owner. construct may be nil.
func NewMap(owner Owner, construct Constructor) *Map {
	return &Map{
		owner:     owner,
		construct: construct,
		records:   make(map[string]*Record),
		scratch:   make(map[string]interface{}),
	}
}

// Materialize returns the record for a fetched row. A record already mapped
// under the row's identifier is returned unchanged, except a proxy which is
// loaded from the row and marked clean. Otherwise a new record is seeded from
// the row and mapped.
func (m *Map) Materialize(row map[string]interface{}) (*Record, error) {
	return m.materialize(row, StateClean)
}

// MaterializeProxy is Materialize for rows that only hold the identifier
func (m *Map) MaterializeProxy(row map[string]interface{}) (*Record, error) {
	return m.materialize(row, StateProxy)
}

func (m *Map) materialize(row map[string]interface{}, state State) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer clear(m.scratch)

	for k, v := range row {
		m.scratch[strings.ToLower(k)] = v
	}

	keys := m.owner.Columns().PrimaryKeys()
	values := make([]interface{}, 0, len(keys))
	for _, key := range keys {
		v, ok := m.scratch[key]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s row has no value for %s",
				ErrMissingIdentifier, m.owner.ComponentName(), key)
		}
		values = append(values, v)
	}

	key := identityKey(values)
	record, ok := m.records[key]
	if ok && (state == StateProxy || record.State() != StateProxy) {
		return record, nil
	}

	data := make(map[string]interface{}, len(m.scratch))
	for k, v := range m.scratch {
		if b, isBytes := v.([]byte); isBytes {
			v = append([]byte(nil), b...)
		}
		data[k] = v
	}

	if ok {
		record.load(data)
		return record, nil
	}

	record = newRecord(m.owner, state, data)
	if m.construct != nil {
		m.construct(record)
	}
	m.records[key] = record
	return record, nil
}

// CreateTransient creates a record for insertion. It is seeded with the
// column defaults overlaid by values and is not placed in the map.
func (m *Map) CreateTransient(values map[string]interface{}) *Record {
	m.newEntry.Store(true)
	defer m.newEntry.Store(false)

	data := m.owner.Columns().Defaults()
	for k, v := range values {
		data[strings.ToLower(k)] = v
	}

	state := StateTransientClean
	if len(values) > 0 {
		state = StateTransientDirty
	}

	record := newRecord(m.owner, state, data)
	if m.construct != nil {
		m.construct(record)
	}
	return record
}

// IsNewEntry returns true while a transient record is being constructed
func (m *Map) IsNewEntry() bool {
	return m.newEntry.Load()
}

// Get returns the record mapped under the given identifier values
func (m *Map) Get(id ...interface{}) (*Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[identityKey(id)]
	return record, ok
}

// Len returns the number of mapped records
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Clear drops every mapped record. Records already handed out stay valid.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*Record)
}

func identityKey(values []interface{}) string {
	parts := make([]string, len(values))
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			parts[i] = string(b)
			continue
		}
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, keySeparator)
}
