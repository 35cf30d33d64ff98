package mock

import (
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cast"
)

// Row is one database row keyed by column name.
type Row map[string]any

// Query is one entry of the database query log.
type Query struct {
	Operation string        `json:"operation"`
	Table     string        `json:"table"`
	Rows      int           `json:"rows"`
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

type table struct {
	columns []string
	rows    []Row
}

func (t *table) hasColumn(name string) bool {
	return len(t.columns) == 0 || slices.Contains(t.columns, name)
}

// Database is an in-memory table store.
type Database struct {
	*Base

	mu     sync.RWMutex
	tables map[string]*table
	log    []Query
}

var _ Service = (*Database)(nil)

// NewDatabase returns an empty database named name.
func NewDatabase(name string) *Database {
	return &Database{
		Base:   NewBase(name),
		tables: make(map[string]*table),
	}
}

// Reset drops every table and the query log and restores the toggles.
func (d *Database) Reset() {
	d.Base.Reset()
	d.mu.Lock()
	d.tables = make(map[string]*table)
	d.log = nil
	d.mu.Unlock()
}

// exec guards op, runs fn under the write lock and logs the query.
func (d *Database) exec(op, tableName string, fn func() (int, error)) (int, error) {
	start := time.Now()
	n, err := 0, d.Guard(op)
	if err == nil {
		d.mu.Lock()
		n, err = fn()
		d.mu.Unlock()
	}

	q := Query{Operation: op, Table: tableName, Rows: n, At: start, Duration: time.Since(start)}
	if err != nil {
		q.Error = err.Error()
	}
	d.mu.Lock()
	d.log = append(d.log, q)
	d.mu.Unlock()
	return n, err
}

func (d *Database) table(name string) (*table, error) {
	t, ok := d.tables[name]
	if !ok {
		return nil, ErrTableNotFound.WithMessagef("table %q does not exist", name)
	}
	return t, nil
}

// CreateTable creates name with the given columns. It fails with
// ErrTableExists if the table is already there, leaving it untouched.
func (d *Database) CreateTable(name string, columns []string) error {
	_, err := d.exec("create_table", name, func() (int, error) {
		if _, exists := d.tables[name]; exists {
			return 0, ErrTableExists.WithMessagef("table %q already exists", name)
		}
		d.tables[name] = &table{columns: slices.Clone(columns)}
		return 0, nil
	})
	return err
}

// DropTable removes name.
func (d *Database) DropTable(name string) error {
	_, err := d.exec("drop_table", name, func() (int, error) {
		t, err := d.table(name)
		if err != nil {
			return 0, err
		}
		delete(d.tables, name)
		return len(t.rows), nil
	})
	return err
}

// HasTable reports whether name exists. It is an introspection helper for
// tests and is answered even while the service is disabled.
func (d *Database) HasTable(name string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.tables[name]
	return ok
}

// Columns returns the declared columns of name. It is guarded but not
// written to the query log.
func (d *Database) Columns(name string) ([]string, error) {
	if err := d.Guard("columns"); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, err := d.table(name)
	if err != nil {
		return nil, err
	}
	return slices.Clone(t.columns), nil
}

// Insert appends row to tableName. Columns not declared on the table are
// rejected with ErrUnknownColumn.
func (d *Database) Insert(tableName string, row Row) error {
	_, err := d.exec("insert", tableName, func() (int, error) {
		t, err := d.table(tableName)
		if err != nil {
			return 0, err
		}
		for col := range row {
			if !t.hasColumn(col) {
				return 0, ErrUnknownColumn.WithMessagef("table %q has no column %q", tableName, col)
			}
		}
		t.rows = append(t.rows, maps.Clone(row))
		return 1, nil
	})
	return err
}

// Select returns copies of the rows matching every key of where. An empty
// filter matches all rows.
func (d *Database) Select(tableName string, where Row) ([]Row, error) {
	var out []Row
	_, err := d.exec("select", tableName, func() (int, error) {
		t, err := d.table(tableName)
		if err != nil {
			return 0, err
		}
		out = []Row{}
		for _, r := range t.rows {
			if matches(r, where) {
				out = append(out, maps.Clone(r))
			}
		}
		return len(out), nil
	})
	return out, err
}

// Update sets the columns of set on every row matching where and returns the
// number of rows changed.
func (d *Database) Update(tableName string, set Row, where Row) (int, error) {
	return d.exec("update", tableName, func() (int, error) {
		t, err := d.table(tableName)
		if err != nil {
			return 0, err
		}
		for col := range set {
			if !t.hasColumn(col) {
				return 0, ErrUnknownColumn.WithMessagef("table %q has no column %q", tableName, col)
			}
		}
		n := 0
		for _, r := range t.rows {
			if matches(r, where) {
				maps.Copy(r, set)
				n++
			}
		}
		return n, nil
	})
}

// Delete removes every row matching where and returns the number removed.
func (d *Database) Delete(tableName string, where Row) (int, error) {
	return d.exec("delete", tableName, func() (int, error) {
		t, err := d.table(tableName)
		if err != nil {
			return 0, err
		}
		before := len(t.rows)
		t.rows = slices.DeleteFunc(t.rows, func(r Row) bool { return matches(r, where) })
		return before - len(t.rows), nil
	})
}

// QueryLog returns a copy of the query log, oldest first. Failed and
// rejected operations are logged too.
func (d *Database) QueryLog() []Query {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.log)
}

// QueryCount returns the number of logged operations named op, or all
// operations when op is empty.
func (d *Database) QueryCount(op string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if op == "" {
		return len(d.log)
	}
	n := 0
	for _, q := range d.log {
		if q.Operation == op {
			n++
		}
	}
	return n
}

func matches(row, where Row) bool {
	for k, want := range where {
		got, ok := row[k]
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

// equal compares numbers by value so that 1, int64(1) and 1.0 match.
func equal(a, b any) bool {
	if isNumber(a) && isNumber(b) {
		return cast.ToFloat64(a) == cast.ToFloat64(b)
	}
	return reflect.DeepEqual(a, b)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	}
	return false
}
