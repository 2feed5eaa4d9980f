package dummydb

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/studenttracker/tracker/core"
	"github.com/studenttracker/tracker/core/link"
	"github.com/studenttracker/tracker/core/roster"
	"github.com/studenttracker/tracker/core/schedule"
	"github.com/studenttracker/tracker/core/teacher"
)

var errRawSQL = errors.New("dummydb: raw SQL is not supported")

type (
	// DB is an in-memory store. BeginTx snapshots every table; Rollback restores the snapshot.
	// Only one transaction may be open at a time.
	DB struct {
		mu       sync.RWMutex
		data     *tables
		snapshot *tables
		faults   map[string]error
	}

	tables struct {
		seq          int
		groupStreams map[int]roster.GroupStream
		students     map[int]roster.Student
		teachers     map[int]teacher.Teacher
		schedules    map[int]schedule.Schedule
		links        map[int]link.TableLink
	}

	tx struct {
		db   *DB
		done bool
	}
)

var (
	_ core.DB           = (*DB)(nil)
	_ core.DBTransactor = (*tx)(nil)
)

func Open() *DB {
	return &DB{data: newTables(), faults: make(map[string]error)}
}

func newTables() *tables {
	return &tables{
		groupStreams: make(map[int]roster.GroupStream),
		students:     make(map[int]roster.Student),
		teachers:     make(map[int]teacher.Teacher),
		schedules:    make(map[int]schedule.Schedule),
		links:        make(map[int]link.TableLink),
	}
}

func (t *tables) clone() *tables {
	c := &tables{
		seq:          t.seq,
		groupStreams: make(map[int]roster.GroupStream, len(t.groupStreams)),
		students:     make(map[int]roster.Student, len(t.students)),
		teachers:     make(map[int]teacher.Teacher, len(t.teachers)),
		schedules:    make(map[int]schedule.Schedule, len(t.schedules)),
		links:        make(map[int]link.TableLink, len(t.links)),
	}
	for k, v := range t.groupStreams {
		if v.HeadmanID != nil {
			id := *v.HeadmanID
			v.HeadmanID = &id
		}
		c.groupStreams[k] = v
	}
	for k, v := range t.students {
		c.students[k] = v
	}
	for k, v := range t.teachers {
		c.teachers[k] = v
	}
	for k, v := range t.schedules {
		c.schedules[k] = v
	}
	for k, v := range t.links {
		c.links[k] = v
	}
	return c
}

func (t *tables) nextID() int {
	t.seq++
	return t.seq
}

// FailOn makes every later call of the named repository method return err.
// A nil err clears the fault.
func (db *DB) FailOn(method string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.faults, method)
		return
	}
	db.faults[method] = err
}

func (db *DB) fault(method string) error {
	return db.faults[method]
}

func (db *DB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.fault("BeginTx"); err != nil {
		return nil, err
	}
	if db.snapshot != nil {
		return nil, errors.New("dummydb: a transaction is already open")
	}
	db.snapshot = db.data.clone()
	return &tx{db: db}, nil
}

func (db *DB) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errRawSQL
}

func (db *DB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errRawSQL
}

func (db *DB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func (t *tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return t.db.ExecContext(ctx, query, args...)
}

func (t *tx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return t.db.QueryContext(ctx, query, args...)
}

func (t *tx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return t.db.QueryRowContext(ctx, query, args...)
}

func (t *tx) Commit() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	if err := t.db.fault("Commit"); err != nil {
		t.db.data = t.db.snapshot
		t.db.snapshot = nil
		t.done = true
		return err
	}
	t.db.snapshot = nil
	t.done = true
	return nil
}

func (t *tx) Rollback() error {
	t.db.mu.Lock()
	defer t.db.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.db.data = t.db.snapshot
	t.db.snapshot = nil
	t.done = true
	return nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
