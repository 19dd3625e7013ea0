package session

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Matches internal/migrate/sql/0001_sessions.sql.
const testSchema = `
CREATE TABLE IF NOT EXISTS sessions (
  id          TEXT    PRIMARY KEY,
  state_json  TEXT    NOT NULL,
  updated_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// Every :memory: connection is its own database.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(testSchema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			t.Fatalf("close db: %v", closeErr)
		}
		t.Fatalf("exec schema: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := db.Close(); closeErr != nil {
			t.Fatalf("close db: %v", closeErr)
		}
	})
	return db
}

func newSQLiteStore(t *testing.T, ttl time.Duration) (*SQLiteStore, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s := NewSQLiteStore(setupTestDB(t), ttl)
	s.now = clock.now
	return s, clock
}

func TestSQLiteStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t, time.Hour)

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v; want false, nil", ok, err)
	}

	want := sampleState()
	if err := s.Put(ctx, "a", want); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Get(a) = ok %v, err %v; want true, nil", ok, err)
	}
	if got.Table == nil || got.Table.Len() != 2 || got.Table.Records[1].Date != "20230102" || got.Table.Records[1].Tmed != 25.5 {
		t.Errorf("Table = %+v", got.Table)
	}
	if got.Start != want.Start || got.End != want.End || !got.FetchedAt.Equal(want.FetchedAt) {
		t.Errorf("range = %q..%q at %v", got.Start, got.End, got.FetchedAt)
	}
}

func TestSQLiteStore_Upsert(t *testing.T) {
	ctx := context.Background()
	s, _ := newSQLiteStore(t, time.Hour)

	if err := s.Put(ctx, "a", sampleState()); err != nil {
		t.Fatalf("Put: %v", err)
	}
	cleared := sampleState()
	cleared.ClearTable()
	if err := s.Put(ctx, "a", cleared); err != nil {
		t.Fatalf("Put again: %v", err)
	}
	got, ok, err := s.Get(ctx, "a")
	if err != nil || !ok {
		t.Fatalf("Get(a) = ok %v, err %v", ok, err)
	}
	if got.HasTable() {
		t.Error("second Put did not replace the table")
	}

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("rows = %d; want 1", n)
	}
}

func TestSQLiteStore_ExpiryDeletesRow(t *testing.T) {
	ctx := context.Background()
	s, clock := newSQLiteStore(t, time.Hour)

	_ = s.Put(ctx, "a", sampleState())
	clock.advance(61 * time.Minute)

	if _, ok, err := s.Get(ctx, "a"); err != nil || ok {
		t.Fatalf("Get after TTL = ok %v, err %v; want false, nil", ok, err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE id = 'a'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expired row kept")
	}
}

func TestSQLiteStore_DeleteAndSweep(t *testing.T) {
	ctx := context.Background()
	s, clock := newSQLiteStore(t, time.Hour)

	_ = s.Put(ctx, "old1", State{})
	_ = s.Put(ctx, "old2", State{})
	clock.advance(2 * time.Hour)
	_ = s.Put(ctx, "fresh", State{})
	_ = s.Put(ctx, "gone", State{})

	if err := s.Delete(ctx, "gone"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	n, err := s.Sweep(ctx, clock.now())
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if n != 2 {
		t.Errorf("Sweep removed %d; want 2", n)
	}
	if _, ok, _ := s.Get(ctx, "fresh"); !ok {
		t.Error("fresh session swept")
	}
}

func TestSQLiteStore_corruptState(t *testing.T) {
	ctx := context.Background()
	s, clock := newSQLiteStore(t, time.Hour)

	if _, err := s.db.Exec(`INSERT INTO sessions (id, state_json, updated_at) VALUES ('bad', '{', ?)`, clock.now().UnixMilli()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, _, err := s.Get(ctx, "bad"); err == nil {
		t.Fatal("Get(corrupt) = nil error; want decode error")
	}
}

func TestSQLiteStore_Ping(t *testing.T) {
	s, _ := newSQLiteStore(t, time.Hour)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
