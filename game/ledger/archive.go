package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteArchive stores finalized ratings and collected fees. Writes are
// queued and applied by a single writer goroutine so the simulation never
// waits on disk.
type SQLiteArchive struct {
	db *sql.DB

	ch   chan archiveReq
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

type archiveReq struct {
	rating *FinalRating
	fee    *Collection
}

// ArchiveTotals aggregates what the archive holds for one session label
type ArchiveTotals struct {
	Ratings       int     `json:"ratings"`
	AverageRating float64 `json:"average_rating"`
	Fees          int     `json:"fees"`
	Revenue       float64 `json:"revenue"`
}

// OpenSQLiteArchive opens or creates the archive database at path
func OpenSQLiteArchive(path string) (*SQLiteArchive, error) {
	if path == "" {
		return nil, fmt.Errorf("empty archive path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	a := &SQLiteArchive{
		db: db,
		ch: make(chan archiveReq, 4096),
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.loop()
	}()
	return a, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ratings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			vehicle_id TEXT NOT NULL,
			initial REAL NOT NULL,
			score REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS ratings_session ON ratings(session);`,
		`CREATE TABLE IF NOT EXISTS fees (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			vehicle_id TEXT NOT NULL,
			spot_x INTEGER NOT NULL,
			spot_y INTEGER NOT NULL,
			payment TEXT NOT NULL,
			amount REAL NOT NULL,
			parked_ms REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS fees_session ON fees(session);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordRating queues a finalized rating
func (a *SQLiteArchive) RecordRating(r FinalRating) {
	a.enqueue(archiveReq{rating: &r})
}

// RecordFee queues a collected fee
func (a *SQLiteArchive) RecordFee(c Collection) {
	a.enqueue(archiveReq{fee: &c})
}

func (a *SQLiteArchive) enqueue(r archiveReq) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.ch <- r:
	default:
		a.dropped.Add(1)
	}
}

// Dropped returns how many records were lost because the queue was full
func (a *SQLiteArchive) Dropped() int64 {
	return a.dropped.Load()
}

func (a *SQLiteArchive) loop() {
	for r := range a.ch {
		var err error
		switch {
		case r.rating != nil:
			_, err = a.db.Exec(
				`INSERT INTO ratings(session,vehicle_id,initial,score,recorded_at) VALUES(?,?,?,?,?)`,
				r.rating.Session, r.rating.VehicleID, r.rating.Initial, r.rating.Score, r.rating.At.UTC().Format(time.RFC3339Nano),
			)
		case r.fee != nil:
			_, err = a.db.Exec(
				`INSERT INTO fees(session,vehicle_id,spot_x,spot_y,payment,amount,parked_ms,recorded_at) VALUES(?,?,?,?,?,?,?,?)`,
				r.fee.Session, r.fee.VehicleID, r.fee.Spot.X, r.fee.Spot.Y, string(r.fee.Payment), r.fee.Amount, r.fee.ParkedMs, r.fee.At.UTC().Format(time.RFC3339Nano),
			)
		}
		if err != nil {
			log.Printf("archive write failed: %v", err)
		}
	}
}

// Totals reads the aggregates for a session label. An empty label covers
// every session.
func (a *SQLiteArchive) Totals(ctx context.Context, session string) (ArchiveTotals, error) {
	var t ArchiveTotals
	where, args := "", []any{}
	if session != "" {
		where, args = " WHERE session = ?", []any{session}
	}

	row := a.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(AVG(score), 0) FROM ratings`+where, args...)
	if err := row.Scan(&t.Ratings, &t.AverageRating); err != nil {
		return t, fmt.Errorf("read rating totals: %w", err)
	}
	row = a.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM fees`+where, args...)
	if err := row.Scan(&t.Fees, &t.Revenue); err != nil {
		return t, fmt.Errorf("read fee totals: %w", err)
	}
	return t, nil
}

// Close drains the queue and closes the database
func (a *SQLiteArchive) Close() error {
	var err error
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		close(a.ch)
		a.mu.Unlock()
		a.wg.Wait()
		err = a.db.Close()
	})
	return err
}
