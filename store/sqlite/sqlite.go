/*
Package sqlite provides a SQLite-backed implementation of the faucet
persistence interfaces.

PURPOSE:
  Implements faucet.TxStore and faucet.EventLog using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect differences.

PERSISTED LAYOUT:
  state_slots: the four scalar slots (commitment root, commitment depth,
               daily limit, pool balance) as name/value rows
  quotas:      one row per identity (last_claim_day, claimed_so_far)
  events:      append-only notification log

  All of it survives process restarts without reinitialization: a missing
  slot reads as its zero value, a missing quota row reads as the zero
  record.

ATOMICITY:
  WithTx wraps the callback in a database transaction, so the engine's
  multi-field mutations (root+depth, balance+quota) commit all-or-nothing.
  Root and depth are written in the same transaction and can never be
  observed mixed-generation.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  st, err := sqlite.New("./data/faucet.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()
  engine := faucet.NewEngine(st, st, faucet.SystemClock{}, transfer, controller)

SEE ALSO:
  - faucet/store.go: Interface definitions
  - faucet/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/faucet-engine/faucet"
	"github.com/warp/faucet-engine/merkle"
)

// Slot names in state_slots.
const (
	slotRoot        = "commitment_root"
	slotDepth       = "commitment_depth"
	slotDailyLimit  = "daily_limit"
	slotPoolBalance = "pool_balance"
)

// Store implements faucet.TxStore and faucet.EventLog using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Scalar engine state (root, depth, limit, balance)
	CREATE TABLE IF NOT EXISTS state_slots (
		name  TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	-- Per-identity daily quota records
	CREATE TABLE IF NOT EXISTS quotas (
		identity        TEXT PRIMARY KEY,
		last_claim_day  INTEGER NOT NULL,
		claimed_so_far  TEXT NOT NULL
	);

	-- Notification log (append-only)
	CREATE TABLE IF NOT EXISTS events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		at         TEXT NOT NULL,
		identity   TEXT NOT NULL DEFAULT '',
		amount     TEXT NOT NULL DEFAULT '0',
		root       TEXT NOT NULL DEFAULT '',
		depth      INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_identity ON events(identity) WHERE identity != '';
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// =============================================================================
// SCALAR SLOTS
// =============================================================================

func getSlot(ctx context.Context, db dbtx, name string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM state_slots WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", name, err)
	}
	return value, true, nil
}

func setSlot(ctx context.Context, db dbtx, name, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO state_slots (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", name, err)
	}
	return nil
}

func getAmountSlot(ctx context.Context, db dbtx, name string) (faucet.Amount, error) {
	value, ok, err := getSlot(ctx, db, name)
	if err != nil || !ok {
		return faucet.ZeroAmount(), err
	}
	amount, err := faucet.ParseAmount(value)
	if err != nil {
		return faucet.ZeroAmount(), fmt.Errorf("corrupt slot %s: %w", name, err)
	}
	return amount, nil
}

// =============================================================================
// STORE (faucet.Store interface)
// =============================================================================

func commitmentFrom(ctx context.Context, db dbtx) (faucet.Commitment, error) {
	rootHex, ok, err := getSlot(ctx, db, slotRoot)
	if err != nil || !ok {
		return faucet.Commitment{}, err
	}
	root, err := merkle.ParseDigest(rootHex)
	if err != nil {
		return faucet.Commitment{}, fmt.Errorf("corrupt commitment root: %w", err)
	}

	depthStr, ok, err := getSlot(ctx, db, slotDepth)
	if err != nil {
		return faucet.Commitment{}, err
	}
	var depth uint64
	if ok {
		depth, err = strconv.ParseUint(depthStr, 10, 32)
		if err != nil {
			return faucet.Commitment{}, fmt.Errorf("corrupt commitment depth: %w", err)
		}
	}
	return faucet.Commitment{Root: root, Depth: uint(depth)}, nil
}

func setCommitment(ctx context.Context, db dbtx, c faucet.Commitment) error {
	if err := setSlot(ctx, db, slotRoot, c.Root.String()); err != nil {
		return err
	}
	return setSlot(ctx, db, slotDepth, strconv.FormatUint(uint64(c.Depth), 10))
}

func quotaFrom(ctx context.Context, db dbtx, id faucet.Identity) (faucet.QuotaRecord, error) {
	var day int64
	var claimed string
	err := db.QueryRowContext(ctx, `
		SELECT last_claim_day, claimed_so_far FROM quotas WHERE identity = ?`,
		string(id.Canonical())).Scan(&day, &claimed)
	if err == sql.ErrNoRows {
		return faucet.ZeroQuota(), nil
	}
	if err != nil {
		return faucet.QuotaRecord{}, fmt.Errorf("failed to read quota: %w", err)
	}
	amount, err := faucet.ParseAmount(claimed)
	if err != nil {
		return faucet.QuotaRecord{}, fmt.Errorf("corrupt quota for %s: %w", id, err)
	}
	return faucet.QuotaRecord{LastClaimDay: faucet.DayIndex(day), ClaimedSoFar: amount}, nil
}

func setQuota(ctx context.Context, db dbtx, id faucet.Identity, q faucet.QuotaRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO quotas (identity, last_claim_day, claimed_so_far) VALUES (?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			last_claim_day = excluded.last_claim_day,
			claimed_so_far = excluded.claimed_so_far`,
		string(id.Canonical()), int64(q.LastClaimDay), q.ClaimedSoFar.String())
	if err != nil {
		return fmt.Errorf("failed to write quota: %w", err)
	}
	return nil
}

func (s *Store) Commitment(ctx context.Context) (faucet.Commitment, error) {
	return commitmentFrom(ctx, s.db)
}

func (s *Store) SetCommitment(ctx context.Context, c faucet.Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setCommitment(ctx, s.db, c)
}

func (s *Store) DailyLimit(ctx context.Context) (faucet.Amount, error) {
	return getAmountSlot(ctx, s.db, slotDailyLimit)
}

func (s *Store) SetDailyLimit(ctx context.Context, limit faucet.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setSlot(ctx, s.db, slotDailyLimit, limit.String())
}

func (s *Store) PoolBalance(ctx context.Context) (faucet.Amount, error) {
	return getAmountSlot(ctx, s.db, slotPoolBalance)
}

func (s *Store) SetPoolBalance(ctx context.Context, balance faucet.Amount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setSlot(ctx, s.db, slotPoolBalance, balance.String())
}

func (s *Store) Quota(ctx context.Context, id faucet.Identity) (faucet.QuotaRecord, error) {
	return quotaFrom(ctx, s.db, id)
}

func (s *Store) SetQuota(ctx context.Context, id faucet.Identity, q faucet.QuotaRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setQuota(ctx, s.db, id, q)
}

// =============================================================================
// TRANSACTIONAL STORE
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store faucet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Commitment(ctx context.Context) (faucet.Commitment, error) {
	return commitmentFrom(ctx, ts.tx)
}

func (ts *txStore) SetCommitment(ctx context.Context, c faucet.Commitment) error {
	return setCommitment(ctx, ts.tx, c)
}

func (ts *txStore) DailyLimit(ctx context.Context) (faucet.Amount, error) {
	return getAmountSlot(ctx, ts.tx, slotDailyLimit)
}

func (ts *txStore) SetDailyLimit(ctx context.Context, limit faucet.Amount) error {
	return setSlot(ctx, ts.tx, slotDailyLimit, limit.String())
}

func (ts *txStore) PoolBalance(ctx context.Context) (faucet.Amount, error) {
	return getAmountSlot(ctx, ts.tx, slotPoolBalance)
}

func (ts *txStore) SetPoolBalance(ctx context.Context, balance faucet.Amount) error {
	return setSlot(ctx, ts.tx, slotPoolBalance, balance.String())
}

func (ts *txStore) Quota(ctx context.Context, id faucet.Identity) (faucet.QuotaRecord, error) {
	return quotaFrom(ctx, ts.tx, id)
}

func (ts *txStore) SetQuota(ctx context.Context, id faucet.Identity, q faucet.QuotaRecord) error {
	return setQuota(ctx, ts.tx, id, q)
}

// =============================================================================
// EVENT LOG (faucet.EventLog interface)
// =============================================================================

// Append persists a notification. Append-only: events are never updated
// or deleted.
func (s *Store) Append(ctx context.Context, ev faucet.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rootHex := ""
	if !ev.Root.IsZero() {
		rootHex = ev.Root.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (event_type, at, identity, amount, root, depth)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.Type),
		ev.At.UTC().Format(time.RFC3339Nano),
		string(ev.Identity),
		ev.Amount.String(),
		rootHex,
		int64(ev.Depth),
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, filter faucet.EventFilter) ([]faucet.Event, error) {
	query := `SELECT id, event_type, at, identity, amount, root, depth FROM events`
	var clauses []string
	var args []any

	if len(filter.Types) > 0 {
		placeholders := ""
		for i, t := range filter.Types {
			if i > 0 {
				placeholders += ", "
			}
			placeholders += "?"
			args = append(args, string(t))
		}
		clauses = append(clauses, "event_type IN ("+placeholders+")")
	}
	if filter.Identity != nil {
		clauses = append(clauses, "identity = ?")
		args = append(args, string(filter.Identity.Canonical()))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []faucet.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (faucet.Event, error) {
	var (
		ev       faucet.Event
		evType   string
		at       string
		identity string
		amount   string
		rootHex  string
		depth    int64
	)
	if err := rows.Scan(&ev.ID, &evType, &at, &identity, &amount, &rootHex, &depth); err != nil {
		return faucet.Event{}, fmt.Errorf("failed to scan event: %w", err)
	}

	ev.Type = faucet.EventType(evType)
	ev.Identity = faucet.Identity(identity)
	ev.Depth = uint(depth)

	parsedAt, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return faucet.Event{}, fmt.Errorf("corrupt event timestamp: %w", err)
	}
	ev.At = parsedAt

	ev.Amount, err = faucet.ParseAmount(amount)
	if err != nil {
		return faucet.Event{}, fmt.Errorf("corrupt event amount: %w", err)
	}

	if rootHex != "" {
		ev.Root, err = merkle.ParseDigest(rootHex)
		if err != nil {
			return faucet.Event{}, fmt.Errorf("corrupt event root: %w", err)
		}
	}
	return ev, nil
}
