// Package database is the SQLite-backed store of the adoption ledger. One
// database file holds the resource registry, contracts, the per-key event
// journal, treasury balances and the operations journal.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"adopt-go/internal/adopt"
	"adopt-go/internal/database/migrations"
	"adopt-go/internal/model"
	"adopt-go/internal/treasury"
)

var errReadOnly = errors.New("write in read-only transaction")

// SQLiteDatabase implements adopt.Ledger and adopt.Treasury on SQLite.
type SQLiteDatabase struct {
	db      *sql.DB
	queries *Queries
	path    string
}

// NewSQLiteDatabase opens the database at path.
// path can be a file path or ":memory:" for an in-memory database.
// The schema is not touched; call MigrateUp or CheckMigrations.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:      db,
		queries: NewQueries(db),
		path:    path,
	}, nil
}

// NewSQLiteDatabaseFromDB wraps an existing database connection.
// The caller is responsible for ensuring the connection is properly configured.
func NewSQLiteDatabaseFromDB(db *sql.DB) *SQLiteDatabase {
	return &SQLiteDatabase{
		db:      db,
		queries: NewQueries(db),
	}
}

// dsn adds the driver options every connection needs. Transactions begin
// IMMEDIATE, so a writer takes the file's write lock up front and concurrent
// processes queue on busy_timeout instead of failing mid-transaction.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

// OpenConnection opens and configures a SQLite connection.
// Exported for tools and tests that need the same PRAGMAs as the service.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting into one database per pooled connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return db, nil
}

// Path returns the path the database was opened with, or "" for a wrapped connection.
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// DB exposes the underlying connection for migrations and tooling.
func (s *SQLiteDatabase) DB() *sql.DB {
	return s.db
}

// CheckMigrations fails unless the schema is at the latest version.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// MigrateUp applies pending schema migrations.
func (s *SQLiteDatabase) MigrateUp() error {
	return migrations.MigrateUp(s.db)
}

// BackupTo writes a consistent copy of the database to dest.
func (s *SQLiteDatabase) BackupTo(ctx context.Context, dest string) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("backing up database to %s: %w", dest, err)
	}
	return nil
}

func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Ledger

// View runs fn in a transaction that rejects writes. It is always rolled back.
func (s *SQLiteDatabase) View(ctx context.Context, fn func(tx adopt.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqliteTx{ctx: ctx, q: s.queries.WithTx(tx), readOnly: true})
}

// Update runs fn in a transaction and commits it if fn returns nil.
func (s *SQLiteDatabase) Update(ctx context.Context, fn func(tx adopt.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqliteTx{ctx: ctx, q: s.queries.WithTx(tx)}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type sqliteTx struct {
	ctx      context.Context
	q        *Queries
	readOnly bool
}

func (t *sqliteTx) writable() error {
	if t.readOnly {
		return errReadOnly
	}
	return nil
}

func (t *sqliteTx) GetResource(key model.Key) (*model.Resource, error) {
	row, err := t.q.GetResource(t.ctx, string(key.Owner), key.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding resource %s: %w", key, err)
	}
	return resourceFromRow(row)
}

func (t *sqliteTx) HasResource(key model.Key) (bool, error) {
	n, err := t.q.CountResource(t.ctx, string(key.Owner), key.ResourceID)
	if err != nil {
		return false, fmt.Errorf("checking resource %s: %w", key, err)
	}
	return n > 0, nil
}

func (t *sqliteTx) InsertResource(res *model.Resource) error {
	if err := t.writable(); err != nil {
		return err
	}
	err := t.q.InsertResource(t.ctx, ResourceRow{
		Owner:         string(res.Owner),
		ResourceID:    res.ID,
		Price:         res.Price.String(),
		MinOutputKg:   int64(res.MinOutputKg),
		FreezeAt:      res.FreezeAt.UTC(),
		HarvestBefore: res.HarvestBefore.UTC(),
		Info:          nonNil(res.Info),
		PublishedAt:   res.PublishedAt.UTC(),
	})
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: %s", adopt.ErrResourceAlreadyExist, res.Key())
	}
	if err != nil {
		return fmt.Errorf("inserting resource %s: %w", res.Key(), err)
	}
	return nil
}

func (t *sqliteTx) RemoveResource(key model.Key) error {
	if err := t.writable(); err != nil {
		return err
	}
	if err := t.q.DeleteResource(t.ctx, string(key.Owner), key.ResourceID); err != nil {
		return fmt.Errorf("removing resource %s: %w", key, err)
	}
	return nil
}

func (t *sqliteTx) GetContract(key model.Key) (*model.Contract, error) {
	row, err := t.q.GetContract(t.ctx, string(key.Owner), key.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding contract %s: %w", key, err)
	}
	return contractFromRow(row)
}

func (t *sqliteTx) HasContract(key model.Key) (bool, error) {
	n, err := t.q.CountContract(t.ctx, string(key.Owner), key.ResourceID)
	if err != nil {
		return false, fmt.Errorf("checking contract %s: %w", key, err)
	}
	return n > 0, nil
}

func (t *sqliteTx) InsertContract(c *model.Contract) error {
	if err := t.writable(); err != nil {
		return err
	}
	err := t.q.InsertContract(t.ctx, ContractRow{
		ID:         c.ID,
		Owner:      string(c.Owner),
		ResourceID: c.ResourceID,
		Adopter:    string(c.Adopter),
		Price:      c.Price.String(),
		StartAt:    c.StartAt.UTC(),
		EndAt:      c.EndAt.UTC(),
	})
	if isConstraintViolation(err) {
		return fmt.Errorf("%w: %s", adopt.ErrResourceAdopted, c.Key())
	}
	if err != nil {
		return fmt.Errorf("inserting contract %s: %w", c.Key(), err)
	}
	return nil
}

func (t *sqliteTx) LastEvent(key model.Key) (*model.ResourceEvent, error) {
	row, err := t.q.GetLastEvent(t.ctx, string(key.Owner), key.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Empty journal
		}
		return nil, fmt.Errorf("reading journal head %s: %w", key, err)
	}
	return eventFromRow(row), nil
}

func (t *sqliteTx) AppendEvent(ev *model.ResourceEvent) error {
	if err := t.writable(); err != nil {
		return err
	}
	err := t.q.InsertEvent(t.ctx, EventRow{
		Owner:      string(ev.Owner),
		ResourceID: ev.ResourceID,
		Sequence:   int64(ev.Sequence),
		Kind:       string(ev.Kind),
		Actor:      string(ev.Actor),
		Payload:    nonNil(ev.Payload),
		RecordedAt: ev.RecordedAt.UTC(),
		PrevHash:   ev.PrevHash,
		Hash:       ev.Hash,
	})
	if err != nil {
		return fmt.Errorf("appending event %d to %s: %w", ev.Sequence, ev.Key(), err)
	}
	return nil
}

func (t *sqliteTx) ListEvents(key model.Key) ([]*model.ResourceEvent, error) {
	rows, err := t.q.ListEvents(t.ctx, string(key.Owner), key.ResourceID)
	if err != nil {
		return nil, fmt.Errorf("listing events %s: %w", key, err)
	}

	result := make([]*model.ResourceEvent, len(rows))
	for i := range rows {
		result[i] = eventFromRow(rows[i])
	}
	return result, nil
}

// Treasury

// Fund credits amount to account, creating the account if needed.
func (s *SQLiteDatabase) Fund(ctx context.Context, account model.AccountID, amount model.Amount) error {
	if err := treasury.ValidateAccount(account); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := credit(ctx, s.queries.WithTx(tx), account, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Balance returns the balance of account; unknown accounts hold 0.
func (s *SQLiteDatabase) Balance(ctx context.Context, account model.AccountID) (model.Amount, error) {
	return balance(ctx, s.queries, account)
}

// Transfer moves amount between accounts in one transaction.
func (s *SQLiteDatabase) Transfer(ctx context.Context, from, to model.AccountID, amount model.Amount) error {
	if err := treasury.ValidateAccount(from); err != nil {
		return err
	}
	if err := treasury.ValidateAccount(to); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	qtx := s.queries.WithTx(tx)

	held, err := balance(ctx, qtx, from)
	if err != nil {
		return err
	}
	remaining, err := held.Sub(amount)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", adopt.ErrInsufficientFunds, from, held, amount)
	}
	if err := qtx.UpsertAccount(ctx, AccountRow{ID: string(from), Balance: remaining.String(), UpdatedAt: time.Now().UTC()}); err != nil {
		return fmt.Errorf("debiting %s: %w", from, err)
	}
	if err := credit(ctx, qtx, to, amount); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func balance(ctx context.Context, q *Queries, account model.AccountID) (model.Amount, error) {
	row, err := q.GetAccount(ctx, string(account))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Amount{}, nil
	}
	if err != nil {
		return model.Amount{}, fmt.Errorf("reading balance of %s: %w", account, err)
	}
	amount, err := model.ParseAmount(row.Balance)
	if err != nil {
		return model.Amount{}, fmt.Errorf("reading balance of %s: %w", account, err)
	}
	return amount, nil
}

func credit(ctx context.Context, q *Queries, account model.AccountID, amount model.Amount) error {
	held, err := balance(ctx, q, account)
	if err != nil {
		return err
	}
	err = q.UpsertAccount(ctx, AccountRow{
		ID:        string(account),
		Balance:   held.Add(amount).String(),
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("crediting %s: %w", account, err)
	}
	return nil
}

// Operation tracking

// Operation is one row of the operations journal.
type Operation struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Operation  string
	Parameters string
	Caller     string
	Status     string
}

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, operation, parameters, caller string) (*Operation, error) {
	id, err := s.queries.InsertOperation(ctx, time.Now().UTC(), operation, parameters, caller)
	if err != nil {
		return nil, fmt.Errorf("creating operation: %w", err)
	}
	row, err := s.queries.GetOperation(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading operation %d: %w", id, err)
	}
	return operationFromRow(row), nil
}

func (s *SQLiteDatabase) FinishOperation(ctx context.Context, id int64, status string) error {
	if err := s.queries.FinishOperation(ctx, time.Now().UTC(), status, id); err != nil {
		return fmt.Errorf("finishing operation: %w", err)
	}
	return nil
}

// ListOperations returns the newest operations first.
func (s *SQLiteDatabase) ListOperations(ctx context.Context, limit int) ([]*Operation, error) {
	rows, err := s.queries.ListOperations(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}

	result := make([]*Operation, len(rows))
	for i := range rows {
		result[i] = operationFromRow(rows[i])
	}
	return result, nil
}

// Row conversion

func resourceFromRow(row ResourceRow) (*model.Resource, error) {
	price, err := model.ParseAmount(row.Price)
	if err != nil {
		return nil, fmt.Errorf("decoding price of %s: %w", row.Owner, err)
	}
	return &model.Resource{
		ID:            row.ResourceID,
		Owner:         model.AccountID(row.Owner),
		Price:         price,
		MinOutputKg:   uint16(row.MinOutputKg),
		FreezeAt:      row.FreezeAt.UTC(),
		HarvestBefore: row.HarvestBefore.UTC(),
		Info:          nonNil(row.Info),
		PublishedAt:   row.PublishedAt.UTC(),
	}, nil
}

func contractFromRow(row ContractRow) (*model.Contract, error) {
	price, err := model.ParseAmount(row.Price)
	if err != nil {
		return nil, fmt.Errorf("decoding price of contract %s: %w", row.ID, err)
	}
	return &model.Contract{
		ID:         row.ID,
		Owner:      model.AccountID(row.Owner),
		ResourceID: row.ResourceID,
		Adopter:    model.AccountID(row.Adopter),
		Price:      price,
		StartAt:    row.StartAt.UTC(),
		EndAt:      row.EndAt.UTC(),
	}, nil
}

func eventFromRow(row EventRow) *model.ResourceEvent {
	return &model.ResourceEvent{
		Sequence:   uint64(row.Sequence),
		Kind:       model.EventKind(row.Kind),
		Owner:      model.AccountID(row.Owner),
		ResourceID: row.ResourceID,
		Actor:      model.AccountID(row.Actor),
		Payload:    nonNil(row.Payload),
		RecordedAt: row.RecordedAt.UTC(),
		PrevHash:   row.PrevHash,
		Hash:       row.Hash,
	}
}

func operationFromRow(row OperationRow) *Operation {
	op := &Operation{
		ID:         row.ID,
		StartedAt:  row.StartedAt,
		Operation:  row.Operation,
		Parameters: row.Parameters,
		Caller:     row.Caller,
		Status:     row.Status,
	}
	if row.FinishedAt.Valid {
		finished := row.FinishedAt.Time
		op.FinishedAt = &finished
	}
	return op
}

// nonNil keeps empty blobs distinct from SQL NULL and stable under hashing.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Compile-time checks that SQLiteDatabase implements the service interfaces
var (
	_ adopt.Ledger   = (*SQLiteDatabase)(nil)
	_ adopt.Treasury = (*SQLiteDatabase)(nil)
)
