package database

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds the SQL for every table. It runs against whatever DBTX it
// was built with, so the same methods serve plain and transactional use.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Row types mirror the table columns one to one.

type ResourceRow struct {
	Owner         string
	ResourceID    []byte
	Price         string
	MinOutputKg   int64
	FreezeAt      time.Time
	HarvestBefore time.Time
	Info          []byte
	PublishedAt   time.Time
}

type ContractRow struct {
	ID         string
	Owner      string
	ResourceID []byte
	Adopter    string
	Price      string
	StartAt    time.Time
	EndAt      time.Time
}

type EventRow struct {
	Owner      string
	ResourceID []byte
	Sequence   int64
	Kind       string
	Actor      string
	Payload    []byte
	RecordedAt time.Time
	PrevHash   string
	Hash       string
}

type AccountRow struct {
	ID        string
	Balance   string
	UpdatedAt time.Time
}

type OperationRow struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Operation  string
	Parameters string
	Caller     string
	Status     string
}

// Resources

const getResource = `SELECT owner, resource_id, price, min_output_kg, freeze_at, harvest_before, info, published_at
FROM resources WHERE owner = ? AND resource_id = ?`

func (q *Queries) GetResource(ctx context.Context, owner string, resourceID []byte) (ResourceRow, error) {
	var r ResourceRow
	err := q.db.QueryRowContext(ctx, getResource, owner, resourceID).Scan(
		&r.Owner, &r.ResourceID, &r.Price, &r.MinOutputKg,
		&r.FreezeAt, &r.HarvestBefore, &r.Info, &r.PublishedAt,
	)
	return r, err
}

const countResource = `SELECT COUNT(*) FROM resources WHERE owner = ? AND resource_id = ?`

func (q *Queries) CountResource(ctx context.Context, owner string, resourceID []byte) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countResource, owner, resourceID).Scan(&n)
	return n, err
}

const insertResource = `INSERT INTO resources (owner, resource_id, price, min_output_kg, freeze_at, harvest_before, info, published_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertResource(ctx context.Context, r ResourceRow) error {
	_, err := q.db.ExecContext(ctx, insertResource,
		r.Owner, r.ResourceID, r.Price, r.MinOutputKg,
		r.FreezeAt, r.HarvestBefore, r.Info, r.PublishedAt,
	)
	return err
}

const deleteResource = `DELETE FROM resources WHERE owner = ? AND resource_id = ?`

func (q *Queries) DeleteResource(ctx context.Context, owner string, resourceID []byte) error {
	_, err := q.db.ExecContext(ctx, deleteResource, owner, resourceID)
	return err
}

// Contracts

const getContract = `SELECT id, owner, resource_id, adopter, price, start_at, end_at
FROM contracts WHERE owner = ? AND resource_id = ?`

func (q *Queries) GetContract(ctx context.Context, owner string, resourceID []byte) (ContractRow, error) {
	var c ContractRow
	err := q.db.QueryRowContext(ctx, getContract, owner, resourceID).Scan(
		&c.ID, &c.Owner, &c.ResourceID, &c.Adopter, &c.Price, &c.StartAt, &c.EndAt,
	)
	return c, err
}

const countContract = `SELECT COUNT(*) FROM contracts WHERE owner = ? AND resource_id = ?`

func (q *Queries) CountContract(ctx context.Context, owner string, resourceID []byte) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countContract, owner, resourceID).Scan(&n)
	return n, err
}

const insertContract = `INSERT INTO contracts (id, owner, resource_id, adopter, price, start_at, end_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertContract(ctx context.Context, c ContractRow) error {
	_, err := q.db.ExecContext(ctx, insertContract,
		c.ID, c.Owner, c.ResourceID, c.Adopter, c.Price, c.StartAt, c.EndAt,
	)
	return err
}

// Resource events

const eventColumns = `owner, resource_id, sequence, kind, actor, payload, recorded_at, prev_hash, hash`

const getLastEvent = `SELECT ` + eventColumns + `
FROM resource_events WHERE owner = ? AND resource_id = ?
ORDER BY sequence DESC LIMIT 1`

func (q *Queries) GetLastEvent(ctx context.Context, owner string, resourceID []byte) (EventRow, error) {
	return scanEvent(q.db.QueryRowContext(ctx, getLastEvent, owner, resourceID))
}

const insertEvent = `INSERT INTO resource_events (` + eventColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) InsertEvent(ctx context.Context, e EventRow) error {
	_, err := q.db.ExecContext(ctx, insertEvent,
		e.Owner, e.ResourceID, e.Sequence, e.Kind, e.Actor,
		e.Payload, e.RecordedAt, e.PrevHash, e.Hash,
	)
	return err
}

const listEvents = `SELECT ` + eventColumns + `
FROM resource_events WHERE owner = ? AND resource_id = ?
ORDER BY sequence`

func (q *Queries) ListEvents(ctx context.Context, owner string, resourceID []byte) ([]EventRow, error) {
	rows, err := q.db.QueryContext(ctx, listEvents, owner, resourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []EventRow
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(s scanner) (EventRow, error) {
	var e EventRow
	err := s.Scan(
		&e.Owner, &e.ResourceID, &e.Sequence, &e.Kind, &e.Actor,
		&e.Payload, &e.RecordedAt, &e.PrevHash, &e.Hash,
	)
	return e, err
}

// Accounts

const getAccount = `SELECT id, balance, updated_at FROM accounts WHERE id = ?`

func (q *Queries) GetAccount(ctx context.Context, id string) (AccountRow, error) {
	var a AccountRow
	err := q.db.QueryRowContext(ctx, getAccount, id).Scan(&a.ID, &a.Balance, &a.UpdatedAt)
	return a, err
}

const upsertAccount = `INSERT INTO accounts (id, balance, updated_at) VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET balance = excluded.balance, updated_at = excluded.updated_at`

func (q *Queries) UpsertAccount(ctx context.Context, a AccountRow) error {
	_, err := q.db.ExecContext(ctx, upsertAccount, a.ID, a.Balance, a.UpdatedAt)
	return err
}

// Operations

const insertOperation = `INSERT INTO operations (started_at, operation, parameters, caller)
VALUES (?, ?, ?, ?)`

func (q *Queries) InsertOperation(ctx context.Context, startedAt time.Time, operation, parameters, caller string) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertOperation, startedAt, operation, parameters, caller)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const getOperation = `SELECT id, started_at, finished_at, operation, parameters, caller, status
FROM operations WHERE id = ?`

func (q *Queries) GetOperation(ctx context.Context, id int64) (OperationRow, error) {
	return scanOperation(q.db.QueryRowContext(ctx, getOperation, id))
}

const finishOperation = `UPDATE operations SET finished_at = ?, status = ? WHERE id = ?`

func (q *Queries) FinishOperation(ctx context.Context, finishedAt time.Time, status string, id int64) error {
	_, err := q.db.ExecContext(ctx, finishOperation, finishedAt, status, id)
	return err
}

const listOperations = `SELECT id, started_at, finished_at, operation, parameters, caller, status
FROM operations ORDER BY id DESC LIMIT ?`

func (q *Queries) ListOperations(ctx context.Context, limit int64) ([]OperationRow, error) {
	rows, err := q.db.QueryContext(ctx, listOperations, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OperationRow
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanOperation(s scanner) (OperationRow, error) {
	var op OperationRow
	err := s.Scan(&op.ID, &op.StartedAt, &op.FinishedAt, &op.Operation, &op.Parameters, &op.Caller, &op.Status)
	return op, err
}
