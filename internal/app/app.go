package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"adopt-go/internal/adopt"
	"adopt-go/internal/auth"
	"adopt-go/internal/config"
	"adopt-go/internal/database"
	"adopt-go/internal/encryption"
	"adopt-go/internal/events"
	"adopt-go/internal/model"
	"adopt-go/internal/treasury"
)

// Bank is a Treasury that can also mint and report balances.
type Bank interface {
	adopt.Treasury
	Fund(ctx context.Context, account model.AccountID, amount model.Amount) error
	Balance(ctx context.Context, account model.AccountID) (model.Amount, error)
}

// AdoptApp is the application layer between the CLI and adopt.Service.
// It constructs all dependencies from config, records mutating commands in
// the operations journal, and manages the DB lifecycle on Close.
type AdoptApp struct {
	cfg      *config.Config
	db       *database.SQLiteDatabase
	bank     Bank
	keys     encryption.KeyManager
	verifier *auth.JWTVerifier
	sink     adopt.EventSink
	service  *adopt.Service
	op       *Operation
	logFile  *os.File
}

// NewAdoptApp creates a fully wired AdoptApp from the given config.
// operation identifies the CLI command being run (e.g. "Publish", "Adopt").
// The caller must call Close when done.
func NewAdoptApp(ctx context.Context, cfg *config.Config, operation string) (*AdoptApp, error) {
	db, err := openDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	bank, err := newBank(cfg, db)
	if err != nil {
		db.Close()
		return nil, err
	}

	clock := adopt.RealClock{}
	verifier, err := auth.NewFromConfig(cfg.Auth, clock)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token verifier: %w", err)
	}

	keys, err := encryption.NewFromConfig(cfg.Encryption)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	// Only hand sinks a configured key; encrypted sinks reject a nil one.
	var enc encryption.Encryptor
	if keys.IsConfigured() {
		enc = keys
	}

	opID := time.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	sink, err := events.NewFromConfig(ctx, cfg.Events, log, enc)
	if err != nil {
		db.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating event sinks: %w", err)
	}

	svc := adopt.NewService(db, bank, verifier, sink, log, clock, adopt.UUIDGenerator{})

	return &AdoptApp{
		cfg:      cfg,
		db:       db,
		bank:     bank,
		keys:     keys,
		verifier: verifier,
		sink:     sink,
		service:  svc,
		op:       NewOperation(operation, ""),
		logFile:  logFile,
	}, nil
}

// openDatabase opens the configured store. A file-backed store must already
// be migrated; an in-memory store is migrated on open.
func openDatabase(cfg config.DatabaseConfig) (*database.SQLiteDatabase, error) {
	db, err := database.NewDatabaseFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}

	if cfg.Type == "memory" {
		err = db.MigrateUp()
	} else {
		err = db.CheckMigrations()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}
	return db, nil
}

// newBank selects where balances live. A memory treasury forgets every
// balance when the process exits, so it is only accepted alongside a memory
// database, where the whole ledger is equally short-lived (tests, dry runs).
func newBank(cfg *config.Config, db *database.SQLiteDatabase) (Bank, error) {
	switch cfg.Treasury.Type {
	case "ledger", "":
		return db, nil
	case "memory":
		if cfg.Database.Type != "memory" {
			return nil, fmt.Errorf("treasury type memory needs database type memory, got %q", cfg.Database.Type)
		}
		return treasury.NewMemoryTreasury(), nil
	default:
		return nil, fmt.Errorf("unknown treasury type: %s", cfg.Treasury.Type)
	}
}

// InitDatabase creates the configured database and applies all migrations.
func InitDatabase(cfg config.DatabaseConfig) (string, error) {
	db, err := database.NewDatabaseFromConfig(cfg)
	if err != nil {
		return "", fmt.Errorf("creating database: %w", err)
	}
	defer db.Close()

	if err := db.MigrateUp(); err != nil {
		return "", err
	}
	return db.Path(), nil
}

// record persists the operation on first use. Only DB-mutating commands call it.
func (a *AdoptApp) record(ctx context.Context, parameters string, caller model.AccountID) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = parameters
	a.op.Caller = string(caller)

	dbOp, err := a.db.CreateOperation(ctx, a.op.Operation, a.op.Parameters, a.op.Caller)
	if err != nil {
		return fmt.Errorf("persisting operation: %w", err)
	}
	a.op.ID = dbOp.ID
	return nil
}

// caller resolves the token for the journal. Unverifiable tokens are
// recorded anonymously; the service reports the rejection itself.
func (a *AdoptApp) caller(ctx context.Context, token string) model.AccountID {
	id, err := a.verifier.Verify(ctx, adopt.Origin(token))
	if err != nil {
		return ""
	}
	return id
}

// Publish records a new resource owned by the token's account.
func (a *AdoptApp) Publish(ctx context.Context, token string, req adopt.PublishRequest) (*model.Resource, error) {
	params := fmt.Sprintf("id=%s price=%s freeze_at=%s harvest_before=%s",
		req.ID, req.Price, req.FreezeAt.UTC().Format(time.RFC3339), req.HarvestBefore.UTC().Format(time.RFC3339))
	if err := a.record(ctx, params, a.caller(ctx, token)); err != nil {
		return nil, err
	}

	res, err := a.service.Publish(ctx, adopt.Origin(token), req)
	a.op.Finish(err)
	return res, err
}

// Revoke removes one of the token account's resources.
func (a *AdoptApp) Revoke(ctx context.Context, token string, id []byte) error {
	if err := a.record(ctx, "id="+string(id), a.caller(ctx, token)); err != nil {
		return err
	}

	err := a.service.Revoke(ctx, adopt.Origin(token), id)
	a.op.Finish(err)
	return err
}

// ChangeState journals a state report for one of the token account's resources.
func (a *AdoptApp) ChangeState(ctx context.Context, token string, id, payload []byte) (*model.ResourceEvent, error) {
	if err := a.record(ctx, "id="+string(id), a.caller(ctx, token)); err != nil {
		return nil, err
	}

	ev, err := a.service.ChangeState(ctx, adopt.Origin(token), id, payload)
	a.op.Finish(err)
	return ev, err
}

// Adopt buys the claim on owner's resource for the token's account.
func (a *AdoptApp) Adopt(ctx context.Context, token string, owner model.AccountID, id []byte) (*model.Contract, error) {
	params := fmt.Sprintf("owner=%s id=%s", owner, id)
	if err := a.record(ctx, params, a.caller(ctx, token)); err != nil {
		return nil, err
	}

	c, err := a.service.Adopt(ctx, adopt.Origin(token), owner, id)
	a.op.Finish(err)
	return c, err
}

// Resource returns a resource together with its contract, if adopted.
func (a *AdoptApp) Resource(ctx context.Context, owner model.AccountID, id []byte) (*model.Resource, *model.Contract, error) {
	res, err := a.service.Resource(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}
	c, err := a.service.Contract(ctx, owner, id)
	if errors.Is(err, adopt.ErrContractNotExist) {
		return res, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return res, c, nil
}

// Events returns the journal of (owner, id). With verify set, the hash
// chain is checked first.
func (a *AdoptApp) Events(ctx context.Context, owner model.AccountID, id []byte, verify bool) ([]*model.ResourceEvent, error) {
	if verify {
		if err := a.service.VerifyEvents(ctx, owner, id); err != nil {
			return nil, err
		}
	}
	return a.service.Events(ctx, owner, id)
}

// Fund credits an account. Funding is an administrative action and needs no token.
func (a *AdoptApp) Fund(ctx context.Context, account model.AccountID, amount model.Amount) error {
	if err := a.record(ctx, fmt.Sprintf("account=%s amount=%s", account, amount), ""); err != nil {
		return err
	}

	err := a.bank.Fund(ctx, account, amount)
	a.op.Finish(err)
	return err
}

// Balance returns the balance of account.
func (a *AdoptApp) Balance(ctx context.Context, account model.AccountID) (model.Amount, error) {
	return a.bank.Balance(ctx, account)
}

// IssueToken signs a token for account with the configured TTL.
func (a *AdoptApp) IssueToken(account model.AccountID) (string, error) {
	ttl, err := a.cfg.Auth.TTL()
	if err != nil {
		return "", err
	}
	return a.verifier.Issue(account, ttl)
}

// GetHistory returns the most recent operations.
func (a *AdoptApp) GetHistory(ctx context.Context, limit int) ([]*database.Operation, error) {
	return a.db.ListOperations(ctx, limit)
}

// FetchArchived reads one event back from the named archive sink. The
// private key is unlocked only when the archive is encrypted.
func (a *AdoptApp) FetchArchived(ctx context.Context, sinkName string, owner model.AccountID, id []byte, seq uint64, passphrase func() (string, error)) (*model.ResourceEvent, error) {
	sink, err := a.archiveSink(sinkName)
	if err != nil {
		return nil, err
	}

	var dec encryption.Decryptor
	if sink.Encrypted() {
		pass, err := passphrase()
		if err != nil {
			return nil, fmt.Errorf("reading passphrase: %w", err)
		}
		dec, err = a.keys.Unlock(pass)
		if err != nil {
			return nil, fmt.Errorf("unlocking private key: %w", err)
		}
	}
	return sink.Fetch(ctx, owner, id, seq, dec)
}

func (a *AdoptApp) archiveSink(name string) (*events.ArchiveSink, error) {
	var candidates []adopt.EventSink
	switch s := a.sink.(type) {
	case events.MultiSink:
		candidates = s
	default:
		candidates = []adopt.EventSink{s}
	}

	var names []string
	for _, c := range candidates {
		as, ok := c.(*events.ArchiveSink)
		if !ok {
			continue
		}
		if as.Archive().Name() == name {
			return as, nil
		}
		names = append(names, as.Archive().Name())
	}
	return nil, fmt.Errorf("no archive sink named %q (have: %s)", name, strings.Join(names, ", "))
}

// Snapshot writes a consistent copy of the database to dest.
func (a *AdoptApp) Snapshot(ctx context.Context, dest string) error {
	return a.db.BackupTo(ctx, dest)
}

// Close finalizes the operation record and closes all resources.
func (a *AdoptApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.db.FinishOperation(context.Background(), a.op.ID, a.op.Status); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}

	if err := a.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}
