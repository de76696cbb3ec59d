package app

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adopt-go/internal/adopt"
	"adopt-go/internal/auth"
	"adopt-go/internal/config"
	"adopt-go/internal/database"
	"adopt-go/internal/encryption"
	"adopt-go/internal/model"
)

const testPassphrase = "correct horse battery staple"

// newTestConfig lays out a complete installation under a temp dir: migrated
// database, token secret, age keys, and an encrypted filesystem archive.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.NewConfig(base)
	cfg.Events.Sinks = []config.SinkConfig{
		{Type: "log", Name: "log"},
		{Type: "filesystem", Name: "archive", FSRoot: filepath.Join(base, "archive"), Encrypt: true},
	}

	if _, err := InitDatabase(cfg.Database); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}
	if err := auth.GenerateSecret(cfg.Auth.SecretPath); err != nil {
		t.Fatalf("GenerateSecret() error = %v", err)
	}
	if err := encryption.NewAgeEncryptor(cfg.Encryption).WithWorkFactor(10).Setup(testPassphrase); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return cfg
}

// withApp runs fn against a fresh AdoptApp, the way one CLI invocation would.
func withApp(t *testing.T, cfg *config.Config, operation string, fn func(a *AdoptApp)) {
	t.Helper()

	a, err := NewAdoptApp(context.Background(), cfg, operation)
	if err != nil {
		t.Fatalf("NewAdoptApp(%s) error = %v", operation, err)
	}
	fn(a)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func TestAdoptApp_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	id := []byte("tomatoes")

	var alice, bob, carol string
	withApp(t, cfg, "IssueToken", func(a *AdoptApp) {
		var err error
		for _, tok := range []struct {
			dst     *string
			account model.AccountID
		}{{&alice, "alice"}, {&bob, "bob"}, {&carol, "carol"}} {
			if *tok.dst, err = a.IssueToken(tok.account); err != nil {
				t.Fatalf("IssueToken(%s) error = %v", tok.account, err)
			}
		}
	})

	withApp(t, cfg, "Fund", func(a *AdoptApp) {
		if err := a.Fund(ctx, "bob", model.NewAmount(100)); err != nil {
			t.Fatalf("Fund() error = %v", err)
		}
	})

	withApp(t, cfg, "Publish", func(a *AdoptApp) {
		now := time.Now().UTC()
		_, err := a.Publish(ctx, alice, adopt.PublishRequest{
			ID:            id,
			Price:         model.NewAmount(60),
			MinOutputKg:   5,
			FreezeAt:      now.Add(time.Hour),
			HarvestBefore: now.Add(24 * time.Hour),
		})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	})

	withApp(t, cfg, "Adopt", func(a *AdoptApp) {
		if _, err := a.Adopt(ctx, bob, "alice", id); err != nil {
			t.Fatalf("Adopt() error = %v", err)
		}
	})

	withApp(t, cfg, "Adopt", func(a *AdoptApp) {
		if _, err := a.Adopt(ctx, carol, "alice", id); !errors.Is(err, adopt.ErrResourceAdopted) {
			t.Fatalf("Adopt() error = %v, want ErrResourceAdopted", err)
		}
	})

	withApp(t, cfg, "Show", func(a *AdoptApp) {
		res, c, err := a.Resource(ctx, "alice", id)
		if err != nil {
			t.Fatalf("Resource() error = %v", err)
		}
		if res.Price.Cmp(model.NewAmount(60)) != 0 || c == nil || c.Adopter != "bob" {
			t.Errorf("Resource() = %+v, %+v", res, c)
		}

		for account, want := range map[model.AccountID]string{"alice": "60", "bob": "40"} {
			b, err := a.Balance(ctx, account)
			if err != nil || b.String() != want {
				t.Errorf("Balance(%s) = %s, %v, want %s", account, b, err, want)
			}
		}

		evs, err := a.Events(ctx, "alice", id, true)
		if err != nil || len(evs) != 2 {
			t.Fatalf("Events() = %d entries, %v", len(evs), err)
		}

		archived, err := a.FetchArchived(ctx, "archive", "alice", id, 2, func() (string, error) {
			return testPassphrase, nil
		})
		if err != nil {
			t.Fatalf("FetchArchived() error = %v", err)
		}
		if archived.Kind != model.ResourceAdopted || archived.Hash != evs[1].Hash {
			t.Errorf("FetchArchived() = %+v, want %+v", archived, evs[1])
		}

		if _, err := a.FetchArchived(ctx, "nope", "alice", id, 2, nil); err == nil || !strings.Contains(err.Error(), "archive") {
			t.Errorf("FetchArchived(unknown sink) error = %v", err)
		}
	})

	withApp(t, cfg, "History", func(a *AdoptApp) {
		ops, err := a.GetHistory(ctx, 10)
		if err != nil {
			t.Fatalf("GetHistory() error = %v", err)
		}

		want := []struct{ op, caller, status string }{
			{"Adopt", "carol", "ResourceAdopted"},
			{"Adopt", "bob", "success"},
			{"Publish", "alice", "success"},
			{"Fund", "", "success"},
		}
		if len(ops) != len(want) {
			t.Fatalf("GetHistory() returned %d operations, want %d", len(ops), len(want))
		}
		for i, w := range want {
			got := ops[i]
			if got.Operation != w.op || got.Caller != w.caller || got.Status != w.status {
				t.Errorf("ops[%d] = %s/%s/%s, want %s/%s/%s", i, got.Operation, got.Caller, got.Status, w.op, w.caller, w.status)
			}
			if got.FinishedAt == nil {
				t.Errorf("ops[%d] not finished", i)
			}
		}
	})
}

func TestAdoptApp_RejectedTokenIsJournaled(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)

	withApp(t, cfg, "Revoke", func(a *AdoptApp) {
		if err := a.Revoke(ctx, "not-a-token", []byte("x")); !errors.Is(err, adopt.ErrUnauthenticated) {
			t.Errorf("Revoke() error = %v, want ErrUnauthenticated", err)
		}
	})

	withApp(t, cfg, "History", func(a *AdoptApp) {
		ops, err := a.GetHistory(ctx, 10)
		if err != nil || len(ops) != 1 {
			t.Fatalf("GetHistory() = %d, %v", len(ops), err)
		}
		if ops[0].Status != "Unauthenticated" || ops[0].Caller != "" {
			t.Errorf("operation = %+v", ops[0])
		}
	})
}

func TestAdoptApp_MemoryBackends(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	cfg.Database = config.DatabaseConfig{Type: "memory"}
	cfg.Treasury = config.TreasuryConfig{Type: "memory"}
	cfg.Events.Sinks = nil

	withApp(t, cfg, "Adopt", func(a *AdoptApp) {
		alice, _ := a.IssueToken("alice")
		bob, _ := a.IssueToken("bob")

		now := time.Now().UTC()
		req := adopt.PublishRequest{ID: []byte("r"), Price: model.NewAmount(5), FreezeAt: now.Add(time.Hour), HarvestBefore: now.Add(2 * time.Hour)}
		if _, err := a.service.Publish(ctx, adopt.Origin(alice), req); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if err := a.bank.Fund(ctx, "bob", model.NewAmount(5)); err != nil {
			t.Fatalf("Fund() error = %v", err)
		}
		if _, err := a.Adopt(ctx, bob, "alice", []byte("r")); err != nil {
			t.Fatalf("Adopt() error = %v", err)
		}
	})
}

func TestNewAdoptApp_Errors(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr string
	}{
		{
			name: "unmigrated database",
			mutate: func(cfg *config.Config) {
				cfg.Database.DataDir = filepath.Join(cfg.BaseDir, "fresh")
			},
			wantErr: "schema",
		},
		{
			name:    "unknown treasury",
			mutate:  func(cfg *config.Config) { cfg.Treasury.Type = "bank" },
			wantErr: "unknown treasury type",
		},
		{
			name:    "memory treasury over a file database",
			mutate:  func(cfg *config.Config) { cfg.Treasury.Type = "memory" },
			wantErr: "needs database type memory",
		},
		{
			name:    "missing token secret",
			mutate:  func(cfg *config.Config) { cfg.Auth.SecretPath = filepath.Join(cfg.BaseDir, "missing") },
			wantErr: "token secret",
		},
		{
			name: "encrypted sink without keys",
			mutate: func(cfg *config.Config) {
				cfg.Encryption.PublicKeyPath = filepath.Join(cfg.BaseDir, "none.pub")
			},
			wantErr: "no encryptor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)

			a, err := NewAdoptApp(ctx, cfg, "Test")
			if err == nil {
				a.Close()
				t.Fatal("NewAdoptApp() error = nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("NewAdoptApp() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestAdoptApp_Snapshot(t *testing.T) {
	ctx := context.Background()
	cfg := newTestConfig(t)
	dest := filepath.Join(t.TempDir(), "snapshot.db")

	withApp(t, cfg, "Fund", func(a *AdoptApp) {
		if err := a.Fund(ctx, "bob", model.NewAmount(7)); err != nil {
			t.Fatalf("Fund() error = %v", err)
		}
		if err := a.Snapshot(ctx, dest); err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
	})

	snap, err := database.NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening snapshot: %v", err)
	}
	defer snap.Close()

	if err := snap.CheckMigrations(); err != nil {
		t.Errorf("snapshot schema: %v", err)
	}
	if b, err := snap.Balance(ctx, "bob"); err != nil || b.String() != "7" {
		t.Errorf("snapshot Balance() = %s, %v", b, err)
	}
}
