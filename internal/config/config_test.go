package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestManager_ReadWrite_RoundTrip(t *testing.T) {
	original := &Config{
		BaseDir:  "/home/user/.local/share/adopt",
		LogDir:   "/home/user/.local/share/adopt/log",
		Database: DatabaseConfig{Type: "sqlite", DataDir: "/home/user/.local/share/adopt/db"},
		Treasury: TreasuryConfig{Type: "memory"},
		Auth: AuthConfig{
			SecretPath: "/home/user/.local/share/adopt/keys/token.secret",
			Issuer:     "farm",
			Audience:   "ledger",
			TokenTTL:   "1h",
		},
		Events: EventsConfig{
			Sinks: []SinkConfig{
				{Type: "log", Name: "log"},
				{Type: "s3", Name: "archive", Encrypt: true, S3Bucket: "events", S3Prefix: "prod", S3Region: "eu-west-1"},
			},
		},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  "/home/user/.local/share/adopt/keys/adopt.pub",
			PrivateKeyPath: "/home/user/.local/share/adopt/keys/adopt.key",
		},
	}

	var buf bytes.Buffer
	m := &Manager{}

	if err := m.Write(&buf, original); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := m.Read(&buf)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if got.BaseDir != original.BaseDir {
		t.Errorf("BaseDir = %q, want %q", got.BaseDir, original.BaseDir)
	}
	if got.LogDir != original.LogDir {
		t.Errorf("LogDir = %q, want %q", got.LogDir, original.LogDir)
	}
	if got.Database != original.Database {
		t.Errorf("Database = %+v, want %+v", got.Database, original.Database)
	}
	if got.Treasury.Type != "memory" {
		t.Errorf("Treasury.Type = %q, want %q", got.Treasury.Type, "memory")
	}
	if got.Auth != original.Auth {
		t.Errorf("Auth = %+v, want %+v", got.Auth, original.Auth)
	}
	if len(got.Events.Sinks) != 2 {
		t.Fatalf("len(Events.Sinks) = %d, want 2", len(got.Events.Sinks))
	}
	if got.Events.Sinks[1] != original.Events.Sinks[1] {
		t.Errorf("Sinks[1] = %+v, want %+v", got.Events.Sinks[1], original.Events.Sinks[1])
	}
	if got.Encryption != original.Encryption {
		t.Errorf("Encryption = %+v, want %+v", got.Encryption, original.Encryption)
	}
}

func TestManager_Read_SinkTables(t *testing.T) {
	doc := `
base_dir = "/srv/adopt"

[database]
type = "memory"

[[events.sinks]]
type = "filesystem"
name = "archive"
fs_root = "/srv/adopt/events"

[[events.sinks]]
type = "s3"
name = "offsite"
s3_bucket = "adopt-events"
s3_endpoint = "http://localhost:9000"
`
	got, err := (&Manager{}).Read(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if got.Database.Type != "memory" {
		t.Errorf("Database.Type = %q, want memory", got.Database.Type)
	}
	if len(got.Events.Sinks) != 2 {
		t.Fatalf("len(Events.Sinks) = %d, want 2", len(got.Events.Sinks))
	}
	if got.Events.Sinks[0].FSRoot != "/srv/adopt/events" {
		t.Errorf("Sinks[0].FSRoot = %q", got.Events.Sinks[0].FSRoot)
	}
	if got.Events.Sinks[1].S3Endpoint != "http://localhost:9000" {
		t.Errorf("Sinks[1].S3Endpoint = %q", got.Events.Sinks[1].S3Endpoint)
	}
}

func TestNewConfig(t *testing.T) {
	cfg := NewConfig("/data/adopt")

	if cfg.BaseDir != "/data/adopt" {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, "/data/adopt")
	}
	if cfg.LogDir != "/data/adopt/log" {
		t.Errorf("LogDir = %q, want %q", cfg.LogDir, "/data/adopt/log")
	}
	if cfg.Database.Type != "sqlite" || cfg.Database.DataDir != "/data/adopt/db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Treasury.Type != "ledger" {
		t.Errorf("Treasury.Type = %q, want ledger", cfg.Treasury.Type)
	}
	if cfg.Auth.SecretPath != "/data/adopt/keys/token.secret" {
		t.Errorf("Auth.SecretPath = %q", cfg.Auth.SecretPath)
	}
	if cfg.Encryption.PublicKeyPath != "/data/adopt/keys/adopt.pub" {
		t.Errorf("Encryption.PublicKeyPath = %q, want %q", cfg.Encryption.PublicKeyPath, "/data/adopt/keys/adopt.pub")
	}
	if cfg.Encryption.PrivateKeyPath != "/data/adopt/keys/adopt.key" {
		t.Errorf("Encryption.PrivateKeyPath = %q, want %q", cfg.Encryption.PrivateKeyPath, "/data/adopt/keys/adopt.key")
	}
	if len(cfg.Events.Sinks) != 1 || cfg.Events.Sinks[0].Type != "log" {
		t.Errorf("Events.Sinks = %+v, want a single log sink", cfg.Events.Sinks)
	}
}

func TestAuthConfig_TTL(t *testing.T) {
	tests := []struct {
		name    string
		ttl     string
		want    time.Duration
		wantErr bool
	}{
		{name: "default", ttl: "", want: 24 * time.Hour},
		{name: "explicit", ttl: "90m", want: 90 * time.Minute},
		{name: "garbage", ttl: "soon", wantErr: true},
		{name: "negative", ttl: "-1h", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AuthConfig{TokenTTL: tt.ttl}.TTL()
			if (err != nil) != tt.wantErr {
				t.Fatalf("TTL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("TTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInit(t *testing.T) {
	t.Run("creates config file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "adopt.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		if _, err := os.Stat(path); err != nil {
			t.Fatalf("config file not created: %v", err)
		}
	})

	t.Run("fails if file already exists", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "adopt.toml")
		cfg := NewConfig(dir)

		if err := Init(path, cfg); err != nil {
			t.Fatalf("first Init() error = %v", err)
		}

		err := Init(path, cfg)
		if err == nil {
			t.Fatal("second Init() expected error")
		}
	})
}

func TestReadFromFile(t *testing.T) {
	t.Run("reads valid config", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "adopt.toml")
		cfg := NewConfig(dir)
		cfg.Database = DatabaseConfig{Type: "memory"}

		if err := Init(path, cfg); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		got, err := ReadFromFile(path)
		if err != nil {
			t.Fatalf("ReadFromFile() error = %v", err)
		}
		if got.Database.Type != "memory" {
			t.Errorf("Database.Type = %q, want %q", got.Database.Type, "memory")
		}
		if got.BaseDir != dir {
			t.Errorf("BaseDir = %q, want %q", got.BaseDir, dir)
		}
	})

	t.Run("returns error for missing file", func(t *testing.T) {
		_, err := ReadFromFile("/nonexistent/path/adopt.toml")
		if err == nil {
			t.Fatal("ReadFromFile() expected error for missing file")
		}
	})
}
