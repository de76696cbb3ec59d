package database

import _ "embed"

// Schema is the full DDL produced by applying every migration to an empty
// database. Tests apply it directly instead of running migrations.
// Regenerate with: go generate ./internal/database
//
//go:generate sh -c "cd ../.. && go run internal/database/tools/generate_schema.go"
//go:embed schema.sql
var Schema string
