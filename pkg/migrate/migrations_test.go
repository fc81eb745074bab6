package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/quoteflow/pkg/migrate"
)

func TestUnrecordedChargesMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_unrecorded_charges.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no unrecorded charges migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS unrecorded_charges",
		"gateway_transaction_id TEXT NOT NULL",
		"CREATE INDEX IF NOT EXISTS idx_unrecorded_charges_order_number",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_unrecorded_charges_gateway_tx",
		"DROP TABLE IF EXISTS unrecorded_charges",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Share Audit!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_share_audit.sql") {
		t.Fatalf("unexpected migration path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestDialectFor(t *testing.T) {
	if got := migrate.DialectFor("SQLite"); got != "sqlite3" {
		t.Fatalf("expected sqlite3, got %q", got)
	}
	if got := migrate.DialectFor("postgres"); got != "postgres" {
		t.Fatalf("expected postgres, got %q", got)
	}
}
