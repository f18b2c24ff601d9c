package migrations_test

import (
	"io/fs"
	"regexp"
	"strings"
	"testing"

	"github.com/JaimeStill/docassist/internal/migrations"
)

var migrationName = regexp.MustCompile(`^(\d{6})_[a-z0-9_]+\.(up|down)\.sql$`)

func TestMigrationFilesArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrations.Files(), ".")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}

	pairs := make(map[string]map[string]bool)
	for _, e := range entries {
		m := migrationName.FindStringSubmatch(e.Name())
		if m == nil {
			t.Errorf("unexpected migration file name %q", e.Name())
			continue
		}
		if pairs[m[1]] == nil {
			pairs[m[1]] = make(map[string]bool)
		}
		pairs[m[1]][m[2]] = true
	}

	for version, dirs := range pairs {
		if !dirs["up"] || !dirs["down"] {
			t.Errorf("version %s missing a direction: %v", version, dirs)
		}
	}
}

func TestAnalysesSchemaMatchesProjection(t *testing.T) {
	data, err := fs.ReadFile(migrations.Files(), "000001_create_analyses.up.sql")
	if err != nil {
		t.Fatal(err)
	}
	schema := string(data)

	for _, col := range []string{
		"id", "session_id", "generation", "mode", "source_filename", "panel",
		"prediction", "narrative", "report_key", "report_size", "page_count", "created_at",
	} {
		if !strings.Contains(schema, "\n    "+col+" ") {
			t.Errorf("column %q missing from analyses", col)
		}
	}

	if !strings.Contains(schema, "UNIQUE (session_id, generation)") {
		t.Error("analyses must be unique per session generation")
	}
}

func TestNewRejectsInvalidDSN(t *testing.T) {
	if _, err := migrations.New("not-a-url"); err == nil {
		t.Error("expected error for invalid dsn")
	}
}
