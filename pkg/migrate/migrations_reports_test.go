package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReportsMigrationContainsSchema(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_reports.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no reports migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS reports",
		"report_id TEXT PRIMARY KEY",
		"status TEXT NOT NULL DEFAULT 'locked'",
		"repair_status TEXT NOT NULL DEFAULT 'locked'",
		"sent BOOLEAN NOT NULL DEFAULT FALSE",
		"DROP TABLE IF EXISTS reports",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
