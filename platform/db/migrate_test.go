package db

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEmbeddedMigrationsAreAnnotated(t *testing.T) {
	files, err := fs.Glob(Migrations(), "*.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("expected embedded migrations")
	}

	for _, name := range files {
		raw, err := fs.ReadFile(Migrations(), name)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Errorf("%s is missing goose annotations", name)
		}
	}
}

func TestProspectsNeverCascadeDelete(t *testing.T) {
	raw, err := fs.ReadFile(Migrations(), "00003_tasks_appointments.sql")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "REFERENCES prospects(id) ON DELETE CASCADE") {
		t.Fatal("tasks and appointments must not cascade from prospects")
	}
}
