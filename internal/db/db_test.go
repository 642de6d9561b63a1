package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/robalobadob/hangman/assets"
)

func TestOpenAndMigrateEmbedded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hangman.db")
	db, err := OpenAndMigrate(path, assets.Migrations())
	if err != nil {
		t.Fatalf("OpenAndMigrate: %v", err)
	}
	defer db.Close()

	for _, table := range []string{"users", "games", "daily_results"} {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}

	// Running again is a no-op.
	if err := Migrate(db, assets.Migrations()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM _migrations`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("_migrations rows = %d, want 1", n)
	}
}

func TestMigrateOrderAndFailure(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "t.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"002_seed.sql":  {Data: []byte(`INSERT INTO things(name) VALUES ('a');`)},
		"001_table.sql": {Data: []byte(`CREATE TABLE things (name TEXT);`)},
		"README.md":     {Data: []byte(`ignored`)},
	}
	if err := Migrate(db, fsys); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM things`).Scan(&count); err != nil || count != 1 {
		t.Fatalf("things count = %d, err = %v", count, err)
	}

	bad := fstest.MapFS{"003_bad.sql": {Data: []byte(`CREATE TABLE broken (`)}}
	if err := Migrate(db, bad); err == nil {
		t.Fatal("expected error for invalid migration")
	}
	var recorded int
	_ = db.QueryRow(`SELECT COUNT(*) FROM _migrations WHERE name='003_bad.sql'`).Scan(&recorded)
	if recorded != 0 {
		t.Error("failed migration was recorded")
	}
}
