package db

import (
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/robalobadob/bullseye/assets"
)

func TestMigrateIsIdempotent(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "nested", "bullseye.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	applied, err := Migrate(conn, assets.Migrations())
	if err != nil {
		t.Fatalf("first migrate: %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 migrations applied, got %v", applied)
	}

	applied, err = Migrate(conn, assets.Migrations())
	if err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("expected nothing to apply twice, got %v", applied)
	}

	for _, table := range []string{"users", "results"} {
		var name string
		if err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestMigrateOrdersAndRollsBack(t *testing.T) {
	conn, err := Open(filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	fsys := fstest.MapFS{
		"002_fill.sql":   {Data: []byte(`INSERT INTO things(v) VALUES (1);`)},
		"001_create.sql": {Data: []byte(`CREATE TABLE things (v INTEGER);`)},
		"003_broken.sql": {Data: []byte(`INSERT INTO nowhere VALUES (1);`)},
		"README.md":      {Data: []byte(`not a migration`)},
	}
	applied, err := Migrate(conn, fsys)
	if err == nil {
		t.Fatal("expected the broken migration to fail")
	}
	if len(applied) != 2 || applied[0] != "001_create.sql" || applied[1] != "002_fill.sql" {
		t.Errorf("expected ordered partial apply, got %v", applied)
	}

	var n int
	if err := conn.QueryRow(`SELECT COUNT(1) FROM _migrations WHERE name='003_broken.sql'`).Scan(&n); err != nil || n != 0 {
		t.Errorf("broken migration must not be recorded (n=%d, err=%v)", n, err)
	}
}
