package database

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
)

func TestConnectXMemory(t *testing.T) {
	db, err := ConnectX(MemoryConfig())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if got := db.Rebind("SELECT ? , ?"); got != "SELECT ? , ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestWithTxRollsBack(t *testing.T) {
	db, err := ConnectX(MemoryConfig())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE things (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create: %v", err)
	}

	boom := errors.New("boom")
	err = WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO things (id) VALUES (1)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	var n int
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM things`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("expected rollback, found %d rows", n)
	}

	if err := WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO things (id) VALUES (2)`)
		return err
	}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := db.GetContext(ctx, &n, `SELECT COUNT(*) FROM things`); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 row after commit, found %d", n)
	}
}

func TestSessionDSN(t *testing.T) {
	cases := []struct {
		dsn, tz, enc, want string
	}{
		{"postgres://u:p@db:5432/uhcdb?sslmode=disable", "", "", "postgres://u:p@db:5432/uhcdb?sslmode=disable"},
		{"postgres://u:p@db:5432/uhcdb?sslmode=disable", "America/Denver", "UTF8",
			"postgres://u:p@db:5432/uhcdb?client_encoding=UTF8&sslmode=disable&timezone=America%2FDenver"},
		{"host=db dbname=uhcdb", "UTC", "", "host=db dbname=uhcdb timezone='UTC'"},
		{"host=db", "O'Brien", "", `host=db timezone='O\'Brien'`},
	}
	for _, c := range cases {
		got, err := sessionDSN(c.dsn, c.tz, c.enc)
		if err != nil {
			t.Fatalf("sessionDSN(%q): %v", c.dsn, err)
		}
		if got != c.want {
			t.Errorf("sessionDSN(%q, %q, %q) = %q, want %q", c.dsn, c.tz, c.enc, got, c.want)
		}
	}
}
