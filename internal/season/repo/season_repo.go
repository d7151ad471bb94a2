package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gaseumlabs/uhcdb/internal/season/entity"
)

// Repo stores seasons keyed by number.
type Repo struct {
	db *sqlx.DB
}

func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// EnsureTable ensures the seasons table exists.
// Fields:
// - number integer PRIMARY KEY
// - logo text
// - color bigint
// - champion text, nullable
func (r *Repo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS seasons (
		number INTEGER PRIMARY KEY,
		logo TEXT NOT NULL DEFAULT '',
		color BIGINT NOT NULL DEFAULT 0,
		champion TEXT
	)`)
	return err
}

// Upsert creates or replaces a season.
func (r *Repo) Upsert(ctx context.Context, s entity.Season) error {
	const q = `INSERT INTO seasons (number, logo, color, champion)
		VALUES (:number, :logo, :color, :champion)
		ON CONFLICT (number) DO UPDATE SET logo = excluded.logo, color = excluded.color, champion = excluded.champion`
	_, err := r.db.NamedExecContext(ctx, q, s)
	return err
}

func (r *Repo) GetByNumber(ctx context.Context, number int) (*entity.Season, error) {
	var s entity.Season
	err := r.db.GetContext(ctx, &s, r.db.Rebind(`SELECT number, logo, color, champion FROM seasons WHERE number = ?`), number)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) Exists(ctx context.Context, number int) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, r.db.Rebind(`SELECT COUNT(*) FROM seasons WHERE number = ?`), number)
	return n > 0, err
}
