package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gaseumlabs/uhcdb/internal/link/entity"
)

type CodeRepo struct {
	db sqlx.ExtContext
}

func NewCodeRepo(db sqlx.ExtContext) *CodeRepo {
	return &CodeRepo{db: db}
}

// EnsureTable creates the link_codes table if it does not already exist.
// One row per Minecraft account; codes are unique.
func (r *CodeRepo) EnsureTable(ctx context.Context) error {
	const tbl = `
	CREATE TABLE IF NOT EXISTS link_codes (
		minecraft_uuid varchar(36) PRIMARY KEY,
		code varchar(32) NOT NULL,
		minecraft_username text NOT NULL DEFAULT '',
		expiration bigint NOT NULL
	)
	`
	if _, err := r.db.ExecContext(ctx, tbl); err != nil {
		return err
	}

	const idx = `
	CREATE UNIQUE INDEX IF NOT EXISTS idx_link_codes_code ON link_codes (code)
	`
	if _, err := r.db.ExecContext(ctx, idx); err != nil {
		return err
	}
	return nil
}

// Save stores the code, replacing any outstanding code for the same account.
func (r *CodeRepo) Save(ctx context.Context, c entity.VerifyCode) error {
	const q = `INSERT INTO link_codes (minecraft_uuid, code, minecraft_username, expiration)
		VALUES (:minecraft_uuid, :code, :minecraft_username, :expiration)
		ON CONFLICT (minecraft_uuid) DO UPDATE SET code = excluded.code,
			minecraft_username = excluded.minecraft_username, expiration = excluded.expiration`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, c)
	return err
}

func (r *CodeRepo) GetByCode(ctx context.Context, code string) (*entity.VerifyCode, error) {
	var c entity.VerifyCode
	err := sqlx.GetContext(ctx, r.db, &c, r.db.Rebind(
		`SELECT minecraft_uuid, code, minecraft_username, expiration FROM link_codes WHERE code = ?`), code)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes the code and reports how many rows went with it.
func (r *CodeRepo) Delete(ctx context.Context, code string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM link_codes WHERE code = ?`), code)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
