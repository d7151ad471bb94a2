package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/gaseumlabs/uhcdb/internal/user/entity"
)

const userColumns = `id, permissions, bot_token, display_name, minecraft_uuid, minecraft_username`

// UserRepo provides data access for users table using sqlx. It works on the
// pool or on a transaction.
type UserRepo struct {
	db sqlx.ExtContext
}

func NewUserRepo(db sqlx.ExtContext) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users table if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
  id VARCHAR(32) PRIMARY KEY,
  permissions INTEGER NOT NULL DEFAULT 0,
  bot_token VARCHAR(64) UNIQUE,
  display_name TEXT NOT NULL DEFAULT '',
  minecraft_uuid VARCHAR(36),
  minecraft_username TEXT
)`,
		`CREATE INDEX IF NOT EXISTS idx_users_minecraft_uuid ON users(minecraft_uuid)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts the user unless the id is already taken.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	_, err := sqlx.NamedExecContext(ctx, r.db, `INSERT INTO users (`+userColumns+`)
		VALUES (:id, :permissions, :bot_token, :display_name, :minecraft_uuid, :minecraft_username)
		ON CONFLICT (id) DO NOTHING`, u)
	return err
}

// GetByID returns sql.ErrNoRows when absent.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByBotToken(ctx context.Context, token string) (*entity.User, error) {
	var u entity.User
	if err := sqlx.GetContext(ctx, r.db, &u, r.db.Rebind(`SELECT `+userColumns+` FROM users WHERE bot_token = ?`), token); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByMinecraftUUID(ctx context.Context, uuid string) (*entity.User, error) {
	var u entity.User
	q := r.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE minecraft_uuid = ? ORDER BY id LIMIT 1`)
	if err := sqlx.GetContext(ctx, r.db, &u, q, uuid); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByMinecraftUUIDs returns the users linked to any of the uuids.
func (r *UserRepo) ListByMinecraftUUIDs(ctx context.Context, uuids []string) ([]entity.User, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT `+userColumns+` FROM users WHERE minecraft_uuid IN (?)`, uuids)
	if err != nil {
		return nil, err
	}
	var out []entity.User
	if err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UserRepo) UpdateDisplayName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET display_name = ? WHERE id = ?`), name, id)
	return err
}

func (r *UserRepo) UpdateBotToken(ctx context.Context, id, token string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET bot_token = ? WHERE id = ?`), token, id)
	return err
}

// SetMinecraft binds a Minecraft account to the user.
func (r *UserRepo) SetMinecraft(ctx context.Context, id, uuid, username string) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE users SET minecraft_uuid = ?, minecraft_username = ? WHERE id = ?`), uuid, username, id)
	return err
}

// ClearMinecraft unbinds the Minecraft account from whoever holds it and
// returns the number of users changed.
func (r *UserRepo) ClearMinecraft(ctx context.Context, uuid string) (int64, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE users SET minecraft_uuid = NULL, minecraft_username = NULL WHERE minecraft_uuid = ?`), uuid)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
