package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gaseumlabs/uhcdb/internal/summary/entity"
	"github.com/gaseumlabs/uhcdb/pkg/database"
)

// NOTE: every summary table carries the ancestor column. Rows of one
// aggregate share (ancestor, summary id); draft rows use ancestor ''.

// Key addresses one stored record under a summary ancestor.
type Key struct {
	Kind string `db:"kind"`
	ID   string `db:"id"`
}

// Position is the sort key of a header inside the date-descending listing.
type Position struct {
	DateMs   int64
	Ancestor entity.Ancestor
	ID       string
}

// SummaryRepo reads and writes summary aggregates. It is bound either to the
// connection pool or, inside WithTx, to a single transaction.
type SummaryRepo struct {
	db   sqlx.ExtContext
	root *sqlx.DB
}

func NewSummaryRepo(db *sqlx.DB) *SummaryRepo { return &SummaryRepo{db: db, root: db} }

// WithTx runs fn with a repo bound to one transaction.
func (r *SummaryRepo) WithTx(ctx context.Context, fn func(tx *SummaryRepo) error) error {
	return database.WithTx(ctx, r.root, func(tx *sqlx.Tx) error {
		return fn(&SummaryRepo{db: tx, root: r.root})
	})
}

// EnsureTable creates the summary tables if they do not exist.
func (r *SummaryRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS summary_headers (
			ancestor VARCHAR(64) NOT NULL DEFAULT '',
			id VARCHAR(32) NOT NULL,
			game_type TEXT NOT NULL,
			date_ms BIGINT NOT NULL,
			game_length BIGINT NOT NULL,
			PRIMARY KEY (ancestor, id)
		)`,
		`CREATE TABLE IF NOT EXISTS summary_teams (
			ancestor VARCHAR(64) NOT NULL DEFAULT '',
			summary_id VARCHAR(32) NOT NULL,
			id VARCHAR(32) NOT NULL,
			name TEXT NOT NULL,
			color0 BIGINT NOT NULL,
			color1 BIGINT NOT NULL,
			members TEXT NOT NULL DEFAULT '[]',
			PRIMARY KEY (ancestor, summary_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS summary_entries (
			ancestor VARCHAR(64) NOT NULL DEFAULT '',
			summary_id VARCHAR(32) NOT NULL,
			id VARCHAR(32) NOT NULL,
			place INTEGER NOT NULL,
			uuid VARCHAR(36) NOT NULL,
			name TEXT NOT NULL,
			time_survived BIGINT NOT NULL,
			killed_by VARCHAR(36),
			PRIMARY KEY (ancestor, summary_id, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_summary_headers_date ON summary_headers (date_ms)`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure summary tables: %w", err)
		}
	}
	return nil
}

func (r *SummaryRepo) InsertHeader(ctx context.Context, h entity.HeaderRecord) error {
	const q = `INSERT INTO summary_headers (ancestor, id, game_type, date_ms, game_length)
		VALUES (:ancestor, :id, :game_type, :date_ms, :game_length)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, h)
	return err
}

// InsertTeams saves all teams in one multi-row insert.
func (r *SummaryRepo) InsertTeams(ctx context.Context, teams []entity.TeamRecord) error {
	if len(teams) == 0 {
		return nil
	}
	const q = `INSERT INTO summary_teams (ancestor, summary_id, id, name, color0, color1, members)
		VALUES (:ancestor, :summary_id, :id, :name, :color0, :color1, :members)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, teams)
	return err
}

// InsertEntries saves all entries in one multi-row insert.
func (r *SummaryRepo) InsertEntries(ctx context.Context, entries []entity.EntryRecord) error {
	if len(entries) == 0 {
		return nil
	}
	const q = `INSERT INTO summary_entries (ancestor, summary_id, id, place, uuid, name, time_survived, killed_by)
		VALUES (:ancestor, :summary_id, :id, :place, :uuid, :name, :time_survived, :killed_by)`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, entries)
	return err
}

// LoadParts reads every record under the summary key. It returns
// sql.ErrNoRows when the header itself is absent, even if orphaned children
// exist.
func (r *SummaryRepo) LoadParts(ctx context.Context, anc entity.Ancestor, id string) (*entity.Parts, error) {
	var p entity.Parts
	err := sqlx.GetContext(ctx, r.db, &p.Header, r.db.Rebind(
		`SELECT ancestor, id, game_type, date_ms, game_length FROM summary_headers WHERE ancestor = ? AND id = ?`),
		anc, id)
	if err != nil {
		return nil, err
	}
	if err := sqlx.SelectContext(ctx, r.db, &p.Teams, r.db.Rebind(
		`SELECT ancestor, summary_id, id, name, color0, color1, members FROM summary_teams
		 WHERE ancestor = ? AND summary_id = ? ORDER BY id`), anc, id); err != nil {
		return nil, err
	}
	if err := sqlx.SelectContext(ctx, r.db, &p.Entries, r.db.Rebind(
		`SELECT ancestor, summary_id, id, place, uuid, name, time_survived, killed_by FROM summary_entries
		 WHERE ancestor = ? AND summary_id = ? ORDER BY place, id`), anc, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// Keys is a keys-only query of every record under the summary key, the
// header included.
func (r *SummaryRepo) Keys(ctx context.Context, anc entity.Ancestor, id string) ([]Key, error) {
	q := r.db.Rebind(`
		SELECT 'summary' AS kind, id FROM summary_headers WHERE ancestor = ? AND id = ?
		UNION ALL
		SELECT 'team' AS kind, id FROM summary_teams WHERE ancestor = ? AND summary_id = ?
		UNION ALL
		SELECT 'summaryEntry' AS kind, id FROM summary_entries WHERE ancestor = ? AND summary_id = ?`)
	var keys []Key
	if err := sqlx.SelectContext(ctx, r.db, &keys, q, anc, id, anc, id, anc, id); err != nil {
		return nil, err
	}
	return keys, nil
}

// DeleteKeys removes the given records under the summary key and reports how
// many rows were removed.
func (r *SummaryRepo) DeleteKeys(ctx context.Context, anc entity.Ancestor, id string, keys []Key) (int64, error) {
	byKind := map[string][]string{}
	for _, k := range keys {
		byKind[k.Kind] = append(byKind[k.Kind], k.ID)
	}
	var total int64
	for kind, ids := range byKind {
		var base string
		switch kind {
		case entity.KindSummary:
			base = `DELETE FROM summary_headers WHERE ancestor = ? AND id IN (?)`
		case entity.KindTeam:
			base = `DELETE FROM summary_teams WHERE ancestor = ? AND summary_id = ? AND id IN (?)`
		case entity.KindEntry:
			base = `DELETE FROM summary_entries WHERE ancestor = ? AND summary_id = ? AND id IN (?)`
		default:
			return total, fmt.Errorf("unknown record kind %q", kind)
		}
		var (
			q    string
			args []any
			err  error
		)
		if kind == entity.KindSummary {
			q, args, err = sqlx.In(base, anc, ids)
		} else {
			q, args, err = sqlx.In(base, anc, id, ids)
		}
		if err != nil {
			return total, err
		}
		res, err := r.db.ExecContext(ctx, r.db.Rebind(q), args...)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (r *SummaryRepo) UpdateHeader(ctx context.Context, h entity.HeaderRecord) error {
	const q = `UPDATE summary_headers SET game_type = :game_type, date_ms = :date_ms, game_length = :game_length
		WHERE ancestor = :ancestor AND id = :id`
	_, err := sqlx.NamedExecContext(ctx, r.db, q, h)
	return err
}

func (r *SummaryRepo) UpdateTeams(ctx context.Context, teams []entity.TeamRecord) error {
	const q = `UPDATE summary_teams SET name = :name, color0 = :color0, color1 = :color1, members = :members
		WHERE ancestor = :ancestor AND summary_id = :summary_id AND id = :id`
	for _, t := range teams {
		if _, err := sqlx.NamedExecContext(ctx, r.db, q, t); err != nil {
			return err
		}
	}
	return nil
}

func (r *SummaryRepo) UpdateEntries(ctx context.Context, entries []entity.EntryRecord) error {
	const q = `UPDATE summary_entries SET place = :place, uuid = :uuid, name = :name,
		time_survived = :time_survived, killed_by = :killed_by
		WHERE ancestor = :ancestor AND summary_id = :summary_id AND id = :id`
	for _, e := range entries {
		if _, err := sqlx.NamedExecContext(ctx, r.db, q, e); err != nil {
			return err
		}
	}
	return nil
}

// HeaderExists reports whether a header is stored at the key.
func (r *SummaryRepo) HeaderExists(ctx context.Context, anc entity.Ancestor, id string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.db, &n, r.db.Rebind(
		`SELECT COUNT(*) FROM summary_headers WHERE ancestor = ? AND id = ?`), anc, id)
	return n > 0, err
}

// Page lists up to limit headers across all ancestors, newest first,
// starting strictly after the given position.
func (r *SummaryRepo) Page(ctx context.Context, after *Position, limit int) ([]entity.HeaderRecord, error) {
	q := `SELECT ancestor, id, game_type, date_ms, game_length FROM summary_headers`
	var args []any
	if after != nil {
		q += ` WHERE date_ms < ? OR (date_ms = ? AND (ancestor > ? OR (ancestor = ? AND id > ?)))`
		args = append(args, after.DateMs, after.DateMs, after.Ancestor, after.Ancestor, after.ID)
	}
	q += ` ORDER BY date_ms DESC, ancestor ASC, id ASC LIMIT ?`
	args = append(args, limit)

	var out []entity.HeaderRecord
	if err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// Published lists up to limit published headers, newest first.
func (r *SummaryRepo) Published(ctx context.Context, limit int) ([]entity.HeaderRecord, error) {
	var out []entity.HeaderRecord
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(
		`SELECT ancestor, id, game_type, date_ms, game_length FROM summary_headers
		 WHERE ancestor <> '' ORDER BY date_ms DESC, ancestor ASC, id ASC LIMIT ?`), limit)
	return out, err
}

// ListHeaders returns every header under an ancestor.
func (r *SummaryRepo) ListHeaders(ctx context.Context, anc entity.Ancestor) ([]entity.HeaderRecord, error) {
	var out []entity.HeaderRecord
	err := sqlx.SelectContext(ctx, r.db, &out, r.db.Rebind(
		`SELECT ancestor, id, game_type, date_ms, game_length FROM summary_headers WHERE ancestor = ?`), anc)
	return out, err
}
