package season

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/gaseumlabs/uhcdb/internal/season/entity"
	"github.com/gaseumlabs/uhcdb/internal/season/repo"
)

var ErrNotFound = errors.New("season not found")

// Service manages season records.
type Service struct {
	repo *repo.Repo
}

func NewService(db *sqlx.DB) *Service {
	return &Service{repo: repo.NewRepo(db)}
}

func (s *Service) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// UpdateSeason creates the season or replaces its fields.
func (s *Service) UpdateSeason(ctx context.Context, number int, in entity.Season) error {
	in.Number = number
	return s.repo.Upsert(ctx, in)
}

func (s *Service) GetSeason(ctx context.Context, number int) (*entity.Season, error) {
	st, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return st, nil
}

// Exists reports whether the season has been created.
func (s *Service) Exists(ctx context.Context, number int) (bool, error) {
	return s.repo.Exists(ctx, number)
}
