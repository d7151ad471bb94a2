package link

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/gaseumlabs/uhcdb/internal/link/entity"
	"github.com/gaseumlabs/uhcdb/internal/link/repo"
	"github.com/gaseumlabs/uhcdb/internal/user"
	userentity "github.com/gaseumlabs/uhcdb/internal/user/entity"
	"github.com/gaseumlabs/uhcdb/pkg/database"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

const (
	CodeLength = 16
	// ExpireAfter is how long a verify code stays claimable.
	ExpireAfter = 600 * time.Second
)

// Result is the outcome of consuming a verify code.
type Result string

const (
	Success Result = "success"
	Expired Result = "expired"
	Invalid Result = "invalid"
)

// Service issues and consumes verify codes.
type Service struct {
	db     *sqlx.DB
	repo   *repo.CodeRepo
	host   string
	logger *zap.SugaredLogger

	// Now is the clock used for expirations.
	Now func() time.Time
}

func NewService(db *sqlx.DB, host string, logger *zap.SugaredLogger) *Service {
	return &Service{
		db:     db,
		repo:   repo.NewCodeRepo(db),
		host:   strings.TrimRight(host, "/"),
		logger: logger,
		Now:    time.Now,
	}
}

func (s *Service) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// CreateVerifyLink issues a code for the Minecraft account and returns the
// claim link. An outstanding code for the account is replaced.
func (s *Service) CreateVerifyLink(ctx context.Context, minecraftUUID, username string) (string, error) {
	code, err := utilities.RandomString(CodeLength, utilities.Letters)
	if err != nil {
		return "", err
	}
	c := entity.VerifyCode{
		MinecraftUUID:     minecraftUUID,
		Code:              code,
		MinecraftUsername: username,
		Expiration:        s.Now().Add(ExpireAfter).Unix(),
	}
	if err := s.repo.Save(ctx, c); err != nil {
		return "", fmt.Errorf("save verify code: %w", err)
	}
	return s.host + "/link/" + code, nil
}

// VerifyLink consumes a code on behalf of u. Expired codes are deleted. A
// code consumed by a concurrent claim is reported as Invalid.
func (s *Service) VerifyLink(ctx context.Context, code string, u *userentity.User) (Result, error) {
	var (
		result Result
		linked *entity.VerifyCode
	)
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		result, linked = Invalid, nil
		r := repo.NewCodeRepo(tx)
		c, err := r.GetByCode(ctx, code)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return err
		}
		if err := consume(ctx, r, code); err != nil {
			return err
		}
		if c.Expired(s.Now().Unix()) {
			result = Expired
			return nil
		}
		if err := user.LinkMinecraft(ctx, tx, u.ID, c.MinecraftUUID, c.MinecraftUsername); err != nil {
			return err
		}
		result, linked = Success, c
		return nil
	})
	if errors.Is(err, errConsumed) {
		s.logger.Debugw("verify code claimed concurrently", "user", u.ID)
		return Invalid, nil
	}
	if err != nil {
		return Invalid, fmt.Errorf("verify link: %w", err)
	}
	if linked != nil {
		u.MinecraftUUID = &linked.MinecraftUUID
		u.MinecraftUsername = &linked.MinecraftUsername
	}
	s.logger.Debugw("verify code consumed", "user", u.ID, "result", result)
	return result, nil
}

var errConsumed = errors.New("verify code already consumed")

// consume deletes the code, failing when another transaction deleted it
// first.
func consume(ctx context.Context, r *repo.CodeRepo, code string) error {
	n, err := r.Delete(ctx, code)
	if err != nil {
		return err
	}
	if n == 0 {
		return errConsumed
	}
	return nil
}
