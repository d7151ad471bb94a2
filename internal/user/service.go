package user

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/gaseumlabs/uhcdb/internal/user/entity"
	userrepo "github.com/gaseumlabs/uhcdb/internal/user/repo"
	"github.com/gaseumlabs/uhcdb/pkg/database"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

// BotTokenLength is the number of characters in a minted bot token.
const BotTokenLength = 32

var ErrNotFound = errors.New("user not found")

// UserService owns user accounts, bot tokens and Minecraft links.
type UserService struct {
	db   *sqlx.DB
	repo *userrepo.UserRepo
}

func NewUserService(db *sqlx.DB) *UserService {
	return &UserService{db: db, repo: userrepo.NewUserRepo(db)}
}

func (s *UserService) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// GetOrCreateUser returns the account for the identity, creating it on first
// login and refreshing a changed display name.
func (s *UserService) GetOrCreateUser(ctx context.Context, id entity.Identity) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id.ID)
	if errors.Is(err, sql.ErrNoRows) {
		u = &entity.User{ID: id.ID, Permissions: entity.PermissionAll, DisplayName: id.DisplayName}
		if err := s.repo.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("create user %s: %w", id.ID, err)
		}
		// a concurrent login may have won the insert
		return s.GetByID(ctx, id.ID)
	}
	if err != nil {
		return nil, err
	}
	if u.DisplayName != id.DisplayName {
		if err := s.repo.UpdateDisplayName(ctx, u.ID, id.DisplayName); err != nil {
			return nil, err
		}
		u.DisplayName = id.DisplayName
	}
	return u, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return u, nil
}

// UpdateUsersBotToken mints a new bot token for the user, replacing any
// previous one.
func (s *UserService) UpdateUsersBotToken(ctx context.Context, u *entity.User) (string, error) {
	token, err := utilities.RandomString(BotTokenLength, utilities.TokenChars)
	if err != nil {
		return "", err
	}
	if err := s.repo.UpdateBotToken(ctx, u.ID, token); err != nil {
		return "", fmt.Errorf("update bot token: %w", err)
	}
	u.BotToken = &token
	return token, nil
}

// FindByBotToken resolves the owner of a bot token.
func (s *UserService) FindByBotToken(ctx context.Context, token string) (*entity.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	u, err := s.repo.GetByBotToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if u.BotToken == nil || !ConstantTimeCompare(*u.BotToken, token) {
		return nil, ErrNotFound
	}
	return u, nil
}

// Unlink removes the Minecraft account from the user holding it and returns
// that user's display name.
func (s *UserService) Unlink(ctx context.Context, minecraftUUID string) (string, error) {
	var name string
	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		r := userrepo.NewUserRepo(tx)
		u, err := r.GetByMinecraftUUID(ctx, minecraftUUID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		name = u.DisplayName
		_, err = r.ClearMinecraft(ctx, minecraftUUID)
		return err
	})
	return name, err
}

// DiscordIDFor returns the id of the user linked to the uuid, or nil.
func (s *UserService) DiscordIDFor(ctx context.Context, minecraftUUID string) (*string, error) {
	u, err := s.repo.GetByMinecraftUUID(ctx, minecraftUUID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u.ID, nil
}

// DiscordIDsFor maps every uuid to the id of its linked user, or nil.
func (s *UserService) DiscordIDsFor(ctx context.Context, uuids []string) (map[string]*string, error) {
	out := make(map[string]*string, len(uuids))
	for _, id := range uuids {
		out[id] = nil
	}
	users, err := s.repo.ListByMinecraftUUIDs(ctx, uuids)
	if err != nil {
		return nil, err
	}
	for i := range users {
		u := users[i]
		if u.MinecraftUUID != nil {
			out[*u.MinecraftUUID] = &u.ID
		}
	}
	return out, nil
}

// LinkMinecraft binds a Minecraft account to the user inside tx, taking it
// away from any other user first.
func LinkMinecraft(ctx context.Context, tx *sqlx.Tx, userID, minecraftUUID, username string) error {
	r := userrepo.NewUserRepo(tx)
	if _, err := r.ClearMinecraft(ctx, minecraftUUID); err != nil {
		return err
	}
	return r.SetMinecraft(ctx, userID, minecraftUUID, username)
}

// ConstantTimeCompare reports whether both strings are equal without leaking
// the position of the first difference.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
