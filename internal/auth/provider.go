package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/gaseumlabs/uhcdb/internal/user/entity"
)

// IdentityProvider runs the authorization code flow against an external
// account service.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (entity.Identity, error)
}

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/api/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

const googleUserinfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// NewProvider builds the configured provider from keys/oauth.json.
func NewProvider(cfg Config, f ClientFile) (IdentityProvider, error) {
	redirect, err := f.RedirectURI(cfg.Deployed)
	if err != nil {
		return nil, err
	}
	oc := &oauth2.Config{
		ClientID:     f.ClientID,
		ClientSecret: f.ClientSecret,
		RedirectURL:  redirect,
	}
	switch cfg.Provider {
	case ProviderDiscord:
		oc.Endpoint = discordEndpoint
		oc.Scopes = []string{"identify"}
		return &DiscordProvider{oauth: oc}, nil
	case ProviderGoogle:
		oc.Endpoint = endpoints.Google
		oc.Scopes = []string{"openid", "profile", "email"}
		return &GoogleProvider{oauth: oc, userinfoURL: googleUserinfoURL}, nil
	default:
		return nil, fmt.Errorf("unknown oauth provider %q", cfg.Provider)
	}
}

// DiscordProvider signs users in with their Discord account.
type DiscordProvider struct {
	oauth *oauth2.Config
}

func (p *DiscordProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "none"))
}

func (p *DiscordProvider) Exchange(ctx context.Context, code string) (entity.Identity, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("discord token exchange: %w", err)
	}
	s, err := discordgo.New("Bearer " + tok.AccessToken)
	if err != nil {
		return entity.Identity{}, err
	}
	u, err := s.User("@me")
	if err != nil {
		return entity.Identity{}, fmt.Errorf("discord identity: %w", err)
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	return entity.Identity{ID: u.ID, DisplayName: name}, nil
}

// GoogleProvider signs users in with their Google account.
type GoogleProvider struct {
	oauth       *oauth2.Config
	userinfoURL string
}

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

type googleUserinfo struct {
	Sub   string `json:"sub"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (entity.Identity, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("google token exchange: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userinfoURL, nil)
	if err != nil {
		return entity.Identity{}, err
	}
	resp, err := p.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return entity.Identity{}, fmt.Errorf("google userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return entity.Identity{}, fmt.Errorf("google userinfo: status %d", resp.StatusCode)
	}
	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return entity.Identity{}, err
	}
	if info.Sub == "" {
		return entity.Identity{}, fmt.Errorf("google userinfo: missing subject")
	}
	name := info.Name
	if name == "" {
		name = info.Email
	}
	return entity.Identity{ID: info.Sub, DisplayName: name}, nil
}
