package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Provider names accepted in OAUTH_PROVIDER.
const (
	ProviderDiscord = "discord"
	ProviderGoogle  = "google"
)

// Config holds identity settings read from the environment.
type Config struct {
	KeysDir    string
	Provider   string
	Deployed   bool
	SessionTTL time.Duration
}

// ConfigFromEnv reads KEYS_DIR, OAUTH_PROVIDER and GOOGLE_CLOUD_PROJECT.
// A set project id means we run deployed and use the second redirect URI.
func ConfigFromEnv() Config {
	c := Config{
		KeysDir:    os.Getenv("KEYS_DIR"),
		Provider:   strings.ToLower(os.Getenv("OAUTH_PROVIDER")),
		Deployed:   os.Getenv("GOOGLE_CLOUD_PROJECT") != "",
		SessionTTL: 7 * 24 * time.Hour,
	}
	if c.KeysDir == "" {
		c.KeysDir = "keys"
	}
	if c.Provider == "" {
		c.Provider = ProviderDiscord
	}
	return c
}

// ClientFile is keys/oauth.json.
type ClientFile struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

// RedirectURI picks the local (first) or deployed (second) redirect URI.
func (f ClientFile) RedirectURI(deployed bool) (string, error) {
	i := 0
	if deployed {
		i = 1
	}
	if len(f.RedirectURIs) <= i {
		return "", fmt.Errorf("oauth.json: no redirect uri at index %d", i)
	}
	return f.RedirectURIs[i], nil
}

func LoadClientFile(dir string) (ClientFile, error) {
	var f ClientFile
	b, err := os.ReadFile(filepath.Join(dir, "oauth.json"))
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse oauth.json: %w", err)
	}
	if f.ClientID == "" || f.ClientSecret == "" {
		return f, fmt.Errorf("oauth.json: client_id and client_secret are required")
	}
	return f, nil
}
