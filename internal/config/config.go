package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gaseumlabs/uhcdb/internal/notify"
)

// File is keys/config.json.
type File struct {
	Host    string          `json:"host"`
	Webhook *notify.Webhook `json:"webhook,omitempty"`
}

// App is the process configuration loaded once at startup.
type App struct {
	Port            string
	Host            string
	KeysDir         string
	StaticDir       string
	Webhook         *notify.Webhook
	CORSOrigins     []string
	StrictEntryDiff bool
	Deployed        bool
}

// Load reads keys/config.json and the environment.
func Load() (App, error) {
	a := App{
		Port:            os.Getenv("PORT"),
		KeysDir:         os.Getenv("KEYS_DIR"),
		StaticDir:       os.Getenv("STATIC_DIR"),
		StrictEntryDiff: truthy(os.Getenv("SUMMARY_STRICT_ENTRY_DIFF")),
		Deployed:        os.Getenv("GOOGLE_CLOUD_PROJECT") != "",
	}
	if a.Port == "" {
		a.Port = "8080"
	}
	if a.KeysDir == "" {
		a.KeysDir = "keys"
	}
	if a.StaticDir == "" {
		a.StaticDir = "static"
	}
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			a.CORSOrigins = append(a.CORSOrigins, o)
		}
	}

	f, err := ReadFile(filepath.Join(a.KeysDir, "config.json"))
	if err != nil {
		return a, err
	}
	a.Host = f.Host
	if a.Host == "" {
		a.Host = "http://localhost:" + a.Port
	}
	if f.Webhook != nil && f.Webhook.ID != "" && f.Webhook.Token != "" {
		a.Webhook = f.Webhook
	}
	return a, nil
}

// ReadFile parses a config.json. A missing file yields the zero File.
func ReadFile(path string) (File, error) {
	var f File
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("parse %s: %w", path, err)
	}
	return f, nil
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
