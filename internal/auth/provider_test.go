package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

func TestGoogleExchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "at-123",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at-123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"sub": "10769150350006150715113082367", "email": "p@example.com"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := &GoogleProvider{
		oauth: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost/token",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		},
		userinfoURL: srv.URL + "/userinfo",
	}
	id, err := p.Exchange(context.Background(), "code")
	if err != nil {
		t.Fatal(err)
	}
	if id.ID != "10769150350006150715113082367" || id.DisplayName != "p@example.com" {
		t.Errorf("identity %+v", id)
	}
	if u := p.AuthCodeURL("st"); !strings.HasPrefix(u, srv.URL+"/auth?") || !strings.Contains(u, "state=st") {
		t.Errorf("auth url %q", u)
	}
}

func TestNewProviderPicksRedirect(t *testing.T) {
	f := ClientFile{ClientID: "id", ClientSecret: "s", RedirectURIs: []string{"http://localhost:8080/token", "https://uhcdb.example.com/token"}}
	p, err := NewProvider(Config{Provider: ProviderDiscord, Deployed: true}, f)
	if err != nil {
		t.Fatal(err)
	}
	u := p.AuthCodeURL("x")
	if !strings.HasPrefix(u, "https://discord.com/api/oauth2/authorize?") ||
		!strings.Contains(u, "redirect_uri=https%3A%2F%2Fuhcdb.example.com%2Ftoken") {
		t.Errorf("auth url %q", u)
	}
	if _, err := NewProvider(Config{Provider: "myspace"}, f); err == nil {
		t.Error("expected unknown provider error")
	}
}
