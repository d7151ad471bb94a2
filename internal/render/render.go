package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/*.html
var files embed.FS

// Page names.
const (
	Home    = "home"
	Games   = "games"
	Admin   = "admin"
	Expired = "expired"
	Error   = "error"
)

// Page is what a template receives. Data is also embedded in the page as
// window.__uhc__ for the client script.
type Page struct {
	Title  string
	Data   any
	Script string
}

// HomeProps are the initial props of the home page.
type HomeProps struct {
	SignedIn          bool    `json:"signedIn"`
	DisplayName       string  `json:"displayName,omitempty"`
	IsAdmin           bool    `json:"isAdmin"`
	MinecraftUsername *string `json:"minecraftUsername,omitempty"`
}

// AdminProps are the initial props of the admin page.
type AdminProps struct {
	IsAdmin bool `json:"isAdmin"`
}

// ErrorProps carry a message shown to the user.
type ErrorProps struct {
	Message string `json:"message"`
}

// Renderer renders the embedded page templates.
type Renderer struct {
	pages map[string]*template.Template
}

func New() (*Renderer, error) {
	layout, err := template.ParseFS(files, "templates/layout.html")
	if err != nil {
		return nil, err
	}
	r := &Renderer{pages: map[string]*template.Template{}}
	for _, name := range []string{Home, Games, Admin, Expired, Error} {
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(files, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

// Render writes the named page with the given status.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, p Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// RenderError renders the error page.
func (r *Renderer) RenderError(w http.ResponseWriter, status int, title, message string) error {
	return r.Render(w, status, Error, Page{Title: title, Data: ErrorProps{Message: message}})
}
