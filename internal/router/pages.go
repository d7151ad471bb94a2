package router

import (
	"net/http"

	"github.com/gaseumlabs/uhcdb/internal/render"
	"github.com/gaseumlabs/uhcdb/internal/summary"
	"github.com/gaseumlabs/uhcdb/internal/user"
	userentity "github.com/gaseumlabs/uhcdb/internal/user/entity"
)

// Pages serves the server-rendered pages.
type Pages struct {
	renderer  *render.Renderer
	summaries *summary.Service
}

func NewPages(renderer *render.Renderer, summaries *summary.Service) *Pages {
	return &Pages{renderer: renderer, summaries: summaries}
}

func (p *Pages) Home(w http.ResponseWriter, r *http.Request) error {
	props := render.HomeProps{}
	if u := user.FromContext(r.Context()); u != nil {
		props.SignedIn = true
		props.DisplayName = u.DisplayName
		props.IsAdmin = u.Permissions >= userentity.PermissionAdmin
		if u.Linked() {
			props.MinecraftUsername = u.MinecraftUsername
		}
	}
	return p.renderer.Render(w, http.StatusOK, render.Home, render.Page{Title: "UHC DB", Data: props, Script: "/static/home.js"})
}

// Games lists the most recent published games.
func (p *Pages) Games(w http.ResponseWriter, r *http.Request) error {
	headers, err := p.summaries.GetRecentPublished(r.Context())
	if err != nil {
		return err
	}
	data := summary.Page{Summaries: headers}
	return p.renderer.Render(w, http.StatusOK, render.Games, render.Page{Title: "Games", Data: data, Script: "/static/games.js"})
}

func (p *Pages) Admin(w http.ResponseWriter, r *http.Request) error {
	u := user.FromContext(r.Context())
	props := render.AdminProps{IsAdmin: u != nil && u.Permissions >= userentity.PermissionAdmin}
	return p.renderer.Render(w, http.StatusOK, render.Admin, render.Page{Title: "Admin", Data: props, Script: "/static/admin.js"})
}

func (p *Pages) Expired(w http.ResponseWriter, r *http.Request) error {
	return p.renderer.Render(w, http.StatusOK, render.Expired, render.Page{Title: "Token Expired", Data: struct{}{}, Script: "/static/expired.js"})
}
