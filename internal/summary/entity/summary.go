package entity

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Record kinds stored under a summary ancestor.
const (
	KindSummary = "summary"
	KindTeam    = "team"
	KindEntry   = "summaryEntry"
)

// Ancestor is the key prefix a summary aggregate lives under. The zero value
// is the draft namespace; published summaries live under "season/{n}".
type Ancestor string

const Draft Ancestor = ""

// SeasonAncestor returns the ancestor for published summaries of season n.
func SeasonAncestor(n int) Ancestor {
	return Ancestor("season/" + strconv.Itoa(n))
}

// Season parses the season number from a published ancestor.
func (a Ancestor) Season() (int, bool) {
	const prefix = "season/"
	if len(a) <= len(prefix) || string(a[:len(prefix)]) != prefix {
		return 0, false
	}
	n, err := strconv.Atoi(string(a[len(prefix):]))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Members is a team's member list, stored as JSON text.
type Members []string

func (m Members) Value() (driver.Value, error) {
	if m == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *Members) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*m = Members{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return fmt.Errorf("members: unsupported type %T", src)
	}
	var out []string
	if err := json.Unmarshal(b, &out); err != nil {
		return err
	}
	*m = Members(out)
	return nil
}

// SameSet reports whether both lists hold the same members, ignoring order.
func (m Members) SameSet(other Members) bool {
	if len(m) != len(other) {
		return false
	}
	for _, member := range m {
		found := false
		for _, o := range other {
			if o == member {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Header is the scalar part of a played game.
type Header struct {
	GameType   string    `json:"gameType"`
	Date       time.Time `json:"date"`
	GameLength int64     `json:"gameLength"`
}

type Team struct {
	Name    string  `json:"name"`
	Color0  int64   `json:"color0"`
	Color1  int64   `json:"color1"`
	Members Members `json:"members"`
}

type Entry struct {
	Place        int     `json:"place"`
	UUID         string  `json:"uuid"`
	Name         string  `json:"name"`
	TimeSurvived int64   `json:"timeSurvived"`
	KilledBy     *string `json:"killedBy,omitempty"`
}

// InputSummary is a fresh aggregate without any stored ids.
type InputSummary struct {
	Header
	Teams   []Team  `json:"teams"`
	Players []Entry `json:"players"`
}

// HeaderRecord is a stored header row.
type HeaderRecord struct {
	Ancestor   Ancestor `db:"ancestor"`
	ID         string   `db:"id"`
	GameType   string   `db:"game_type"`
	DateMs     int64    `db:"date_ms"`
	GameLength int64    `db:"game_length"`
}

// TeamRecord is a stored team row, child of a header.
type TeamRecord struct {
	Ancestor  Ancestor `db:"ancestor"`
	SummaryID string   `db:"summary_id"`
	ID        string   `db:"id"`
	Name      string   `db:"name"`
	Color0    int64    `db:"color0"`
	Color1    int64    `db:"color1"`
	Members   Members  `db:"members"`
}

// EntryRecord is a stored player entry row, child of a header.
type EntryRecord struct {
	Ancestor     Ancestor `db:"ancestor"`
	SummaryID    string   `db:"summary_id"`
	ID           string   `db:"id"`
	Place        int      `db:"place"`
	UUID         string   `db:"uuid"`
	Name         string   `db:"name"`
	TimeSurvived int64    `db:"time_survived"`
	KilledBy     *string  `db:"killed_by"`
}

// Parts is every stored record under one summary ancestor key.
type Parts struct {
	Header  HeaderRecord
	Teams   []TeamRecord
	Entries []EntryRecord
}

// ClientTeam is a team with its stored id.
type ClientTeam struct {
	ID string `json:"id"`
	Team
}

// ClientEntry is a player entry with its stored id.
type ClientEntry struct {
	ID string `json:"id"`
	Entry
}

// ClientSummary is the externally addressable form of an aggregate.
type ClientSummary struct {
	ID     string `json:"id"`
	Season *int   `json:"season,omitempty"`
	Header
	Teams   []ClientTeam  `json:"teams"`
	Players []ClientEntry `json:"players"`
}

// ClientHeader is a header with its stored id, used in listings.
type ClientHeader struct {
	ID     string `json:"id"`
	Season *int   `json:"season,omitempty"`
	Header
}

// HeaderFromRecord converts a stored header row.
func HeaderFromRecord(r HeaderRecord) ClientHeader {
	h := ClientHeader{
		ID: r.ID,
		Header: Header{
			GameType:   r.GameType,
			Date:       time.UnixMilli(r.DateMs).UTC(),
			GameLength: r.GameLength,
		},
	}
	if n, ok := r.Ancestor.Season(); ok {
		h.Season = &n
	}
	return h
}

// ClientSummaryFromParts attaches each record's stored id to produce the
// client representation. It does not touch the store.
func ClientSummaryFromParts(p Parts) ClientSummary {
	h := HeaderFromRecord(p.Header)
	out := ClientSummary{
		ID:      h.ID,
		Season:  h.Season,
		Header:  h.Header,
		Teams:   make([]ClientTeam, 0, len(p.Teams)),
		Players: make([]ClientEntry, 0, len(p.Entries)),
	}
	for _, t := range p.Teams {
		out.Teams = append(out.Teams, ClientTeam{
			ID:   t.ID,
			Team: Team{Name: t.Name, Color0: t.Color0, Color1: t.Color1, Members: t.Members},
		})
	}
	for _, e := range p.Entries {
		out.Players = append(out.Players, ClientEntry{
			ID: e.ID,
			Entry: Entry{
				Place:        e.Place,
				UUID:         e.UUID,
				Name:         e.Name,
				TimeSurvived: e.TimeSurvived,
				KilledBy:     e.KilledBy,
			},
		})
	}
	return out
}
