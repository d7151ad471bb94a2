package summary

import (
	"strings"
	"time"

	"github.com/gaseumlabs/uhcdb/internal/summary/entity"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

type teamBody struct {
	ID      string   `json:"id"`
	Name    *string  `json:"name" validate:"required"`
	Color0  *int64   `json:"color0" validate:"required"`
	Color1  *int64   `json:"color1" validate:"required"`
	Members []string `json:"members" validate:"required,dive,mcuuid"`
}

type entryBody struct {
	ID           string  `json:"id"`
	Place        *int    `json:"place" validate:"required,min=1"`
	UUID         *string `json:"uuid" validate:"required,mcuuid"`
	Name         *string `json:"name" validate:"required"`
	TimeSurvived *int64  `json:"timeSurvived" validate:"required,min=0"`
	KilledBy     *string `json:"killedBy" validate:"omitempty,mcuuid"`
}

// summaryBody is the upload and edit payload. Ids are only read on edit.
type summaryBody struct {
	ID         string      `json:"id"`
	GameType   *string     `json:"gameType" validate:"required"`
	Date       *string     `json:"date" validate:"required"`
	GameLength *int64      `json:"gameLength" validate:"required,min=0"`
	Teams      []teamBody  `json:"teams" validate:"required,dive"`
	Players    []entryBody `json:"players" validate:"required,dive"`
}

type publishBody struct {
	Season *int `json:"season" validate:"required,min=0"`
	Game   *int `json:"game" validate:"required,min=0"`
}

// stripDate parses timestamps such as
// 2022-06-11T21:43:29.168357585-06:00[America/Denver], dropping the zone name.
func stripDate(s string) (time.Time, error) {
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, &utilities.ValidationError{
			Message: "invalid date format",
			Fields:  []utilities.FieldError{{Field: "date", Rule: "date"}},
		}
	}
	return t, nil
}

func (b summaryBody) header() (entity.Header, error) {
	date, err := stripDate(*b.Date)
	if err != nil {
		return entity.Header{}, err
	}
	return entity.Header{GameType: *b.GameType, Date: date, GameLength: *b.GameLength}, nil
}

func (b teamBody) team() entity.Team {
	return entity.Team{Name: *b.Name, Color0: *b.Color0, Color1: *b.Color1, Members: entity.Members(b.Members)}
}

// entry treats an empty killedBy like an absent one.
func (b entryBody) entry() entity.Entry {
	killer := b.KilledBy
	if killer != nil && *killer == "" {
		killer = nil
	}
	return entity.Entry{
		Place:        *b.Place,
		UUID:         *b.UUID,
		Name:         *b.Name,
		TimeSurvived: *b.TimeSurvived,
		KilledBy:     killer,
	}
}

func (b summaryBody) input() (entity.InputSummary, error) {
	h, err := b.header()
	if err != nil {
		return entity.InputSummary{}, err
	}
	in := entity.InputSummary{Header: h}
	for _, t := range b.Teams {
		in.Teams = append(in.Teams, t.team())
	}
	for _, e := range b.Players {
		in.Players = append(in.Players, e.entry())
	}
	return in, nil
}

func (b summaryBody) client() (entity.ClientSummary, error) {
	h, err := b.header()
	if err != nil {
		return entity.ClientSummary{}, err
	}
	out := entity.ClientSummary{ID: b.ID, Header: h}
	for _, t := range b.Teams {
		out.Teams = append(out.Teams, entity.ClientTeam{ID: t.ID, Team: t.team()})
	}
	for _, e := range b.Players {
		out.Players = append(out.Players, entity.ClientEntry{ID: e.ID, Entry: e.entry()})
	}
	return out, nil
}
