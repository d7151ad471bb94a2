package summary

import (
	"encoding/base64"
	"encoding/json"

	"github.com/gaseumlabs/uhcdb/internal/summary/entity"
	summaryrepo "github.com/gaseumlabs/uhcdb/internal/summary/repo"
)

type cursorPayload struct {
	D int64  `json:"d"`
	N string `json:"n"`
	I string `json:"i"`
}

func encodeCursor(h entity.HeaderRecord) string {
	b, _ := json.Marshal(cursorPayload{D: h.DateMs, N: string(h.Ancestor), I: h.ID})
	return base64.RawURLEncoding.EncodeToString(b)
}

func decodeCursor(s string) (*summaryrepo.Position, error) {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrBadCursor
	}
	var p cursorPayload
	if err := json.Unmarshal(b, &p); err != nil || p.I == "" {
		return nil, ErrBadCursor
	}
	return &summaryrepo.Position{DateMs: p.D, Ancestor: entity.Ancestor(p.N), ID: p.I}, nil
}
