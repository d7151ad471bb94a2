package utilities

import (
	"errors"
	"strings"
	"testing"
)

func TestIDGeneratorUnique(t *testing.T) {
	g := NewIDGenerator(3)
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		id := g.Next()
		if seen[id] {
			t.Fatalf("duplicate id %s after %d ids", id, i)
		}
		seen[id] = true
	}
}

func TestIDGeneratorFallsBackToKSUID(t *testing.T) {
	// node ids above 1023 are rejected by snowflake
	g := NewIDGenerator(5000)
	if id := g.Next(); len(id) != 27 {
		t.Errorf("expected ksuid fallback, got %q", id)
	}
}

func TestRandomString(t *testing.T) {
	s, err := RandomString(32, TokenChars)
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 32 {
		t.Fatalf("len = %d", len(s))
	}
	for _, c := range s {
		if !strings.ContainsRune(TokenChars, c) {
			t.Errorf("unexpected char %q", c)
		}
	}
}

type sample struct {
	Name  *string  `json:"name" validate:"required"`
	UUIDs []string `json:"uuids" validate:"required,dive,mcuuid"`
}

func TestDecodeJSONValidation(t *testing.T) {
	var s sample
	err := DecodeJSON(strings.NewReader(`{"uuids":["nope"]}`), &s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := map[string]string{}
	for _, f := range verr.Fields {
		fields[f.Field] = f.Rule
	}
	if fields["name"] != "required" {
		t.Errorf("missing name error: %+v", verr.Fields)
	}
	if fields["uuids[0]"] != "mcuuid" {
		t.Errorf("missing uuid error: %+v", verr.Fields)
	}
}

func TestDecodeJSONTypeError(t *testing.T) {
	var s sample
	err := DecodeJSON(strings.NewReader(`{"name": 4}`), &s)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Fields[0].Field != "name" || verr.Fields[0].Rule != "type" {
		t.Errorf("unexpected fields %+v", verr.Fields)
	}
}

func TestNormalizeUUID(t *testing.T) {
	got, err := NormalizeUUID("42C2B8A9-E43E-40A9-8DAC-A284ADF6C998")
	if err != nil {
		t.Fatal(err)
	}
	if got != "42c2b8a9-e43e-40a9-8dac-a284adf6c998" {
		t.Errorf("got %s", got)
	}
	if _, err := NormalizeUUID("xyz"); err == nil {
		t.Error("expected error")
	}
}
