package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/gaseumlabs/uhcdb/internal/season"
	seasonentity "github.com/gaseumlabs/uhcdb/internal/season/entity"
	"github.com/gaseumlabs/uhcdb/internal/summary/entity"
	summaryrepo "github.com/gaseumlabs/uhcdb/internal/summary/repo"
	"github.com/gaseumlabs/uhcdb/pkg/database"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

const (
	alice = "42c2b8a9-e43e-40a9-8dac-a284adf6c998"
	bob   = "0f1e2d3c-4b5a-4978-8695-a4b3c2d1e0f9"
	carol = "11111111-2222-4333-8444-555555555555"
)

type recordingNotifier struct {
	calls []string
}

func (n *recordingNotifier) SummaryPublished(_ context.Context, season int, s entity.ClientSummary) error {
	n.calls = append(n.calls, fmt.Sprintf("%d/%s", season, s.ID))
	return nil
}

type fixture struct {
	svc      *Service
	seasons  *season.Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db, err := database.ConnectX(database.MemoryConfig())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	seasons := season.NewService(db)
	if err := seasons.EnsureTable(ctx); err != nil {
		t.Fatalf("ensure seasons: %v", err)
	}
	notifier := &recordingNotifier{}
	svc := NewService(db, seasons, notifier, utilities.NewIDGenerator(1), zaptest.NewLogger(t).Sugar())
	if err := svc.EnsureTable(ctx); err != nil {
		t.Fatalf("ensure summaries: %v", err)
	}
	return fixture{svc: svc, seasons: seasons, notifier: notifier}
}

func sampleInput(date time.Time) entity.InputSummary {
	killer := alice
	return entity.InputSummary{
		Header: entity.Header{GameType: "UHC", Date: date, GameLength: 41694},
		Teams: []entity.Team{
			{Name: "Red", Color0: 0xff0000, Color1: 0xaa0000, Members: entity.Members{alice}},
			{Name: "Blue", Color0: 0x0000ff, Color1: 0x0000aa, Members: entity.Members{bob, carol}},
		},
		Players: []entity.Entry{
			{Place: 1, UUID: alice, Name: "alice", TimeSurvived: 41694},
			{Place: 2, UUID: bob, Name: "bob", TimeSurvived: 41615, KilledBy: &killer},
			{Place: 3, UUID: carol, Name: "carol", TimeSurvived: 41459, KilledBy: &killer},
		},
	}
}

// content strips ids so aggregates stored under different keys compare equal.
func content(c entity.ClientSummary) string {
	out := fmt.Sprintf("%s|%d|%d", c.GameType, c.Date.UnixMilli(), c.GameLength)
	teams := map[string]string{}
	for _, t := range c.Teams {
		teams[t.Name] = fmt.Sprintf("%d,%d,%v", t.Color0, t.Color1, []string(t.Members))
	}
	out += fmt.Sprint(teams)
	for _, e := range c.Players {
		killer := ""
		if e.KilledBy != nil {
			killer = *e.KilledBy
		}
		out += fmt.Sprintf("|%d,%s,%s,%d,%s", e.Place, e.UUID, e.Name, e.TimeSurvived, killer)
	}
	return out
}

func TestUploadThenGetReturnsSubmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := sampleInput(time.Date(2022, 6, 11, 21, 43, 29, 168000000, time.UTC))

	id, err := f.svc.UploadSummary(ctx, in)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	got, err := f.svc.GetSummary(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != id || got.Season != nil {
		t.Fatalf("unexpected key %q season %v", got.ID, got.Season)
	}
	if !got.Date.Equal(in.Date) {
		t.Errorf("date = %v, want %v", got.Date, in.Date)
	}
	if len(got.Teams) != 2 || len(got.Players) != 3 {
		t.Fatalf("got %d teams %d players", len(got.Teams), len(got.Players))
	}
	want := content(entity.ClientSummary{Header: in.Header, Teams: []entity.ClientTeam{{Team: in.Teams[0]}, {Team: in.Teams[1]}},
		Players: []entity.ClientEntry{{Entry: in.Players[0]}, {Entry: in.Players[1]}, {Entry: in.Players[2]}}})
	if content(got) != want {
		t.Errorf("content mismatch\n got %s\nwant %s", content(got), want)
	}
	for _, tm := range got.Teams {
		if tm.ID == "" {
			t.Error("team without id")
		}
	}
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteSummary(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetSummaryParts(ctx, entity.Draft, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := f.svc.DeleteSummary(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestEditUnchangedIssuesNoWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	cur, err := f.svc.GetSummary(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		res, err := f.svc.EditSummary(ctx, cur)
		if err != nil {
			t.Fatalf("edit %d: %v", i, err)
		}
		if res.Writes() != 0 {
			t.Fatalf("edit %d wrote %+v", i, res)
		}
	}
}

func TestEditTeamMembersTouchesOnlyThatTeam(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, err := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	before, err := f.svc.GetSummary(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	changed, _ := f.svc.GetSummary(ctx, id)
	var target string
	for i := range changed.Teams {
		if changed.Teams[i].Name == "Blue" {
			changed.Teams[i].Members = entity.Members{bob}
			target = changed.Teams[i].ID
		}
	}
	// reordering members alone is not a change
	for i := range changed.Teams {
		if changed.Teams[i].Name == "Red" {
			changed.Teams[i].Members = entity.Members{alice}
		}
	}

	res, err := f.svc.EditSummary(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if res != (EditResult{Teams: 1}) {
		t.Fatalf("unexpected writes %+v", res)
	}

	after, err := f.svc.GetSummary(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	for i, tm := range after.Teams {
		if tm.ID == target {
			if len(tm.Members) != 1 || tm.Members[0] != bob {
				t.Errorf("team not updated: %v", tm.Members)
			}
			continue
		}
		if !tm.Members.SameSet(before.Teams[i].Members) {
			t.Errorf("sibling team %s changed", tm.Name)
		}
	}
	if content(entity.ClientSummary{Header: after.Header, Players: after.Players}) !=
		content(entity.ClientSummary{Header: before.Header, Players: before.Players}) {
		t.Error("header or entries changed")
	}
}

func TestEditIgnoresUnknownIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	changed, err := f.svc.GetSummary(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	changed.Teams = append(changed.Teams, entity.ClientTeam{ID: "nope", Team: entity.Team{Name: "Ghost"}})
	changed.Players[0].ID = "also-nope"
	changed.Players[0].Name = "renamed"

	res, err := f.svc.EditSummary(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if res.Writes() != 0 {
		t.Fatalf("unknown ids caused writes: %+v", res)
	}
}

func TestEditEntryDiffModes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))

	changed, err := f.svc.GetSummary(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	changed.Players[0].TimeSurvived += 100

	res, err := f.svc.EditSummary(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries != 0 {
		t.Fatalf("default comparison should ignore timeSurvived, wrote %+v", res)
	}

	f.svc.StrictEntryDiff = true
	res, err = f.svc.EditSummary(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if res.Entries != 1 {
		t.Fatalf("strict comparison should detect timeSurvived, wrote %+v", res)
	}
	after, _ := f.svc.GetSummary(ctx, id)
	for _, e := range after.Players {
		if e.ID == changed.Players[0].ID && e.TimeSurvived != changed.Players[0].TimeSurvived {
			t.Errorf("timeSurvived = %d", e.TimeSurvived)
		}
	}
}

func TestEditHeader(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	changed, _ := f.svc.GetSummary(ctx, id)
	changed.GameType = "Teams UHC"

	res, err := f.svc.EditSummary(ctx, changed)
	if err != nil {
		t.Fatal(err)
	}
	if res != (EditResult{Header: true}) {
		t.Fatalf("unexpected writes %+v", res)
	}
	after, _ := f.svc.GetSummary(ctx, id)
	if after.GameType != "Teams UHC" {
		t.Errorf("gameType = %q", after.GameType)
	}
}

func TestEditMissingSummary(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.EditSummary(context.Background(), entity.ClientSummary{ID: "missing"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPublishAndUnpublish(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if err := f.seasons.UpdateSeason(ctx, 1, seasonentity.Season{Logo: "s1.png", Color: 0xffaa00}); err != nil {
		t.Fatal(err)
	}
	id, err := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	draft, err := f.svc.GetSummary(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.PublishSummary(ctx, id, PublishTarget{Season: 1, Game: 7}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	published, err := f.svc.GetPublishedSummary(ctx, 1, 7)
	if err != nil {
		t.Fatalf("get published: %v", err)
	}
	if content(published) != content(draft) {
		t.Errorf("published content differs\n got %s\nwant %s", content(published), content(draft))
	}
	if published.ID != "7" || published.Season == nil || *published.Season != 1 {
		t.Errorf("published key %q season %v", published.ID, published.Season)
	}
	if published.Teams[0].ID != draft.Teams[0].ID {
		t.Error("team ids not preserved")
	}
	if _, err := f.svc.GetSummaryParts(ctx, entity.Draft, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("draft still present: %v", err)
	}
	if len(f.notifier.calls) != 1 || f.notifier.calls[0] != "1/7" {
		t.Errorf("notifier calls %v", f.notifier.calls)
	}

	newID, err := f.svc.UnpublishSummary(ctx, 1, 7)
	if err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	headers, err := f.svc.GetSeasonSummaries(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(headers) != 0 {
		t.Fatalf("season still lists %d games", len(headers))
	}
	fresh, err := f.svc.GetSummary(ctx, newID)
	if err != nil {
		t.Fatalf("fresh draft: %v", err)
	}
	if content(fresh) != content(draft) {
		t.Errorf("fresh draft content differs")
	}
	if newID == id {
		t.Error("expected a new draft id")
	}
}

func TestPublishMissingSeason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	err := f.svc.PublishSummary(ctx, id, PublishTarget{Season: 9, Game: 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.GetSummary(ctx, id); err != nil {
		t.Fatalf("draft should remain: %v", err)
	}
}

func TestPublishOccupiedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.seasons.UpdateSeason(ctx, 2, seasonentity.Season{Logo: "s2.png"})
	first, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	second, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))

	if err := f.svc.PublishSummary(ctx, first, PublishTarget{Season: 2, Game: 1}); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.PublishSummary(ctx, second, PublishTarget{Season: 2, Game: 1}); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := f.svc.GetSummary(ctx, second); err != nil {
		t.Fatalf("rolled back draft missing: %v", err)
	}
}

func TestSeasonSummariesOrderedByGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.seasons.UpdateSeason(ctx, 3, seasonentity.Season{Logo: "s3.png"})
	for _, game := range []int{10, 2, 1} {
		id, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
		if err := f.svc.PublishSummary(ctx, id, PublishTarget{Season: 3, Game: game}); err != nil {
			t.Fatal(err)
		}
	}
	headers, err := f.svc.GetSeasonSummaries(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, h := range headers {
		got = append(got, h.ID)
	}
	if fmt.Sprint(got) != "[1 2 10]" {
		t.Errorf("order = %v", got)
	}
}

func TestCursorPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		in := sampleInput(base.Add(time.Duration(i) * time.Hour))
		in.Teams, in.Players = nil, nil
		if _, err := f.svc.UploadSummary(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	var (
		sizes  []int
		cursor string
		last   = time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
	)
	for {
		page, err := f.svc.GetSummaryCursor(ctx, cursor)
		if err != nil {
			t.Fatal(err)
		}
		sizes = append(sizes, len(page.Summaries))
		for _, h := range page.Summaries {
			if h.Date.After(last) {
				t.Fatalf("not date descending: %v after %v", h.Date, last)
			}
			last = h.Date
		}
		if page.Cursor == nil {
			break
		}
		cursor = *page.Cursor
		if len(sizes) > 5 {
			t.Fatal("pagination did not terminate")
		}
	}
	if fmt.Sprint(sizes) != "[10 10 5]" {
		t.Errorf("page sizes = %v", sizes)
	}
}

func TestCursorMalformed(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.GetSummaryCursor(context.Background(), "!!not-a-cursor"); !errors.Is(err, ErrBadCursor) {
		t.Fatalf("expected ErrBadCursor, got %v", err)
	}
}

func TestStripDate(t *testing.T) {
	got, err := stripDate("2022-06-11T21:43:29.168357585-06:00[America/Denver]")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2022, 6, 12, 3, 43, 29, 168357585, time.UTC)
	if !got.Equal(want) {
		t.Errorf("got %v want %v", got, want)
	}
	if _, err := stripDate("yesterday"); err == nil {
		t.Error("expected error")
	}
}

func TestEmptyKillerIsAbsent(t *testing.T) {
	var body entryBody
	raw := `{"place":2,"uuid":"` + bob + `","name":"bob","timeSurvived":10,"killedBy":""}`
	if err := utilities.DecodeJSON(strings.NewReader(raw), &body); err != nil {
		t.Fatal(err)
	}
	e := body.entry()
	if e.KilledBy != nil {
		t.Fatalf("killedBy = %q, want nil", *e.KilledBy)
	}
	stored := entity.EntryRecord{Place: 2, UUID: bob, Name: "bob", TimeSurvived: 10}
	if !entryEqual(stored, e, true) {
		t.Error("empty killer compared unequal to a stored absent killer")
	}
}

func TestRemovePartsDetectsConcurrentMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	remove := func(p *entity.Parts) error {
		return f.svc.repo.WithTx(ctx, func(tx *summaryrepo.SummaryRepo) error {
			return removeParts(ctx, tx, *p)
		})
	}

	gone, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	stale, err := f.svc.GetSummaryParts(ctx, entity.Draft, gone)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.svc.DeleteSummary(ctx, gone); err != nil {
		t.Fatal(err)
	}
	if err := remove(stale); !errors.Is(err, ErrMoved) {
		t.Fatalf("aggregate already removed: expected ErrMoved, got %v", err)
	}

	partial, _ := f.svc.UploadSummary(ctx, sampleInput(time.Now()))
	read, err := f.svc.GetSummaryParts(ctx, entity.Draft, partial)
	if err != nil {
		t.Fatal(err)
	}
	team := []summaryrepo.Key{{Kind: entity.KindTeam, ID: read.Teams[0].ID}}
	if _, err := f.svc.repo.DeleteKeys(ctx, entity.Draft, partial, team); err != nil {
		t.Fatal(err)
	}
	if err := remove(read); !errors.Is(err, ErrMoved) {
		t.Fatalf("team already removed: expected ErrMoved, got %v", err)
	}
	if _, err := f.svc.GetSummaryParts(ctx, entity.Draft, partial); err != nil {
		t.Fatalf("failed removal was not rolled back: %v", err)
	}
}
