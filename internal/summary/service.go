package summary

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gaseumlabs/uhcdb/internal/summary/entity"
	summaryrepo "github.com/gaseumlabs/uhcdb/internal/summary/repo"
	"github.com/gaseumlabs/uhcdb/pkg/utilities"
)

// PageSize is the number of headers returned per listing page.
const PageSize = 10

var (
	ErrNotFound  = errors.New("summary not found")
	ErrConflict  = errors.New("published slot already occupied")
	ErrBadCursor = errors.New("malformed cursor")
	// ErrMoved is returned when another transaction moved or removed the
	// aggregate between reading and deleting it.
	ErrMoved = errors.New("summary was moved concurrently")
)

// SeasonChecker reports whether a season has been created.
type SeasonChecker interface {
	Exists(ctx context.Context, number int) (bool, error)
}

// Notifier is told about every successful publish.
type Notifier interface {
	SummaryPublished(ctx context.Context, season int, s entity.ClientSummary) error
}

// EditResult counts the records an edit rewrote.
type EditResult struct {
	Header  bool `json:"header"`
	Teams   int  `json:"teams"`
	Entries int  `json:"entries"`
}

// Writes is the total number of records rewritten.
func (r EditResult) Writes() int {
	n := r.Teams + r.Entries
	if r.Header {
		n++
	}
	return n
}

// PublishTarget names the season slot a draft is published into.
type PublishTarget struct {
	Season int
	Game   int
}

// Page is one page of the date-descending header listing.
type Page struct {
	Summaries []entity.ClientHeader `json:"summaries"`
	Cursor    *string               `json:"cursor,omitempty"`
}

// Service owns the summary aggregate: upload, edit, delete, publish and
// the listings.
type Service struct {
	repo     *summaryrepo.SummaryRepo
	seasons  SeasonChecker
	notifier Notifier
	ids      *utilities.IDGenerator
	logger   *zap.SugaredLogger

	// StrictEntryDiff makes edits compare every entry field. Off, the
	// survival time and uuid of an entry never count as a change.
	StrictEntryDiff bool
}

func NewService(db *sqlx.DB, seasons SeasonChecker, notifier Notifier, ids *utilities.IDGenerator, logger *zap.SugaredLogger) *Service {
	return &Service{
		repo:     summaryrepo.NewSummaryRepo(db),
		seasons:  seasons,
		notifier: notifier,
		ids:      ids,
		logger:   logger,
	}
}

// EnsureTable creates the summary tables.
func (s *Service) EnsureTable(ctx context.Context) error {
	return s.repo.EnsureTable(ctx)
}

// UploadSummary stores a new draft aggregate and returns its id.
func (s *Service) UploadSummary(ctx context.Context, in entity.InputSummary) (string, error) {
	id := s.ids.Next()
	parts := s.newParts(entity.Draft, id, in)
	err := s.repo.WithTx(ctx, func(tx *summaryrepo.SummaryRepo) error {
		return saveParts(ctx, tx, parts)
	})
	if err != nil {
		return "", fmt.Errorf("upload summary: %w", err)
	}
	s.logger.Infow("summary uploaded", "id", id, "teams", len(parts.Teams), "entries", len(parts.Entries))
	return id, nil
}

// GetSummaryParts reads the aggregate stored at ancestor/summary/id.
func (s *Service) GetSummaryParts(ctx context.Context, anc entity.Ancestor, id string) (*entity.Parts, error) {
	return loadParts(ctx, s.repo, anc, id)
}

// GetSummary returns the client form of a draft aggregate.
func (s *Service) GetSummary(ctx context.Context, id string) (entity.ClientSummary, error) {
	p, err := s.GetSummaryParts(ctx, entity.Draft, id)
	if err != nil {
		return entity.ClientSummary{}, err
	}
	return entity.ClientSummaryFromParts(*p), nil
}

// GetPublishedSummary returns the client form of season/{season}/summary/{game}.
func (s *Service) GetPublishedSummary(ctx context.Context, season, game int) (entity.ClientSummary, error) {
	p, err := s.GetSummaryParts(ctx, entity.SeasonAncestor(season), strconv.Itoa(game))
	if err != nil {
		return entity.ClientSummary{}, err
	}
	return entity.ClientSummaryFromParts(*p), nil
}

// DeleteSummary removes a draft aggregate with every child record.
func (s *Service) DeleteSummary(ctx context.Context, id string) error {
	err := s.repo.WithTx(ctx, func(tx *summaryrepo.SummaryRepo) error {
		keys, err := tx.Keys(ctx, entity.Draft, id)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return ErrNotFound
		}
		_, err = tx.DeleteKeys(ctx, entity.Draft, id, keys)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete summary %s: %w", id, err)
	}
	return nil
}

// EditSummary rewrites the records of a draft aggregate that differ from
// the stored ones. Teams and entries with ids the aggregate does not hold
// are ignored.
func (s *Service) EditSummary(ctx context.Context, changed entity.ClientSummary) (EditResult, error) {
	old, err := s.GetSummaryParts(ctx, entity.Draft, changed.ID)
	if err != nil {
		return EditResult{}, err
	}

	var header *entity.HeaderRecord
	if !headerEqual(old.Header, changed.Header) {
		h := old.Header
		h.GameType = changed.GameType
		h.DateMs = changed.Date.UnixMilli()
		h.GameLength = changed.GameLength
		header = &h
	}

	oldTeams := make(map[string]entity.TeamRecord, len(old.Teams))
	for _, t := range old.Teams {
		oldTeams[t.ID] = t
	}
	var teams []entity.TeamRecord
	for _, t := range changed.Teams {
		prev, ok := oldTeams[t.ID]
		if !ok || teamEqual(prev, t.Team) {
			continue
		}
		prev.Name, prev.Color0, prev.Color1, prev.Members = t.Name, t.Color0, t.Color1, t.Members
		teams = append(teams, prev)
	}

	oldEntries := make(map[string]entity.EntryRecord, len(old.Entries))
	for _, e := range old.Entries {
		oldEntries[e.ID] = e
	}
	var entries []entity.EntryRecord
	for _, e := range changed.Players {
		prev, ok := oldEntries[e.ID]
		if !ok || entryEqual(prev, e.Entry, s.StrictEntryDiff) {
			continue
		}
		prev.Place, prev.UUID, prev.Name = e.Place, e.UUID, e.Name
		prev.TimeSurvived, prev.KilledBy = e.TimeSurvived, e.KilledBy
		entries = append(entries, prev)
	}

	g, gctx := errgroup.WithContext(ctx)
	if header != nil {
		g.Go(func() error { return s.repo.UpdateHeader(gctx, *header) })
	}
	if len(teams) > 0 {
		g.Go(func() error { return s.repo.UpdateTeams(gctx, teams) })
	}
	if len(entries) > 0 {
		g.Go(func() error { return s.repo.UpdateEntries(gctx, entries) })
	}
	if err := g.Wait(); err != nil {
		return EditResult{}, fmt.Errorf("edit summary %s: %w", changed.ID, err)
	}

	res := EditResult{Header: header != nil, Teams: len(teams), Entries: len(entries)}
	s.logger.Debugw("summary edited", "id", changed.ID, "writes", res.Writes())
	return res, nil
}

// PublishSummary moves a draft aggregate into season/{season}/summary/{game}.
// Team and entry ids are kept.
func (s *Service) PublishSummary(ctx context.Context, id string, target PublishTarget) error {
	ok, err := s.seasons.Exists(ctx, target.Season)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("season %d: %w", target.Season, ErrNotFound)
	}

	dst := entity.SeasonAncestor(target.Season)
	game := strconv.Itoa(target.Game)
	var published entity.Parts
	err = s.repo.WithTx(ctx, func(tx *summaryrepo.SummaryRepo) error {
		draft, err := loadParts(ctx, tx, entity.Draft, id)
		if err != nil {
			return err
		}
		taken, err := tx.HeaderExists(ctx, dst, game)
		if err != nil {
			return err
		}
		if taken {
			return ErrConflict
		}
		if err := removeParts(ctx, tx, *draft); err != nil {
			return err
		}
		published = relocate(*draft, dst, game)
		return saveParts(ctx, tx, published)
	})
	if err != nil {
		return fmt.Errorf("publish summary %s: %w", id, err)
	}

	s.logger.Infow("summary published", "id", id, "season", target.Season, "game", target.Game)
	if s.notifier != nil {
		if err := s.notifier.SummaryPublished(ctx, target.Season, entity.ClientSummaryFromParts(published)); err != nil {
			s.logger.Warnw("publish notification failed", "season", target.Season, "game", target.Game, "err", err)
		}
	}
	return nil
}

// UnpublishSummary moves a published aggregate back into the drafts under a
// fresh id, which it returns.
func (s *Service) UnpublishSummary(ctx context.Context, season, game int) (string, error) {
	src := entity.SeasonAncestor(season)
	gameID := strconv.Itoa(game)
	id := s.ids.Next()
	err := s.repo.WithTx(ctx, func(tx *summaryrepo.SummaryRepo) error {
		p, err := loadParts(ctx, tx, src, gameID)
		if err != nil {
			return err
		}
		if err := removeParts(ctx, tx, *p); err != nil {
			return err
		}
		return saveParts(ctx, tx, s.newParts(entity.Draft, id, inputFromParts(*p)))
	})
	if err != nil {
		return "", fmt.Errorf("unpublish season %d game %d: %w", season, game, err)
	}
	s.logger.Infow("summary unpublished", "season", season, "game", game, "id", id)
	return id, nil
}

// GetSummaryCursor returns one page of headers from every namespace, newest
// first. An empty cursor starts from the top.
func (s *Service) GetSummaryCursor(ctx context.Context, cursor string) (Page, error) {
	var after *summaryrepo.Position
	if cursor != "" {
		p, err := decodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		after = p
	}
	rows, err := s.repo.Page(ctx, after, PageSize+1)
	if err != nil {
		return Page{}, fmt.Errorf("list summaries: %w", err)
	}

	page := Page{Summaries: make([]entity.ClientHeader, 0, PageSize)}
	more := len(rows) > PageSize
	if more {
		rows = rows[:PageSize]
	}
	for _, r := range rows {
		page.Summaries = append(page.Summaries, entity.HeaderFromRecord(r))
	}
	if more {
		next := encodeCursor(rows[len(rows)-1])
		page.Cursor = &next
	}
	return page, nil
}

// GetRecentPublished returns the PageSize newest published headers across
// every season.
func (s *Service) GetRecentPublished(ctx context.Context) ([]entity.ClientHeader, error) {
	rows, err := s.repo.Published(ctx, PageSize)
	if err != nil {
		return nil, fmt.Errorf("list published: %w", err)
	}
	out := make([]entity.ClientHeader, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.HeaderFromRecord(r))
	}
	return out, nil
}

// GetSeasonSummaries lists the headers published in a season by game number.
func (s *Service) GetSeasonSummaries(ctx context.Context, season int) ([]entity.ClientHeader, error) {
	rows, err := s.repo.ListHeaders(ctx, entity.SeasonAncestor(season))
	if err != nil {
		return nil, fmt.Errorf("list season %d: %w", season, err)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, errA := strconv.Atoi(rows[i].ID)
		b, errB := strconv.Atoi(rows[j].ID)
		if errA != nil || errB != nil {
			return rows[i].ID < rows[j].ID
		}
		return a < b
	})
	out := make([]entity.ClientHeader, 0, len(rows))
	for _, r := range rows {
		out = append(out, entity.HeaderFromRecord(r))
	}
	return out, nil
}

func loadParts(ctx context.Context, r *summaryrepo.SummaryRepo, anc entity.Ancestor, id string) (*entity.Parts, error) {
	p, err := r.LoadParts(ctx, anc, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// removeParts deletes every record under the aggregate's key. Deleting fewer
// rows than were read means a concurrent transaction got there first.
func removeParts(ctx context.Context, r *summaryrepo.SummaryRepo, p entity.Parts) error {
	anc, id := p.Header.Ancestor, p.Header.ID
	keys, err := r.Keys(ctx, anc, id)
	if err != nil {
		return err
	}
	n, err := r.DeleteKeys(ctx, anc, id, keys)
	if err != nil {
		return err
	}
	if n < int64(1+len(p.Teams)+len(p.Entries)) {
		return ErrMoved
	}
	return nil
}

func saveParts(ctx context.Context, r *summaryrepo.SummaryRepo, p entity.Parts) error {
	if err := r.InsertHeader(ctx, p.Header); err != nil {
		return err
	}
	if err := r.InsertTeams(ctx, p.Teams); err != nil {
		return err
	}
	return r.InsertEntries(ctx, p.Entries)
}

func (s *Service) newParts(anc entity.Ancestor, id string, in entity.InputSummary) entity.Parts {
	p := entity.Parts{
		Header: entity.HeaderRecord{
			Ancestor:   anc,
			ID:         id,
			GameType:   in.GameType,
			DateMs:     in.Date.UnixMilli(),
			GameLength: in.GameLength,
		},
		Teams:   make([]entity.TeamRecord, 0, len(in.Teams)),
		Entries: make([]entity.EntryRecord, 0, len(in.Players)),
	}
	for _, t := range in.Teams {
		members := t.Members
		if members == nil {
			members = entity.Members{}
		}
		p.Teams = append(p.Teams, entity.TeamRecord{
			Ancestor: anc, SummaryID: id, ID: s.ids.Next(),
			Name: t.Name, Color0: t.Color0, Color1: t.Color1, Members: members,
		})
	}
	for _, e := range in.Players {
		p.Entries = append(p.Entries, entity.EntryRecord{
			Ancestor: anc, SummaryID: id, ID: s.ids.Next(),
			Place: e.Place, UUID: e.UUID, Name: e.Name,
			TimeSurvived: e.TimeSurvived, KilledBy: e.KilledBy,
		})
	}
	return p
}

// relocate rekeys an aggregate under a new ancestor and header id, keeping
// child ids.
func relocate(p entity.Parts, anc entity.Ancestor, id string) entity.Parts {
	out := entity.Parts{
		Header:  p.Header,
		Teams:   make([]entity.TeamRecord, len(p.Teams)),
		Entries: make([]entity.EntryRecord, len(p.Entries)),
	}
	out.Header.Ancestor, out.Header.ID = anc, id
	for i, t := range p.Teams {
		t.Ancestor, t.SummaryID = anc, id
		out.Teams[i] = t
	}
	for i, e := range p.Entries {
		e.Ancestor, e.SummaryID = anc, id
		out.Entries[i] = e
	}
	return out
}

func inputFromParts(p entity.Parts) entity.InputSummary {
	c := entity.ClientSummaryFromParts(p)
	in := entity.InputSummary{Header: c.Header}
	for _, t := range c.Teams {
		in.Teams = append(in.Teams, t.Team)
	}
	for _, e := range c.Players {
		in.Players = append(in.Players, e.Entry)
	}
	return in
}

func headerEqual(old entity.HeaderRecord, h entity.Header) bool {
	return old.DateMs == h.Date.UnixMilli() &&
		old.GameLength == h.GameLength &&
		old.GameType == h.GameType
}

func teamEqual(old entity.TeamRecord, t entity.Team) bool {
	return old.Color0 == t.Color0 &&
		old.Color1 == t.Color1 &&
		old.Name == t.Name &&
		old.Members.SameSet(t.Members)
}

// entryEqual compares an entry against its stored row. Unless strict, survival
// time and uuid are not compared.
func entryEqual(old entity.EntryRecord, e entity.Entry, strict bool) bool {
	same := sameKiller(old.KilledBy, e.KilledBy) &&
		old.Name == e.Name &&
		old.Place == e.Place
	if !strict {
		return same
	}
	return same && old.TimeSurvived == e.TimeSurvived && old.UUID == e.UUID
}

func sameKiller(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
