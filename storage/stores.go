package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConfidenceStore interface {
	ConfidenceLevels(ctx context.Context) (map[string]int, error)
	SetConfidence(ctx context.Context, topicID string, level int) error
}

type NoteStore interface {
	Notes(ctx context.Context) ([]Note, error)
	SaveNote(ctx context.Context, note Note) error
	DeleteNote(ctx context.Context, id string) error
}

type FlashcardStore interface {
	Decks(ctx context.Context) ([]FlashcardDeck, error)
	SaveDeck(ctx context.Context, deck FlashcardDeck) error
	DeleteDeck(ctx context.Context, id string) error
}

type MindmapStore interface {
	Mindmaps(ctx context.Context) ([]Mindmap, error)
	SaveMindmap(ctx context.Context, m Mindmap) error
	DeleteMindmap(ctx context.Context, id string) error
}

type AnalyticsStore interface {
	AppendEvent(ctx context.Context, ev AnalyticsEvent) error
	Events(ctx context.Context, since time.Time) ([]AnalyticsEvent, error)
}

type SettingsStore interface {
	Settings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

var (
	_ ConfidenceStore = (*Stores)(nil)
	_ NoteStore       = (*Stores)(nil)
	_ FlashcardStore  = (*Stores)(nil)
	_ MindmapStore    = (*Stores)(nil)
	_ AnalyticsStore  = (*Stores)(nil)
	_ SettingsStore   = (*Stores)(nil)
)

// Stores implements every capability over one facade. Values passed in are
// copied into the store; the caller keeps ownership of its own copy.
type Stores struct {
	f *Facade
}

func NewStores(f *Facade) *Stores {
	return &Stores{f: f}
}

func (s *Stores) Facade() *Facade {
	return s.f
}

func (s *Stores) ConfidenceLevels(ctx context.Context) (map[string]int, error) {
	levels := map[string]int{}
	if r := s.f.Load(ctx, KeyConfidence, &levels); !r.Success {
		return nil, wrapResult("load confidence", r.Result)
	}
	return levels, nil
}

// SetConfidence records a level for topicID; levels are clamped to 0..5.
func (s *Stores) SetConfidence(ctx context.Context, topicID string, level int) error {
	levels, err := s.ConfidenceLevels(ctx)
	if err != nil {
		return err
	}
	levels[topicID] = max(0, min(level, 5))
	return s.save(ctx, KeyConfidence, levels)
}

func (s *Stores) Notes(ctx context.Context) ([]Note, error) {
	notes, err := loadPrefix[Note](ctx, s.f, PrefixNote)
	if err != nil {
		return nil, err
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].UpdatedAt.After(notes[j].UpdatedAt) })
	return notes, nil
}

func (s *Stores) SaveNote(ctx context.Context, note Note) error {
	now := s.f.now()
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
	return s.save(ctx, PrefixNote+note.ID, note)
}

func (s *Stores) DeleteNote(ctx context.Context, id string) error {
	return wrapResult("delete note", s.f.Remove(ctx, PrefixNote+id))
}

func (s *Stores) Decks(ctx context.Context) ([]FlashcardDeck, error) {
	return loadPrefix[FlashcardDeck](ctx, s.f, PrefixFlashcardDeck)
}

func (s *Stores) SaveDeck(ctx context.Context, deck FlashcardDeck) error {
	if deck.ID == "" {
		deck.ID = uuid.NewString()
	}
	deck.UpdatedAt = s.f.now()
	return s.save(ctx, PrefixFlashcardDeck+deck.ID, deck)
}

func (s *Stores) DeleteDeck(ctx context.Context, id string) error {
	return wrapResult("delete deck", s.f.Remove(ctx, PrefixFlashcardDeck+id))
}

func (s *Stores) Mindmaps(ctx context.Context) ([]Mindmap, error) {
	return loadPrefix[Mindmap](ctx, s.f, PrefixMindmap)
}

func (s *Stores) SaveMindmap(ctx context.Context, m Mindmap) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.UpdatedAt = s.f.now()
	return s.save(ctx, PrefixMindmap+m.ID, m)
}

func (s *Stores) DeleteMindmap(ctx context.Context, id string) error {
	return wrapResult("delete mindmap", s.f.Remove(ctx, PrefixMindmap+id))
}

// AppendEvent stores ev under its own key so that old events can be pruned
// one by one when storage runs out.
func (s *Stores) AppendEvent(ctx context.Context, ev AnalyticsEvent) error {
	ev = s.f.stampEvent(ev)
	return s.save(ctx, eventKey(ev), ev)
}

func (f *Facade) stampEvent(ev AnalyticsEvent) AnalyticsEvent {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = f.now()
	}
	return ev
}

// eventKey puts the event time right after the prefix, so keys sort by time
// and pruning can judge an event by when it happened.
func eventKey(ev AnalyticsEvent) string {
	return fmt.Sprintf("%s%013d-%s", PrefixAnalytics, ev.At.UnixMilli(), ev.ID)
}

// keyTime reads the millisecond timestamp that follows prefix in key.
func keyTime(key, prefix string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok || len(rest) < 13 || (len(rest) > 13 && rest[13] != '-') {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(rest[:13], 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}

// Events returns events at or after since, oldest first.
func (s *Stores) Events(ctx context.Context, since time.Time) ([]AnalyticsEvent, error) {
	all, err := loadPrefix[AnalyticsEvent](ctx, s.f, PrefixAnalytics)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, ev := range all {
		if !ev.At.Before(since) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Stores) Settings(ctx context.Context) (Settings, error) {
	settings := Settings{}
	if r := s.f.Load(ctx, KeySettings, &settings); !r.Success {
		return nil, wrapResult("load settings", r.Result)
	}
	return settings, nil
}

func (s *Stores) SaveSettings(ctx context.Context, settings Settings) error {
	return s.save(ctx, KeySettings, settings)
}

func (s *Stores) save(ctx context.Context, key string, v any) error {
	r := s.f.Save(ctx, key, v)
	if r.Success {
		return nil
	}
	if r.QuotaExceeded {
		r.Error = r.Message
	}
	return wrapResult("save "+strings.TrimSuffix(key, ":"), r.Result)
}

// loadPrefix decodes every record under prefix in key order. Records that
// fail to decode are skipped and logged.
func loadPrefix[T any](ctx context.Context, f *Facade, prefix string) ([]T, error) {
	raws, r := f.LoadPrefix(ctx, prefix)
	if !r.Success {
		return nil, wrapResult("load "+prefix, r)
	}

	keys := make([]string, 0, len(raws))
	for k := range raws {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]T, 0, len(raws))
	for _, k := range keys {
		var v T
		if err := json.Unmarshal(raws[k], &v); err != nil {
			f.logger.Warn().Err(err).Str("key", k).Msg("skip undecodable record")
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Snapshot is the full user state read in one pass.
type Snapshot struct {
	ConfidenceLevels map[string]int   `json:"confidenceLevels"`
	Notes            []Note           `json:"notes"`
	Flashcards       []FlashcardDeck  `json:"flashcards"`
	Mindmaps         []Mindmap        `json:"mindmaps"`
	Analytics        []AnalyticsEvent `json:"analytics"`
}

func (s *Stores) Snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.ConfidenceLevels, err = s.ConfidenceLevels(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Notes, err = s.Notes(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Flashcards, err = s.Decks(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Mindmaps, err = s.Mindmaps(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Analytics, err = s.Events(ctx, time.Time{}); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
