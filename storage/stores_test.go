package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	now := base
	f := New(newStore(t, nil), WithClock(func() time.Time { return now }))
	s := NewStores(f)

	t.Run("置信度", func(t *testing.T) {
		require.NoError(t, s.SetConfidence(ctx, "waves", 3))
		require.NoError(t, s.SetConfidence(ctx, "optics", 9))
		levels, err := s.ConfidenceLevels(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"waves": 3, "optics": 5}, levels)
	})

	t.Run("笔记", func(t *testing.T) {
		require.NoError(t, s.SaveNote(ctx, Note{ID: "n1", Title: "first"}))
		now = base.Add(time.Minute)
		require.NoError(t, s.SaveNote(ctx, Note{Title: "second"}))

		notes, err := s.Notes(ctx)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		assert.Equal(t, "second", notes[0].Title)
		assert.NotEmpty(t, notes[0].ID)

		require.NoError(t, s.DeleteNote(ctx, "n1"))
		notes, err = s.Notes(ctx)
		require.NoError(t, err)
		assert.Len(t, notes, 1)
	})

	t.Run("卡组与思维导图", func(t *testing.T) {
		require.NoError(t, s.SaveDeck(ctx, FlashcardDeck{ID: "d1", Cards: []Flashcard{{ID: "c1", Front: "F=?", Back: "ma"}}}))
		require.NoError(t, s.SaveMindmap(ctx, Mindmap{ID: "m1", Nodes: []MindmapNode{{ID: "root"}}}))

		decks, err := s.Decks(ctx)
		require.NoError(t, err)
		require.Len(t, decks, 1)
		assert.Equal(t, "ma", decks[0].Cards[0].Back)

		require.NoError(t, s.DeleteMindmap(ctx, "m1"))
		maps, err := s.Mindmaps(ctx)
		require.NoError(t, err)
		assert.Empty(t, maps)
	})

	t.Run("分析事件", func(t *testing.T) {
		require.NoError(t, s.AppendEvent(ctx, AnalyticsEvent{Type: "old", At: base.Add(-time.Hour)}))
		require.NoError(t, s.AppendEvent(ctx, AnalyticsEvent{Type: "new", At: base.Add(time.Hour)}))

		events, err := s.Events(ctx, base)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "new", events[0].Type)
	})

	t.Run("设置", func(t *testing.T) {
		require.NoError(t, s.SaveSettings(ctx, Settings{"theme": "dark"}))
		got, err := s.Settings(ctx)
		require.NoError(t, err)
		assert.Equal(t, "dark", got["theme"])
	})

	t.Run("快照", func(t *testing.T) {
		snap, err := s.Snapshot(ctx)
		require.NoError(t, err)
		assert.Len(t, snap.Notes, 1)
		assert.Len(t, snap.Flashcards, 1)
		assert.Len(t, snap.Analytics, 2)
		assert.Equal(t, 5, snap.ConfidenceLevels["optics"])
	})
}
