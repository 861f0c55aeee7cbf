package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimelinePositionForSequence(t *testing.T) {
	prev := -1.0
	for seq := 0; seq <= 250; seq++ {
		pos := TimelinePositionForSequence(seq)
		assert.GreaterOrEqual(t, pos, prev, "seq %d", seq)
		assert.Less(t, pos, 1.0, "seq %d", seq)
		prev = pos
	}
	assert.Equal(t, 0.0, TimelinePositionForSequence(-3))
	assert.Equal(t, 0.42, TimelinePositionForSequence(42))
	assert.Equal(t, MaxTimelinePosition, TimelinePositionForSequence(100))
}

func TestApplyXP(t *testing.T) {
	tests := []struct {
		name      string
		start     UserProgress
		amount    int
		wantXP    int
		wantLevel int
		leveledUp bool
	}{
		{name: "below threshold", start: UserProgress{XP: 100, Level: 1}, amount: 10, wantXP: 110, wantLevel: 1},
		{name: "exact threshold", start: UserProgress{XP: 395, Level: 1}, amount: 5, wantXP: 400, wantLevel: 2, leveledUp: true},
		{name: "one level per award", start: UserProgress{XP: 0, Level: 1}, amount: 5000, wantXP: 5000, wantLevel: 2, leveledUp: true},
		{name: "zero level treated as one", start: UserProgress{}, amount: 10, wantXP: 10, wantLevel: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, award := tt.start.ApplyXP(tt.amount)
			assert.Equal(t, tt.wantXP, next.XP)
			assert.Equal(t, tt.wantLevel, next.Level)
			assert.Equal(t, tt.leveledUp, award.LeveledUp)
		})
	}
}

func TestDecodeSuggestionPayload(t *testing.T) {
	t.Run("element attributes follow type", func(t *testing.T) {
		p, err := DecodeSuggestionPayload(SuggestionTypeElement,
			json.RawMessage(`{"name":" Guild ","element_type":"organization","attributes":{"type":"secret","traits":["x"]}}`))
		require.NoError(t, err)
		el := p.(ElementSuggestion)
		assert.Equal(t, "Guild", el.Name)
		assert.Equal(t, "secret", el.Attributes.Type)
		assert.Nil(t, el.Attributes.Traits)
	})

	t.Run("connection weight out of range", func(t *testing.T) {
		_, err := DecodeSuggestionPayload(SuggestionTypeConnection,
			json.RawMessage(`{"from":"a","to":"b","type":"knows","weight":11}`))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := DecodeSuggestionPayload("plot", json.RawMessage(`{}`))
		assert.ErrorIs(t, err, ErrUnknownSuggestion)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := DecodeSuggestionPayload(SuggestionTypeMoment, json.RawMessage(`{"title":`))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}
