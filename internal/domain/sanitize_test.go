package domain_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheets/internal/domain"
)

func fixedNow(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestSanitize_RejectsNonObject(t *testing.T) {
	for _, raw := range []any{nil, "text", 12.0, []any{}} {
		_, err := domain.Sanitize(raw, domain.SanitizeOptions{})
		assert.ErrorIs(t, err, domain.ErrNotObject)
	}
}

func TestSanitizeJSON_ParseError(t *testing.T) {
	_, err := domain.SanitizeJSON([]byte(`{"title":`), domain.SanitizeOptions{})
	require.Error(t, err)
}

func TestSanitize_EmptyObject(t *testing.T) {
	s, err := domain.Sanitize(map[string]any{}, domain.SanitizeOptions{Now: fixedNow(1000)})
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.ImportedSheetTitle, s.Title)
	assert.Equal(t, "", s.Subtitle)
	assert.NotNil(t, s.Blocks)
	assert.Empty(t, s.Blocks)
	assert.Equal(t, int64(1000), s.UpdatedAt)
}

func TestSanitize_ForceIDWins(t *testing.T) {
	s, err := domain.Sanitize(map[string]any{"id": "theirs"}, domain.SanitizeOptions{ForceID: "mine"})
	require.NoError(t, err)
	assert.Equal(t, "mine", s.ID)

	s, err = domain.Sanitize(map[string]any{"id": "theirs"}, domain.SanitizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "theirs", s.ID)
}

func TestSanitize_RepairsBlocks(t *testing.T) {
	data := []byte(`{
		"title": "Suites",
		"blocks": [
			{"type": "DEFINITION", "title": "Suite", "body": "legacy body",
			 "answerZones": [{"height": -3, "style": "weird"}, {"height": "25", "style": "grid", "backgroundOpacity": 4}]},
			{"type": "unknown", "content": "x", "images": [{"src": "a.png", "width": 250, "align": "top"}]},
			"not a block",
			{"id": 42}
		]
	}`)
	s, err := domain.SanitizeJSON(data, domain.SanitizeOptions{})
	require.NoError(t, err)
	require.Len(t, s.Blocks, 3)

	def := s.Blocks[0]
	assert.NotEmpty(t, def.ID)
	assert.Equal(t, domain.BlockTypeDefinition, def.Type)
	assert.Equal(t, "legacy body", def.Content)
	require.Len(t, def.Zones, 2)
	assert.Equal(t, domain.DefaultZoneHeight, def.Zones[0].Height)
	assert.Equal(t, domain.ZoneStyleLines, def.Zones[0].Style)
	assert.Equal(t, 25.0, def.Zones[1].Height)
	assert.Equal(t, domain.ZoneStyleGrid, def.Zones[1].Style)
	require.NotNil(t, def.Zones[1].BackgroundOpacity)
	assert.Equal(t, 1.0, *def.Zones[1].BackgroundOpacity)
	assert.NotEqual(t, def.Zones[0].ID, def.Zones[1].ID)

	rem := s.Blocks[1]
	assert.Equal(t, domain.BlockTypeRemarque, rem.Type)
	require.Len(t, rem.Images, 1)
	assert.Equal(t, 100.0, rem.Images[0].Width)
	assert.Equal(t, domain.ImageAlignCenter, rem.Images[0].Align)
	assert.Equal(t, domain.ImagePositionTop, rem.Images[0].Position)

	numeric := s.Blocks[2]
	assert.Equal(t, "42", numeric.ID)
	assert.Equal(t, domain.BlockTypeRemarque, numeric.Type)
	assert.NotNil(t, numeric.Zones)
	assert.NotNil(t, numeric.Images)
}

func TestSanitize_ContentPreferredOverBody(t *testing.T) {
	s, err := domain.SanitizeJSON([]byte(`{"blocks":[{"type":"exemple","content":"new","body":"old"}]}`), domain.SanitizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, "new", s.Blocks[0].Content)
}

func TestSanitize_BlocksNotArray(t *testing.T) {
	s, err := domain.SanitizeJSON([]byte(`{"blocks":{"a":1}}`), domain.SanitizeOptions{})
	require.NoError(t, err)
	assert.Empty(t, s.Blocks)
}

func TestSanitize_Idempotent(t *testing.T) {
	data := []byte(`{"title":"T","blocks":[{"type":"Theoreme","zones":[{"height":0}],"images":[{"src":"x"}]},{"type":"section"}]}`)
	first, err := domain.SanitizeJSON(data, domain.SanitizeOptions{Now: fixedNow(1)})
	require.NoError(t, err)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)
	second, err := domain.SanitizeJSON(encoded, domain.SanitizeOptions{Now: fixedNow(2)})
	require.NoError(t, err)

	second.UpdatedAt = first.UpdatedAt
	assert.Equal(t, first, second)
}

func TestSanitizeSheet_DoesNotMutateInput(t *testing.T) {
	in := domain.Sheet{Blocks: []domain.Block{{Type: "bogus"}}}
	out := domain.SanitizeSheet(in, domain.SanitizeOptions{})

	assert.Equal(t, domain.BlockType("bogus"), in.Blocks[0].Type)
	assert.Empty(t, in.Blocks[0].ID)
	assert.Equal(t, domain.BlockTypeRemarque, out.Blocks[0].Type)
	assert.NotEmpty(t, out.Blocks[0].ID)
}

func TestSanitize_EveryBlockComplete(t *testing.T) {
	s, err := domain.SanitizeJSON([]byte(`{"blocks":[{},{"type":null},{"type":"SECTION","title":7}]}`), domain.SanitizeOptions{})
	require.NoError(t, err)
	for _, b := range s.Blocks {
		assert.NotEmpty(t, b.ID)
		assert.True(t, b.Type.IsValid())
		assert.NotNil(t, b.Zones)
		assert.NotNil(t, b.Images)
	}
	assert.Equal(t, domain.BlockTypeSection, s.Blocks[2].Type)
	assert.Equal(t, "7", s.Blocks[2].Title)
}
