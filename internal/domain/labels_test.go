package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sheets/internal/domain"
)

func blocksOf(types ...domain.BlockType) []domain.Block {
	out := make([]domain.Block, len(types))
	for i, t := range types {
		out[i] = domain.Block{ID: string(rune('a' + i)), Type: t}
	}
	return out
}

func TestComputeLabels(t *testing.T) {
	tests := []struct {
		name  string
		types []domain.BlockType
		want  []string
	}{
		{
			name:  "per type numbering inside a section",
			types: []domain.BlockType{domain.BlockTypeSection, domain.BlockTypeDefinition, domain.BlockTypeApplication, domain.BlockTypeDefinition},
			want:  []string{"A", "1", "1", "2"},
		},
		{
			name:  "sections reset counters",
			types: []domain.BlockType{domain.BlockTypeDefinition, domain.BlockTypeSection, domain.BlockTypeDefinition, domain.BlockTypeSection, domain.BlockTypeExemple, domain.BlockTypeExemple},
			want:  []string{"1", "A", "1", "B", "1", "2"},
		},
		{
			name:  "empty",
			types: nil,
			want:  []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.ComputeLabels(blocksOf(tt.types...)))
		})
	}
}

func TestComputeLabels_PastZ(t *testing.T) {
	types := make([]domain.BlockType, 28)
	for i := range types {
		types[i] = domain.BlockTypeSection
	}
	labels := domain.ComputeLabels(blocksOf(types...))
	assert.Equal(t, "Z", labels[25])
	assert.Equal(t, "AA", labels[26])
	assert.Equal(t, "AB", labels[27])
}

func TestCountContentBlocks(t *testing.T) {
	blocks := blocksOf(domain.BlockTypeSection, domain.BlockTypeDefinition, domain.BlockTypeSection, domain.BlockTypeRemarque)
	assert.Equal(t, 2, domain.CountContentBlocks(blocks))

	meta := domain.NewSheetMeta(domain.Sheet{ID: "s", Title: "T", Blocks: blocks})
	assert.Equal(t, 2, meta.BlockCount)
}
