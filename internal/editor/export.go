package editor

import (
	"encoding/json"
	"regexp"
	"strings"

	"sheets/internal/domain"
)

var nonAlnum = regexp.MustCompile(`(?i)[^a-z0-9]`)

// Export returns the sheet as indented JSON together with a file name
// derived from its title.
func (e *Editor) Export() ([]byte, string, error) {
	s := e.Sheet()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return data, ExportFileName(s.Title), nil
}

// ExportFileName turns a title into a safe file name: "Les Suites" -> "les_suites.json".
func ExportFileName(title string) string {
	if title == "" {
		title = "fiche"
	}
	return strings.ToLower(nonAlnum.ReplaceAllString(title, "_")) + ".json"
}

// LabeledBlock pairs a block with its computed label.
type LabeledBlock struct {
	ID      string           `json:"id"`
	Type    domain.BlockType `json:"type"`
	Title   string           `json:"title"`
	Label   string           `json:"label"`
	Heading string           `json:"heading"` // e.g. "Définition 2" or "Partie A"
}

// Labels computes the display labels of the current blocks.
func (e *Editor) Labels() []LabeledBlock {
	return LabelBlocks(e.Sheet().Blocks)
}

func LabelBlocks(blocks []domain.Block) []LabeledBlock {
	labels := domain.ComputeLabels(blocks)
	out := make([]LabeledBlock, len(blocks))
	for i, b := range blocks {
		out[i] = LabeledBlock{
			ID:      b.ID,
			Type:    b.Type,
			Title:   b.Title,
			Label:   labels[i],
			Heading: b.Type.DisplayName() + " " + labels[i],
		}
	}
	return out
}
