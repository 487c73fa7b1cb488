package domain

import "strings"

type BlockType string

const (
	BlockTypeSection     BlockType = "section"
	BlockTypeActivite    BlockType = "activite"
	BlockTypeDefinition  BlockType = "definition"
	BlockTypeTheoreme    BlockType = "theoreme"
	BlockTypePropriete   BlockType = "propriete"
	BlockTypeApplication BlockType = "application"
	BlockTypeExemple     BlockType = "exemple"
	BlockTypeRemarque    BlockType = "remarque"
)

var blockTypeNames = map[BlockType]string{
	BlockTypeSection:     "Partie",
	BlockTypeActivite:    "Activité",
	BlockTypeDefinition:  "Définition",
	BlockTypeTheoreme:    "Théorème",
	BlockTypePropriete:   "Propriété",
	BlockTypeApplication: "Application",
	BlockTypeExemple:     "Exemple",
	BlockTypeRemarque:    "Remarque",
}

// AllBlockTypes returns the closed set of block types in display order.
func AllBlockTypes() []BlockType {
	return []BlockType{
		BlockTypeSection,
		BlockTypeActivite,
		BlockTypeDefinition,
		BlockTypeTheoreme,
		BlockTypePropriete,
		BlockTypeApplication,
		BlockTypeExemple,
		BlockTypeRemarque,
	}
}

func (t BlockType) IsValid() bool {
	_, ok := blockTypeNames[t]
	return ok
}

// DisplayName is the heading shown before the block label, e.g. "Définition".
func (t BlockType) DisplayName() string {
	return blockTypeNames[t]
}

// ParseBlockType matches case-insensitively against the known types.
func ParseBlockType(s string) (BlockType, error) {
	t := BlockType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidBlockType
	}
	return t, nil
}

type ZoneStyle string

const (
	ZoneStyleLines ZoneStyle = "lines"
	ZoneStyleGrid  ZoneStyle = "grid"
	ZoneStyleDots  ZoneStyle = "dots"
	ZoneStyleBlank ZoneStyle = "blank"
)

func (s ZoneStyle) IsValid() bool {
	switch s {
	case ZoneStyleLines, ZoneStyleGrid, ZoneStyleDots, ZoneStyleBlank:
		return true
	}
	return false
}

type ImageAlign string

const (
	ImageAlignLeft   ImageAlign = "left"
	ImageAlignCenter ImageAlign = "center"
	ImageAlignRight  ImageAlign = "right"
)

type ImagePosition string

const (
	ImagePositionTop    ImagePosition = "top"
	ImagePositionBottom ImagePosition = "bottom"
	ImagePositionFloat  ImagePosition = "float"
)

const DefaultZoneHeight = 40.0

// AnswerZone is a blank area reserved for handwritten answers. Height is in millimetres.
type AnswerZone struct {
	ID                string    `json:"id"`
	Height            float64   `json:"height"`
	Style             ZoneStyle `json:"style"`
	BackgroundImage   string    `json:"backgroundImage,omitempty"`
	BackgroundOpacity *float64  `json:"backgroundOpacity,omitempty"`
}

// BlockImage is an illustration attached to a block. Width is a percentage of the block.
type BlockImage struct {
	ID       string        `json:"id"`
	Src      string        `json:"src"`
	Width    float64       `json:"width"`
	Align    ImageAlign    `json:"align"`
	Position ImagePosition `json:"position"`
}

type Block struct {
	ID      string       `json:"id"`
	Type    BlockType    `json:"type"`
	Title   string       `json:"title"`
	Content string       `json:"content"` // lightweight markup, rendered by the UI
	Zones   []AnswerZone `json:"zones"`
	Images  []BlockImage `json:"images"`
}

// NewBlock returns an empty block of type t.
func NewBlock(t BlockType, ids *IDSource) Block {
	return Block{
		ID:     ids.Next(),
		Type:   t,
		Zones:  []AnswerZone{},
		Images: []BlockImage{},
	}
}

func NewZone(ids *IDSource) AnswerZone {
	return AnswerZone{ID: ids.Next(), Height: DefaultZoneHeight, Style: ZoneStyleLines}
}

// NewImage places an image the way the editor does: floated images take 30%
// of the block on the right, others 60% centred.
func NewImage(src string, pos ImagePosition, ids *IDSource) BlockImage {
	img := BlockImage{ID: ids.Next(), Src: src, Width: 60, Align: ImageAlignCenter, Position: pos}
	if pos == ImagePositionFloat {
		img.Width = 30
		img.Align = ImageAlignRight
	}
	return img
}

func (b Block) Clone() Block {
	out := b
	out.Zones = make([]AnswerZone, len(b.Zones))
	for i, z := range b.Zones {
		out.Zones[i] = z
		if z.BackgroundOpacity != nil {
			v := *z.BackgroundOpacity
			out.Zones[i].BackgroundOpacity = &v
		}
	}
	out.Images = append([]BlockImage{}, b.Images...)
	return out
}
