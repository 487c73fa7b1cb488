package domain

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

const defaultImageWidth = 60.0

// SanitizeOptions controls how untrusted sheet data is repaired.
type SanitizeOptions struct {
	// ForceID, when set, replaces whatever id the data carries.
	ForceID string
	Now     func() time.Time
	IDs     *IDSource
}

func (o SanitizeOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// SanitizeJSON parses data and repairs it into a valid Sheet.
func SanitizeJSON(data []byte, opts SanitizeOptions) (Sheet, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Sheet{}, err
	}
	return Sanitize(raw, opts)
}

// Sanitize turns a decoded JSON value into a valid Sheet. It only fails when
// raw is not an object; every other defect is repaired:
//   - missing ids are generated
//   - unknown block types become "remarque"
//   - legacy "body" and "answerZones" fields are read as content and zones
//   - non-object block entries are dropped
//
// UpdatedAt is always stamped with the current time.
func Sanitize(raw any, opts SanitizeOptions) (Sheet, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		return Sheet{}, ErrNotObject
	}

	s := Sheet{
		ID:       stringField(obj, "id"),
		Title:    stringField(obj, "title"),
		Subtitle: stringField(obj, "subtitle"),
		Blocks:   []Block{},
	}
	if items, ok := obj["blocks"].([]any); ok {
		for _, item := range items {
			bm, ok := item.(map[string]any)
			if !ok {
				continue
			}
			s.Blocks = append(s.Blocks, decodeBlock(bm))
		}
	}
	return SanitizeSheet(s, opts), nil
}

// SanitizeSheet applies the repair rules to an already typed sheet. The input
// is not modified.
func SanitizeSheet(s Sheet, opts SanitizeOptions) Sheet {
	out := s.Clone()
	if opts.ForceID != "" {
		out.ID = opts.ForceID
	}
	if out.ID == "" {
		out.ID = NewSheetID()
	}
	if out.Title == "" {
		out.Title = ImportedSheetTitle
	}
	for i := range out.Blocks {
		normalizeBlock(&out.Blocks[i], opts.IDs)
	}
	out.UpdatedAt = opts.now().UnixMilli()
	return out
}

func decodeBlock(m map[string]any) Block {
	b := Block{
		ID:      stringField(m, "id"),
		Type:    BlockType(stringField(m, "type")),
		Title:   stringField(m, "title"),
		Content: stringField(m, "content"),
	}
	if b.Content == "" {
		b.Content = stringField(m, "body")
	}

	zones, ok := m["zones"].([]any)
	if !ok {
		zones, _ = m["answerZones"].([]any)
	}
	for _, item := range zones {
		zm, ok := item.(map[string]any)
		if !ok {
			continue
		}
		z := AnswerZone{
			ID:              stringField(zm, "id"),
			Height:          numberField(zm, "height"),
			Style:           ZoneStyle(stringField(zm, "style")),
			BackgroundImage: stringField(zm, "backgroundImage"),
		}
		if _, present := zm["backgroundOpacity"]; present {
			v := numberField(zm, "backgroundOpacity")
			z.BackgroundOpacity = &v
		}
		b.Zones = append(b.Zones, z)
	}

	images, _ := m["images"].([]any)
	for _, item := range images {
		im, ok := item.(map[string]any)
		if !ok {
			continue
		}
		b.Images = append(b.Images, BlockImage{
			ID:       stringField(im, "id"),
			Src:      stringField(im, "src"),
			Width:    numberField(im, "width"),
			Align:    ImageAlign(stringField(im, "align")),
			Position: ImagePosition(stringField(im, "position")),
		})
	}
	return b
}

func normalizeBlock(b *Block, ids *IDSource) {
	if b.ID == "" {
		b.ID = ids.Next()
	}
	b.Type = BlockType(strings.ToLower(string(b.Type)))
	if !b.Type.IsValid() {
		b.Type = BlockTypeRemarque
	}
	if b.Zones == nil {
		b.Zones = []AnswerZone{}
	}
	if b.Images == nil {
		b.Images = []BlockImage{}
	}

	for i := range b.Zones {
		z := &b.Zones[i]
		if z.ID == "" {
			z.ID = ids.Next()
		}
		if !finite(z.Height) || z.Height <= 0 {
			z.Height = DefaultZoneHeight
		}
		if !z.Style.IsValid() {
			z.Style = ZoneStyleLines
		}
		if z.BackgroundOpacity != nil {
			v := clamp(*z.BackgroundOpacity, 0, 1)
			z.BackgroundOpacity = &v
		}
	}

	for i := range b.Images {
		img := &b.Images[i]
		if img.ID == "" {
			img.ID = ids.Next()
		}
		if !finite(img.Width) || img.Width <= 0 {
			img.Width = defaultImageWidth
		}
		img.Width = clamp(img.Width, 0, 100)
		switch img.Align {
		case ImageAlignLeft, ImageAlignCenter, ImageAlignRight:
		default:
			img.Align = ImageAlignCenter
		}
		switch img.Position {
		case ImagePositionTop, ImagePositionBottom, ImagePositionFloat:
		default:
			img.Position = ImagePositionTop
		}
	}
}

// stringField reads a scalar as a string. Objects, arrays and null read as "".
func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case nil, map[string]any, []any:
		return ""
	default:
		s, err := cast.ToStringE(v)
		if err != nil {
			return ""
		}
		return s
	}
}

// numberField reads a number, accepting numeric strings. Anything else reads as 0.
func numberField(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case nil, bool, map[string]any, []any:
		return 0
	case string:
		f, err := cast.ToFloat64E(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return f
	default:
		f, err := cast.ToFloat64E(v)
		if err != nil {
			return 0
		}
		return f
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(f, lo, hi float64) float64 {
	if !finite(f) {
		return lo
	}
	return math.Max(lo, math.Min(hi, f))
}
