package editor

import "sheets/internal/domain"

// Mutation is a pure structural edit: it receives a private copy of the
// sheet and returns the next state.
type Mutation func(domain.Sheet) domain.Sheet

type Direction int

const (
	Up Direction = iota
	Down
)

func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "up":
		return Up, true
	case "down":
		return Down, true
	}
	return 0, false
}

// InsertBlock places b at index. Out of range indexes append.
func InsertBlock(b domain.Block, index int) Mutation {
	return func(s domain.Sheet) domain.Sheet {
		at := index
		if at < 0 || at > len(s.Blocks) {
			at = len(s.Blocks)
		}
		blocks := make([]domain.Block, 0, len(s.Blocks)+1)
		blocks = append(blocks, s.Blocks[:at]...)
		blocks = append(blocks, b)
		s.Blocks = append(blocks, s.Blocks[at:]...)
		return s
	}
}

func AppendBlocks(bs ...domain.Block) Mutation {
	return func(s domain.Sheet) domain.Sheet {
		blocks := make([]domain.Block, 0, len(s.Blocks)+len(bs))
		s.Blocks = append(append(blocks, s.Blocks...), bs...)
		return s
	}
}

func ReplaceBlocks(bs []domain.Block) Mutation {
	return func(s domain.Sheet) domain.Sheet {
		s.Blocks = append([]domain.Block{}, bs...)
		return s
	}
}

func RemoveBlock(id string) Mutation {
	return func(s domain.Sheet) domain.Sheet {
		kept := make([]domain.Block, 0, len(s.Blocks))
		for _, b := range s.Blocks {
			if b.ID != id {
				kept = append(kept, b)
			}
		}
		s.Blocks = kept
		return s
	}
}

// MoveBlock swaps the block with its neighbour. At either end it does nothing.
func MoveBlock(id string, dir Direction) Mutation {
	return func(s domain.Sheet) domain.Sheet {
		i := s.BlockIndex(id)
		j := i - 1
		if dir == Down {
			j = i + 1
		}
		if i < 0 || j < 0 || j >= len(s.Blocks) {
			return s
		}
		blocks := append([]domain.Block{}, s.Blocks...)
		blocks[i], blocks[j] = blocks[j], blocks[i]
		s.Blocks = blocks
		return s
	}
}

// DuplicateBlock inserts a copy right after the source block. The copy and
// each of its zones and images get fresh ids.
func DuplicateBlock(id string, ids *domain.IDSource) Mutation {
	return func(s domain.Sheet) domain.Sheet {
		i := s.BlockIndex(id)
		if i < 0 {
			return s
		}
		return InsertBlock(Reidentify(s.Blocks[i], ids), i+1)(s)
	}
}

// Reidentify returns a deep copy of b with new ids for it and everything nested.
func Reidentify(b domain.Block, ids *domain.IDSource) domain.Block {
	out := b.Clone()
	out.ID = ids.Next()
	for i := range out.Zones {
		out.Zones[i].ID = ids.Next()
	}
	for i := range out.Images {
		out.Images[i].ID = ids.Next()
	}
	return out
}
