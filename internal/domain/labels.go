package domain

import "strconv"

// ComputeLabels returns the display label of each block, in order.
// Sections are lettered A, B, C... and restart numbering; every other block
// is numbered within its section, separately per type.
//
//	[section, definition, application, definition] -> A, 1, 1, 2
func ComputeLabels(blocks []Block) []string {
	labels := make([]string, len(blocks))
	sections := 0
	counters := map[BlockType]int{}
	for i, b := range blocks {
		if b.Type == BlockTypeSection {
			sections++
			counters = map[BlockType]int{}
			labels[i] = sectionLetter(sections)
			continue
		}
		counters[b.Type]++
		labels[i] = strconv.Itoa(counters[b.Type])
	}
	return labels
}

// sectionLetter maps 1 -> A, 26 -> Z, 27 -> AA.
func sectionLetter(n int) string {
	var out []byte
	for n > 0 {
		n--
		out = append([]byte{byte('A' + n%26)}, out...)
		n /= 26
	}
	return string(out)
}
