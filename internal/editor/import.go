package editor

import (
	"encoding/json"
	"errors"
	"fmt"

	"sheets/internal/domain"
)

type ImportMode string

const (
	// ImportReplace swaps the current blocks for the imported ones.
	ImportReplace ImportMode = "replace"
	// ImportAppend adds the imported blocks at the end, with new ids.
	ImportAppend ImportMode = "append"
)

var ErrUnknownImportMode = errors.New("unknown import mode")

// ImportBlocks parses sheet JSON for merging into an existing sheet and
// returns the blocks to install. Append mode gives every block, zone and
// image a fresh id. Replace refuses data without a blocks array so an empty
// object cannot wipe the sheet. Parse failures are *domain.ImportError.
func ImportBlocks(text string, mode ImportMode, ids *domain.IDSource) ([]domain.Block, error) {
	if mode != ImportReplace && mode != ImportAppend {
		return nil, fmt.Errorf("%w: %q", ErrUnknownImportMode, mode)
	}

	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &domain.ImportError{Err: err}
	}
	parsed, err := domain.Sanitize(raw, domain.SanitizeOptions{IDs: ids})
	if err != nil {
		return nil, &domain.ImportError{Err: err}
	}
	if mode == ImportReplace {
		if _, ok := raw.(map[string]any)["blocks"].([]any); !ok {
			return nil, &domain.ImportError{Err: domain.ErrNoBlocks}
		}
		return parsed.Blocks, nil
	}

	blocks := make([]domain.Block, len(parsed.Blocks))
	for i, b := range parsed.Blocks {
		blocks[i] = Reidentify(b, ids)
	}
	return blocks, nil
}

// Apply returns the mutation that installs blocks according to mode.
func (m ImportMode) Apply(blocks []domain.Block) Mutation {
	if m == ImportAppend {
		return AppendBlocks(blocks...)
	}
	return ReplaceBlocks(blocks)
}

// Import merges sheet JSON into the open sheet as one structural edit and
// returns the number of blocks imported. Title, subtitle and id are kept.
// On malformed input nothing changes and an error notification is emitted.
func (e *Editor) Import(text string, mode ImportMode) (int, error) {
	blocks, err := ImportBlocks(text, mode, e.opts.IDs)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.log.Warn().Err(err).Msg("import rejected")
		var importErr *domain.ImportError
		if errors.As(err, &importErr) {
			e.notifyLocked("Invalid or corrupt JSON", NotifyError)
		}
		return 0, err
	}

	e.applyLocked(mode.Apply(blocks))
	if mode == ImportAppend {
		e.notifyLocked(fmt.Sprintf("%d blocks added", len(blocks)), NotifySuccess)
	} else {
		e.notifyLocked("Sheet replaced", NotifySuccess)
	}
	return len(blocks), nil
}
