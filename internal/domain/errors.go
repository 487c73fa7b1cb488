package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotObject        = errors.New("sheet data is not a JSON object")
	ErrInvalidBlockType = errors.New("invalid block type")
	ErrBlockNotFound    = errors.New("block not found")
	ErrSheetNotFound    = errors.New("sheet not found")
	ErrNoBlocks         = errors.New("sheet data has no blocks array")
)

// ImportError reports sheet JSON that could not be parsed or was not an object.
// Nothing is written or mutated when it is returned.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("invalid or corrupt sheet JSON: %v", e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }
