// Package editor holds the state of one open sheet: structural edits with
// bounded undo/redo, in-place content edits, and debounced autosave.
package editor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/rs/zerolog"

	"sheets/internal/domain"
	"sheets/internal/metrics"
	"sheets/internal/service"
)

const (
	DefaultAutoSaveInterval = time.Second
	DefaultHistoryDepth     = 10
)

const (
	EventNotification = "editor:notification"
	EventSaveStatus   = "editor:save-status"
)

type SaveStatus string

const (
	StatusSaved   SaveStatus = "saved"
	StatusSaving  SaveStatus = "saving"
	StatusUnsaved SaveStatus = "unsaved"
)

type NotificationType string

const (
	NotifySuccess NotificationType = "success"
	NotifyError   NotificationType = "error"
)

// Notification is a short message for the user.
type Notification struct {
	Message string           `json:"message"`
	Type    NotificationType `json:"type"`
}

// Saver persists a sheet under id. *storage.SheetStore satisfies it.
type Saver interface {
	Save(ctx context.Context, sheet domain.Sheet, id string) (string, error)
}

// Confirmer asks the user to approve a destructive edit.
type Confirmer interface {
	Confirm(prompt string) bool
}

type ConfirmFunc func(prompt string) bool

func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

type Options struct {
	// AutoSaveInterval is the quiet period after the last change before saving.
	AutoSaveInterval time.Duration
	// SavedDelay keeps the "saving" status visible before flipping to "saved".
	// Zero flips immediately.
	SavedDelay time.Duration
	// HistoryDepth is the number of structural edits that can be undone.
	HistoryDepth int
	// Confirmer gates DeleteBlock. When nil deletions are not confirmed.
	Confirmer Confirmer
	Emitter   service.EventEmitter
	Logger    zerolog.Logger
	Metrics   *metrics.Metrics
	Now       func() time.Time
	IDs       *domain.IDSource
}

func (o Options) withDefaults() Options {
	if o.AutoSaveInterval <= 0 {
		o.AutoSaveInterval = DefaultAutoSaveInterval
	}
	if o.SavedDelay < 0 {
		o.SavedDelay = 0
	}
	if o.HistoryDepth <= 0 {
		o.HistoryDepth = DefaultHistoryDepth
	}
	if o.Emitter == nil {
		o.Emitter = service.NoopEmitter{}
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.IDs == nil {
		o.IDs = domain.DefaultIDs()
	}
	return o
}

// Editor is the single mutator of one open sheet. All methods are safe for
// concurrent use; autosave runs on a timer goroutine.
type Editor struct {
	ctx   context.Context
	saver Saver
	opts  Options
	log   zerolog.Logger

	mu        sync.Mutex
	sheet     domain.Sheet
	history   []domain.Sheet // last element mirrors the latest structural state
	redo      []domain.Sheet
	status    SaveStatus
	lastSaved []byte
	debounced func(func())
	savedTmr  *time.Timer
	closed    bool
}

// New opens initial for editing. A sheet without an id is given one and
// saved straight away so it shows up in the catalog.
func New(ctx context.Context, initial domain.Sheet, saver Saver, opts Options) (*Editor, error) {
	opts = opts.withDefaults()
	e := &Editor{
		ctx:       ctx,
		saver:     saver,
		opts:      opts,
		log:       opts.Logger,
		sheet:     initial.Clone(),
		status:    StatusSaved,
		debounced: debounce.New(opts.AutoSaveInterval),
	}

	if e.sheet.ID == "" {
		e.sheet.ID = domain.NewSheetID()
		if _, err := saver.Save(ctx, e.sheet, e.sheet.ID); err != nil {
			return nil, fmt.Errorf("initial save: %w", err)
		}
	}
	e.history = []domain.Sheet{e.sheet.Clone()}
	e.lastSaved = e.encodeLocked()
	return e, nil
}

// Sheet returns a copy of the current state.
func (e *Editor) Sheet() domain.Sheet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sheet.Clone()
}

func (e *Editor) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sheet.ID
}

func (e *Editor) Status() SaveStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Editor) CanUndo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history) > 1
}

func (e *Editor) CanRedo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.redo) > 0
}

// ── Structural edits ───────────────────────────────────────

// AddBlock appends an empty block and returns its id.
func (e *Editor) AddBlock(t domain.BlockType) (string, error) {
	return e.InsertBlock(t, -1)
}

// InsertBlock inserts an empty block at index; a negative or too large index appends.
func (e *Editor) InsertBlock(t domain.BlockType, index int) (string, error) {
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidBlockType, t)
	}
	b := domain.NewBlock(t, e.opts.IDs)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyLocked(InsertBlock(b, index))
	return b.ID, nil
}

// DeleteBlock removes a block after confirmation. It reports false when the
// user declined.
func (e *Editor) DeleteBlock(id string) (bool, error) {
	e.mu.Lock()
	found := e.sheet.BlockIndex(id) >= 0
	e.mu.Unlock()
	if !found {
		return false, fmt.Errorf("%w: %s", domain.ErrBlockNotFound, id)
	}

	// asked without the lock so a slow prompt doesn't stall autosave
	if e.opts.Confirmer != nil && !e.opts.Confirmer.Confirm("Delete this block?") {
		return false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sheet.BlockIndex(id) < 0 {
		return false, fmt.Errorf("%w: %s", domain.ErrBlockNotFound, id)
	}
	e.applyLocked(RemoveBlock(id))
	return true, nil
}

// MoveBlock swaps a block with its neighbour. It reports false, without
// recording history, when the block is already at that end.
func (e *Editor) MoveBlock(id string, dir Direction) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.sheet.BlockIndex(id)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", domain.ErrBlockNotFound, id)
	}
	if (dir == Up && i == 0) || (dir == Down && i == len(e.sheet.Blocks)-1) {
		return false, nil
	}
	e.applyLocked(MoveBlock(id, dir))
	return true, nil
}

// DuplicateBlock copies a block right after itself and returns the copy's id.
func (e *Editor) DuplicateBlock(id string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.sheet.BlockIndex(id)
	if i < 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrBlockNotFound, id)
	}
	e.applyLocked(DuplicateBlock(id, e.opts.IDs))
	return e.sheet.Blocks[i+1].ID, nil
}

// Apply runs an arbitrary structural mutation.
func (e *Editor) Apply(m Mutation) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.applyLocked(m)
}

func (e *Editor) applyLocked(m Mutation) {
	next := m(e.sheet.Clone())
	next.UpdatedAt = e.opts.Now().UnixMilli()
	e.sheet = next
	e.redo = nil
	e.history = append(e.history, next.Clone())
	if limit := e.opts.HistoryDepth + 1; len(e.history) > limit {
		e.history = append([]domain.Sheet(nil), e.history[len(e.history)-limit:]...)
	}
	e.changedLocked()
}

// Undo restores the state before the last structural edit. At the initial
// snapshot it does nothing and reports false.
func (e *Editor) Undo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.history) <= 1 {
		return false
	}
	last := len(e.history) - 1
	e.redo = append([]domain.Sheet{e.history[last]}, e.redo...)
	e.history = e.history[:last]
	e.sheet = e.history[last-1].Clone()
	e.changedLocked()
	return true
}

func (e *Editor) Redo() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.redo) == 0 {
		return false
	}
	next := e.redo[0]
	e.redo = e.redo[1:]
	e.history = append(e.history, next)
	e.sheet = next.Clone()
	e.changedLocked()
	return true
}

// ── In-place edits (no history) ────────────────────────────

// BlockPatch lists the fields to overwrite. Nil fields are left alone; an
// empty non-nil slice clears zones or images.
type BlockPatch struct {
	Type    *domain.BlockType
	Title   *string
	Content *string
	Zones   []domain.AnswerZone
	Images  []domain.BlockImage
}

func (e *Editor) UpdateBlock(id string, p BlockPatch) error {
	if p.Type != nil && !p.Type.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidBlockType, *p.Type)
	}
	return e.editBlock(id, func(b *domain.Block) {
		if p.Type != nil {
			b.Type = *p.Type
		}
		if p.Title != nil {
			b.Title = *p.Title
		}
		if p.Content != nil {
			b.Content = *p.Content
		}
		if p.Zones != nil {
			b.Zones = append([]domain.AnswerZone{}, p.Zones...)
		}
		if p.Images != nil {
			b.Images = append([]domain.BlockImage{}, p.Images...)
		}
	})
}

// AddZone appends a default answer zone to a block and returns its id.
func (e *Editor) AddZone(blockID string) (string, error) {
	z := domain.NewZone(e.opts.IDs)
	err := e.editBlock(blockID, func(b *domain.Block) {
		b.Zones = append(b.Zones, z)
	})
	return z.ID, err
}

// AddImage attaches an image to a block and returns its id.
func (e *Editor) AddImage(blockID, src string, pos domain.ImagePosition) (string, error) {
	img := domain.NewImage(src, pos, e.opts.IDs)
	err := e.editBlock(blockID, func(b *domain.Block) {
		b.Images = append(b.Images, img)
	})
	return img.ID, err
}

func (e *Editor) editBlock(id string, fn func(*domain.Block)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	i := e.sheet.BlockIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", domain.ErrBlockNotFound, id)
	}
	b := e.sheet.Blocks[i].Clone()
	fn(&b)
	e.sheet.Blocks[i] = b
	e.sheet.UpdatedAt = e.opts.Now().UnixMilli()
	e.changedLocked()
	return nil
}

func (e *Editor) SetTitle(title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sheet.Title = title
	e.sheet.UpdatedAt = e.opts.Now().UnixMilli()
	e.changedLocked()
}

func (e *Editor) SetSubtitle(subtitle string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sheet.Subtitle = subtitle
	e.sheet.UpdatedAt = e.opts.Now().UnixMilli()
	e.changedLocked()
}

// ── Autosave ───────────────────────────────────────────────

// changedLocked marks the sheet dirty when it differs from what was last
// persisted and (re)arms the debounce timer.
func (e *Editor) changedLocked() {
	if e.closed {
		return
	}
	if !bytes.Equal(e.encodeLocked(), e.lastSaved) {
		e.setStatusLocked(StatusUnsaved)
	} else if e.status == StatusUnsaved {
		e.setStatusLocked(StatusSaved)
	}
	e.debounced(e.autosave)
}

func (e *Editor) autosave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	// the error has already been reported to the user
	_ = e.saveLocked(e.ctx)
}

// Flush saves immediately if there are unsaved changes.
func (e *Editor) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saveLocked(ctx)
}

// Close flushes pending changes and stops autosaving.
func (e *Editor) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.saveLocked(ctx)
	e.closed = true
	if e.savedTmr != nil {
		e.savedTmr.Stop()
	}
	if err == nil && e.status == StatusSaving {
		e.setStatusLocked(StatusSaved)
	}
	return err
}

func (e *Editor) saveLocked(ctx context.Context) error {
	data := e.encodeLocked()
	if bytes.Equal(data, e.lastSaved) {
		return nil
	}

	e.setStatusLocked(StatusSaving)
	_, err := e.saver.Save(ctx, e.sheet, e.sheet.ID)
	e.opts.Metrics.RecordAutosave(err)
	if err != nil {
		e.log.Error().Err(err).Str("sheet", e.sheet.ID).Msg("save failed")
		e.setStatusLocked(StatusUnsaved)
		e.notifyLocked(fmt.Sprintf("Save failed: %v", err), NotifyError)
		return err
	}

	e.lastSaved = data
	e.notifyLocked("Saved", NotifySuccess)
	if e.opts.SavedDelay == 0 {
		e.setStatusLocked(StatusSaved)
		return nil
	}
	if e.savedTmr != nil {
		e.savedTmr.Stop()
	}
	e.savedTmr = time.AfterFunc(e.opts.SavedDelay, e.markSaved)
	return nil
}

// markSaved ends the "saving" display unless the sheet changed meanwhile.
func (e *Editor) markSaved() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status == StatusSaving {
		e.setStatusLocked(StatusSaved)
	}
}

func (e *Editor) encodeLocked() []byte {
	data, err := json.Marshal(e.sheet)
	if err != nil {
		e.log.Warn().Err(err).Msg("encode sheet")
		return nil
	}
	return data
}

func (e *Editor) setStatusLocked(s SaveStatus) {
	if e.status == s {
		return
	}
	e.status = s
	e.opts.Emitter.Emit(e.ctx, EventSaveStatus, s)
}

func (e *Editor) notifyLocked(msg string, t NotificationType) {
	e.opts.Emitter.Emit(e.ctx, EventNotification, Notification{Message: msg, Type: t})
}
