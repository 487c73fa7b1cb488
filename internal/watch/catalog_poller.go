package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sheets/internal/domain"
)

const EventCatalogExternal = "catalog:external-change"

const DefaultPollInterval = 2 * time.Second

type IndexReader interface {
	Index(ctx context.Context) []domain.SheetMeta
}

type Emitter interface {
	Emit(ctx context.Context, event string, data any)
}

// CatalogPoller notices index changes written by another process (a second
// CLI, the MCP server) by polling a fingerprint of the index.
type CatalogPoller struct {
	index    IndexReader
	emitter  Emitter
	interval time.Duration

	mu   sync.Mutex
	last string
	stop chan struct{}
	done chan struct{}
}

func NewCatalogPoller(index IndexReader, emitter Emitter, interval time.Duration) *CatalogPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &CatalogPoller{index: index, emitter: emitter, interval: interval}
}

// Start records the current fingerprint and begins polling.
func (p *CatalogPoller) Start(ctx context.Context) {
	p.Check(ctx)
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.pollLoop(ctx)
}

func (p *CatalogPoller) Stop() {
	if p.stop == nil {
		return
	}
	close(p.stop)
	<-p.done
	p.stop = nil
}

func (p *CatalogPoller) pollLoop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Check(ctx)
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Check compares the index with the last fingerprint and emits when it moved.
// The first call only records the fingerprint.
func (p *CatalogPoller) Check(ctx context.Context) bool {
	metas := p.index.Index(ctx)
	fp := fingerprint(metas)

	p.mu.Lock()
	changed := p.last != "" && p.last != fp
	p.last = fp
	p.mu.Unlock()

	if changed {
		p.emitter.Emit(ctx, EventCatalogExternal, map[string]int{"sheets": len(metas)})
	}
	return changed
}

// fingerprint covers the entry count, the newest updatedAt and the ordered ids.
func fingerprint(metas []domain.SheetMeta) string {
	var newest int64
	var sum uint32
	for _, m := range metas {
		if m.UpdatedAt > newest {
			newest = m.UpdatedAt
		}
		for i := 0; i < len(m.ID); i++ {
			sum = sum*31 + uint32(m.ID[i])
		}
	}
	return fmt.Sprintf("%d:%d:%d", len(metas), newest, sum)
}
