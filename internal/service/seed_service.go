package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"sheets/internal/domain"
	"sheets/internal/metrics"
)

// ─────────────────────────────────────────────────────────────
// Seed Service: first-run sheets listed in a manifest
// ─────────────────────────────────────────────────────────────

// Manifest lists sheets to install on first run and editor defaults.
type Manifest struct {
	Resources struct {
		InitialSheets []SeedResource `json:"initialSheets"`
	} `json:"resources"`
	Config struct {
		AutoSaveInterval int `json:"autoSaveInterval"` // milliseconds
	} `json:"config"`
}

type SeedResource struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SeedReport summarises one seeding run.
type SeedReport struct {
	Seeded           []string          `json:"seeded"`
	Skipped          []string          `json:"skipped"`
	Failed           map[string]string `json:"failed,omitempty"` // id -> reason
	AutoSaveInterval time.Duration     `json:"autoSaveInterval,omitempty"`
}

const seedTask = "seed"

// ErrSeedRunning is returned by Run while another seeding run is in progress.
var ErrSeedRunning = errors.New("seeding already running")

// SeedService installs manifest sheets that are not stored yet.
type SeedService struct {
	store   domain.SheetStore
	client  *http.Client
	log     zerolog.Logger
	metrics *metrics.Metrics
	guard   taskGuard
}

func NewSeedService(store domain.SheetStore, log zerolog.Logger, m *metrics.Metrics) *SeedService {
	return &SeedService{
		store:   store,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
		metrics: m,
	}
}

// Run reads the manifest at location (http(s) URL or file path) and seeds each
// resource in order. A resource that is already stored is skipped; one that
// fails is logged and the run moves on. Only an unreadable manifest or a
// cancelled ctx aborts the run.
func (s *SeedService) Run(ctx context.Context, location string) (report SeedReport, err error) {
	if !s.guard.run(seedTask, func() {
		report, err = s.seed(ctx, location)
	}) {
		return SeedReport{}, ErrSeedRunning
	}
	return report, err
}

func (s *SeedService) seed(ctx context.Context, location string) (SeedReport, error) {
	report := SeedReport{Seeded: []string{}, Skipped: []string{}, Failed: map[string]string{}}

	data, err := s.Fetch(ctx, location)
	if err != nil {
		return report, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return report, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Config.AutoSaveInterval > 0 {
		report.AutoSaveInterval = time.Duration(m.Config.AutoSaveInterval) * time.Millisecond
	}

	for _, res := range m.Resources.InitialSheets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if res.ID == "" || res.URL == "" {
			s.log.Warn().Str("sheet", res.ID).Msg("seed resource without id or url, skipped")
			report.Failed[res.ID] = "missing id or url"
			s.metrics.RecordSeed("failed")
			continue
		}
		if _, ok := s.store.Load(ctx, res.ID); ok {
			report.Skipped = append(report.Skipped, res.ID)
			s.metrics.RecordSeed("skipped")
			continue
		}
		if err := s.seedOne(ctx, location, res); err != nil {
			s.log.Warn().Err(err).Str("sheet", res.ID).Str("url", res.URL).Msg("seed resource failed")
			report.Failed[res.ID] = err.Error()
			s.metrics.RecordSeed("failed")
			continue
		}
		report.Seeded = append(report.Seeded, res.ID)
		s.metrics.RecordSeed("seeded")
	}

	s.log.Info().
		Int("seeded", len(report.Seeded)).
		Int("skipped", len(report.Skipped)).
		Int("failed", len(report.Failed)).
		Msg("seeding finished")
	return report, nil
}

func (s *SeedService) seedOne(ctx context.Context, manifestLocation string, res SeedResource) error {
	data, err := s.Fetch(ctx, resolveLocation(manifestLocation, res.URL))
	if err != nil {
		return err
	}
	sheet, err := domain.SanitizeJSON(data, domain.SanitizeOptions{ForceID: res.ID})
	if err != nil {
		return &domain.ImportError{Err: err}
	}
	_, err = s.store.Save(ctx, sheet, res.ID)
	return err
}

// Fetch reads location, an http(s) URL or a file path.
func (s *SeedService) Fetch(ctx context.Context, location string) ([]byte, error) {
	if !isHTTP(location) {
		return os.ReadFile(location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, location)
	}
	return io.ReadAll(resp.Body)
}

// resolveLocation resolves ref against the manifest's own location.
func resolveLocation(base, ref string) string {
	if isHTTP(ref) {
		return ref
	}
	if isHTTP(base) {
		b, err := url.Parse(base)
		if err != nil {
			return ref
		}
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return b.ResolveReference(r).String()
	}
	if filepath.IsAbs(ref) {
		return ref
	}
	return filepath.Join(filepath.Dir(base), strings.TrimPrefix(ref, "/"))
}

func isHTTP(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
