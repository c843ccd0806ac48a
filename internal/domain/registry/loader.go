package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// errEmptyReload is reported when a source that previously held records
// reads back empty, which is what a file truncated mid-replacement looks like.
var errEmptyReload = errors.New("source is empty; previous records kept")

// SourceReport describes the outcome of loading one source. Retained is set
// when the source failed and the previously published records were kept;
// Records then counts those.
type SourceReport struct {
	Source   string `json:"source"`
	Records  int    `json:"records"`
	Skipped  int    `json:"skipped"`
	Error    string `json:"error,omitempty"`
	Retained bool   `json:"retained,omitempty"`
}

// LoadReport describes a complete registry load.
type LoadReport struct {
	Authorized  SourceReport `json:"authorized"`
	Blacklisted SourceReport `json:"blacklisted"`
	LoadedAt    time.Time    `json:"loaded_at"`
}

// Degraded reports whether either source failed to load.
func (r LoadReport) Degraded() bool {
	return r.Authorized.Error != "" || r.Blacklisted.Error != ""
}

// Loader reads both registries from their sources.
type Loader struct {
	authorized  Source
	blacklisted Source
	logger      zerolog.Logger
}

// NewLoader creates a Loader. Either source may be nil, in which case that
// registry is always empty.
func NewLoader(authorized, blacklisted Source, logger zerolog.Logger) *Loader {
	return &Loader{
		authorized:  authorized,
		blacklisted: blacklisted,
		logger:      logger.With().Str("component", "registry_loader").Logger(),
	}
}

// Load builds a new Snapshot from scratch. It never fails: a missing or
// malformed source degrades to an empty registry for that source and is
// logged at error level.
func (l *Loader) Load(ctx context.Context) (*Snapshot, LoadReport) {
	return l.LoadOver(ctx, nil)
}

// LoadOver builds a new Snapshot on top of prev. A source that fails keeps
// the collection prev already holds for it, so a half-written or briefly
// missing file never drops blacklisted practitioners from a running
// registry. With a nil prev failed sources degrade to empty.
func (l *Loader) LoadOver(ctx context.Context, prev *Snapshot) (*Snapshot, LoadReport) {
	if prev == nil {
		prev = Empty()
	}
	authorized, aRep := l.loadOne(ctx, "authorized", l.authorized, prev.active.records)
	blacklisted, bRep := l.loadOne(ctx, "blacklisted", l.blacklisted, prev.blacklisted.records)

	report := LoadReport{
		Authorized:  aRep,
		Blacklisted: bRep,
		LoadedAt:    time.Now().UTC(),
	}
	return NewSnapshot(authorized, blacklisted), report
}

func (l *Loader) loadOne(ctx context.Context, kind string, src Source, prev []PractitionerRecord) ([]PractitionerRecord, SourceReport) {
	if src == nil {
		l.logger.Warn().Str("registry", kind).Msg("no registry source configured; using empty registry")
		return nil, SourceReport{Source: "", Error: "not configured"}
	}

	rep := SourceReport{Source: src.Name()}
	records, skipped, err := l.read(ctx, src)
	if err == nil && len(records) == 0 && len(prev) > 0 {
		err = errEmptyReload
	}
	if err != nil {
		rep.Error = err.Error()
		if len(prev) > 0 {
			rep.Retained = true
			rep.Records = len(prev)
			l.logger.Error().Err(err).
				Str("registry", kind).
				Str("source", src.Name()).
				Int("records", rep.Records).
				Msg("registry source unreadable; keeping previously loaded records")
			return prev, rep
		}
		l.logger.Error().Err(err).
			Str("registry", kind).
			Str("source", src.Name()).
			Msg("registry source unreadable; degrading to empty registry")
		return nil, rep
	}

	rep.Records = len(records)
	rep.Skipped = skipped
	l.logger.Info().
		Str("registry", kind).
		Str("source", src.Name()).
		Int("records", rep.Records).
		Int("skipped", rep.Skipped).
		Msg("registry loaded")
	return records, rep
}

func (l *Loader) read(ctx context.Context, src Source) ([]PractitionerRecord, int, error) {
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open: %w", err)
	}
	defer rc.Close()

	records, skipped, err := Decode(src.Format(), rc)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", src.Format(), err)
	}
	return records, skipped, nil
}
