package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/labread/labread/internal/domain/catalog"
	"github.com/labread/labread/internal/domain/extraction"
	"github.com/labread/labread/internal/domain/interpretation"
	"github.com/labread/labread/internal/domain/narrative"
	"github.com/labread/labread/internal/platform/ocr"
)

// KindText marks a report built from already-recognised page text.
const KindText = "text"

// OCR turns raw file bytes into page text.
type OCR interface {
	Extract(ctx context.Context, data []byte, kind ocr.Kind) (ocr.Result, error)
}

// Service runs the analysis pipeline. Repository is optional; without one
// reports are returned but not stored.
type Service struct {
	cat      *catalog.Catalog
	pipeline *extraction.Pipeline
	engine   *interpretation.Engine
	composer *narrative.Composer
	ocr      OCR
	repo     Repository
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(cat *catalog.Catalog, pipeline *extraction.Pipeline, o OCR, repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		cat:      cat,
		pipeline: pipeline,
		engine:   interpretation.NewEngine(cat),
		composer: narrative.NewComposer(cat),
		ocr:      o,
		repo:     repo,
		logger:   logger.With().Str("component", "analysis").Logger(),
		now:      time.Now,
	}
}

// Catalog returns the reference catalog the service classifies against.
func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// Persistent reports whether reports are stored.
func (s *Service) Persistent() bool { return s.repo != nil }

// DetectKind maps a filename extension to an OCR input kind.
func DetectKind(filename string) (ocr.Kind, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	kind, ok := ocr.KindFromExt(ext)
	if !ok {
		if ext == "" {
			return "", fmt.Errorf("%w: %q has no extension", ErrUnsupportedFileType, filename)
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	return kind, nil
}

// Analyze OCRs an uploaded file and runs the full pipeline over its text.
// An empty strategy selects the configured default.
func (s *Service) Analyze(ctx context.Context, filename string, data []byte, strategy extraction.Strategy) (*Report, error) {
	kind, err := DetectKind(filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	if s.ocr == nil {
		return nil, fmt.Errorf("%w: no ocr engine configured", ErrOCRFailed)
	}

	res, err := s.ocr.Extract(ctx, data, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRFailed, err)
	}

	pages := make([]extraction.Page, len(res.Pages))
	for i, p := range res.Pages {
		pages[i] = extraction.Page{Number: p.Number, Text: p.Text}
	}

	rep := s.build(pages, strategy)
	rep.Filename = filename
	rep.Kind = string(kind)
	s.store(ctx, rep)
	return rep, nil
}

// AnalyzePages runs the pipeline over page text that was recognised
// elsewhere.
func (s *Service) AnalyzePages(ctx context.Context, pages []extraction.Page, strategy extraction.Strategy) (*Report, error) {
	if len(pages) == 0 {
		return nil, ErrEmptyInput
	}
	rep := s.build(pages, strategy)
	rep.Kind = KindText
	s.store(ctx, rep)
	return rep, nil
}

// Interpret classifies submitted readings without OCR or extraction.
// Unknown keys are kept and reported as not configured.
func (s *Service) Interpret(ctx context.Context, readings map[string]interpretation.Reading) (*Report, error) {
	rep := s.newReport()
	rep.Kind = KindValues

	keys := make([]string, 0, len(readings))
	for k := range readings {
		keys = append(keys, k)
	}
	s.sortKeys(keys)
	for _, k := range keys {
		rd := readings[k]
		rep.Observations = append(rep.Observations, extraction.Observation{Key: k, Value: rd.Value, Unit: rd.Unit, LineIndex: -1})
	}

	s.assess(rep, readings)
	s.store(ctx, rep)
	return rep, nil
}

// Get loads a stored report.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Report, error) {
	if s.repo == nil {
		return nil, ErrStoreDisabled
	}
	return s.repo.GetByID(ctx, id)
}

// List returns stored report summaries, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]*Summary, int, error) {
	if s.repo == nil {
		return nil, 0, ErrStoreDisabled
	}
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) newReport() *Report {
	return &Report{
		ID:           uuid.New(),
		CreatedAt:    s.now().UTC(),
		Pages:        []extraction.Page{},
		Observations: []extraction.Observation{},
		MatchedLines: []extraction.Match{},
	}
}

func (s *Service) build(pages []extraction.Page, strategy extraction.Strategy) *Report {
	p := s.pipeline.WithStrategy(strategy)
	res := p.Extract(pages)

	rep := s.newReport()
	rep.Strategy = res.Strategy
	rep.Pages = pages
	rep.MatchedLines = res.Matches
	rep.FallbackUsed = res.FallbackUsed

	keys := make([]string, 0, len(res.Observations))
	for k := range res.Observations {
		keys = append(keys, k)
	}
	s.sortKeys(keys)

	readings := make(map[string]interpretation.Reading, len(keys))
	for _, k := range keys {
		o := res.Observations[k]
		rep.Observations = append(rep.Observations, o)
		readings[k] = interpretation.Reading{Value: o.Value, Unit: o.Unit}
	}

	s.logger.Debug().
		Str("strategy", string(res.Strategy)).
		Int("pages", len(pages)).
		Int("lines", len(extraction.Lines(pages))).
		Int("observations", len(rep.Observations)).
		Int("matched_lines", len(rep.MatchedLines)).
		Bool("fallback_used", res.FallbackUsed).
		Msg("extraction complete")

	s.assess(rep, readings)
	return rep
}

func (s *Service) assess(rep *Report, readings map[string]interpretation.Reading) {
	a := s.engine.Assess(readings)
	rep.Interpretation = a.Interpretation
	rep.Risk = a.Risk
	rep.Conditions = a.Conditions
	rep.Narrative = s.composer.Compose(a)
}

// sortKeys orders catalog keys by declaration and unknown keys after them
// alphabetically.
func (s *Service) sortKeys(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := s.cat.Order(keys[i]), s.cat.Order(keys[j])
		switch {
		case oi >= 0 && oj >= 0:
			return oi < oj
		case oi >= 0:
			return true
		case oj >= 0:
			return false
		}
		return keys[i] < keys[j]
	})
}

// store persists rep when a repository is configured. A storage failure
// is logged and does not fail the analysis.
func (s *Service) store(ctx context.Context, rep *Report) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Create(ctx, rep); err != nil {
		s.logger.Error().Err(err).Str("analysis_id", rep.ID.String()).Msg("failed to store analysis")
		return
	}
	s.logger.Info().
		Str("analysis_id", rep.ID.String()).
		Str("kind", rep.Kind).
		Str("risk_label", rep.Risk.Label).
		Msg("analysis stored")
}
