// Package ocr turns uploaded report files into per-page text by shelling out
// to tesseract, rasterizing PDFs with pdftoppm first.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	ErrUnsupportedKind = errors.New("unsupported file kind")
	ErrNoPages         = errors.New("no pages rendered")
)

// Kind discriminates the two accepted inputs.
type Kind string

const (
	KindPDF   Kind = "pdf"
	KindImage Kind = "image"
)

// KindFromExt maps a file extension (with or without the dot) to a Kind.
func KindFromExt(ext string) (Kind, bool) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "pdf":
		return KindPDF, true
	case "png", "jpg", "jpeg", "tif", "tiff", "bmp", "webp":
		return KindImage, true
	}
	return "", false
}

// Config names the external binaries and their settings.
type Config struct {
	Tesseract     string // default "tesseract"
	Pdftoppm      string // default "pdftoppm"
	TesseractLang string // default "eng"
	TessdataDir   string
	DPI           int // rasterization DPI, default 300
	MaxPages      int // 0 means no limit
}

// Page is the text of one page. Number is 1-based.
type Page struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

// Result is the OCR output for one file.
type Result struct {
	Pages    []Page        `json:"pages"`
	FullText string        `json:"full_text"`
	Duration time.Duration `json:"-"`
}

// Extractor runs OCR. It is safe for concurrent use; each call works in
// its own temporary directory.
type Extractor struct {
	cfg    Config
	runner Runner
	logger zerolog.Logger
}

// NewExtractor fills in defaults and uses the real command runner.
func NewExtractor(cfg Config, logger zerolog.Logger) *Extractor {
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// WithRunner returns a copy of e that executes commands through r.
func (e *Extractor) WithRunner(r Runner) *Extractor {
	cp := *e
	cp.runner = r
	return &cp
}

// Extract writes data to a scratch directory and OCRs it according to kind.
func (e *Extractor) Extract(ctx context.Context, data []byte, kind Kind) (Result, error) {
	start := time.Now()
	if kind != KindPDF && kind != KindImage {
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	dir, err := os.MkdirTemp("", "labread-ocr-*")
	if err != nil {
		return Result{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn().Err(err).Str("dir", dir).Msg("failed to remove ocr scratch dir")
		}
	}()

	in := filepath.Join(dir, "input."+string(kind))
	if err := os.WriteFile(in, data, 0o600); err != nil {
		return Result{}, fmt.Errorf("write input: %w", err)
	}

	var pages []Page
	switch kind {
	case KindPDF:
		pages, err = e.extractPDF(ctx, dir, in)
	default:
		var txt string
		txt, err = e.tesseract(ctx, in)
		pages = []Page{{Number: 1, Text: txt}}
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{Pages: pages, FullText: joinPages(pages), Duration: time.Since(start)}
	e.logger.Debug().
		Str("kind", string(kind)).
		Int("pages", len(pages)).
		Dur("duration", res.Duration).
		Msg("ocr complete")
	return res, nil
}

func (e *Extractor) extractPDF(ctx context.Context, dir, in string) ([]Page, error) {
	prefix := filepath.Join(dir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", in, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	images, _ := filepath.Glob(prefix + "-*.png")
	sort.Slice(images, func(i, j int) bool { return pageIndex(images[i]) < pageIndex(images[j]) })
	if e.cfg.MaxPages > 0 && len(images) > e.cfg.MaxPages {
		images = images[:e.cfg.MaxPages]
	}
	if len(images) == 0 {
		return nil, ErrNoPages
	}

	pages := make([]Page, 0, len(images))
	for i, img := range images {
		txt, err := e.tesseract(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		pages = append(pages, Page{Number: i + 1, Text: txt})
	}
	return pages, nil
}

func (e *Extractor) tesseract(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, truncate(string(errb), 512))
	}
	return Normalize(string(out)), nil
}

// pageIndex extracts N from ".../page-N.png" so pages sort numerically.
func pageIndex(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), ".png")
	i := strings.LastIndexByte(base, '-')
	n, err := strconv.Atoi(base[i+1:])
	if err != nil {
		return 0
	}
	return n
}

func joinPages(pages []Page) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = p.Text
	}
	return strings.Join(parts, "\n")
}
