package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/labread/labread/internal/config"
	"github.com/labread/labread/internal/domain/analysis"
	"github.com/labread/labread/internal/domain/catalog"
	"github.com/labread/labread/internal/domain/extraction"
	"github.com/labread/labread/internal/platform/auth"
	"github.com/labread/labread/internal/platform/db"
	"github.com/labread/labread/internal/platform/middleware"
	"github.com/labread/labread/internal/platform/ocr"
	"github.com/labread/labread/internal/platform/render"
)

const (
	version     = "0.1.0"
	analyzePath = "/api/v1/analyze"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "labread",
		Short:        "Lab report OCR, interpretation and risk summary",
		SilenceUsage: true,
	}
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(analyzeCmd())
	cmd.AddCommand(catalogCmd())
	cmd.AddCommand(migrateCmd())
	cmd.AddCommand(tokenCmd())
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if cfg.IsDev() {
		out = zerolog.ConsoleWriter{Out: out}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogPath == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(cfg.CatalogPath)
}

func ocrConfig(cfg *config.Config) ocr.Config {
	return ocr.Config{
		Tesseract:     cfg.OCRTesseract,
		Pdftoppm:      cfg.OCRPdftoppm,
		TesseractLang: cfg.OCRLang,
		TessdataDir:   cfg.OCRTessdataDir,
		DPI:           cfg.OCRDPI,
		MaxPages:      cfg.OCRMaxPages,
	}
}

func newService(cfg *config.Config, cat *catalog.Catalog, repo analysis.Repository, logger zerolog.Logger) *analysis.Service {
	pipeline := extraction.NewPipeline(cat, extraction.Options{
		Strategy:  cfg.Strategy(),
		Threshold: cfg.FuzzyThreshold,
	})
	return analysis.NewService(cat, pipeline, ocr.NewExtractor(ocrConfig(cfg), logger), repo, logger)
}

// store is the configured persistence backend. repo and pinger are nil
// when storage is disabled.
type store struct {
	backend string
	repo    analysis.Repository
	pinger  db.Pinger
	stats   func() any
	close   func()
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBAppName, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to postgres")
		return &store{
			backend: config.StorePostgres,
			repo:    analysis.NewRepoPG(pool),
			pinger:  pool,
			stats:   func() any { return db.GetPoolStats(pool) },
			close:   pool.Close,
		}, nil
	case config.StoreSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite store")
		return &store{
			backend: config.StoreSQLite,
			repo:    analysis.NewRepoSQLite(sqlDB),
			pinger:  db.SQLPinger{DB: sqlDB},
			close:   func() { sqlDB.Close() },
		}, nil
	}
	return &store{backend: config.StoreNone, close: func() {}}, nil
}

// newServer assembles the echo instance with global middleware, health
// checks and the analysis API.
func newServer(cfg *config.Config, svc *analysis.Service, st *store, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.BodyLimit, cfg.MaxUploadSize, analyzePath))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))

	if cfg.AuthEnabled() {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	} else {
		e.Use(auth.DevAuthMiddleware())
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"storage": st.backend,
		})
	})
	e.GET("/health/db", db.HealthHandler(st.backend, st.pinger, st.stats))

	var upload []echo.MiddlewareFunc
	if cfg.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimitRPS
		if cfg.RateLimitBurst > 0 {
			rl.BurstSize = cfg.RateLimitBurst
		}
		upload = append(upload, middleware.RateLimit(rl))
	}

	api := e.Group("/api/v1")
	analysis.NewHandler(svc).RegisterRoutes(api, upload...)
	return e
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)
	if !cfg.AuthEnabled() {
		logger.Warn().Msg("AUTH_SIGNING_KEY is empty; every request runs as the dev admin user")
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.close()

	e := newServer(cfg, newService(cfg, cat, st.repo, logger), st, logger)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().
			Str("addr", addr).
			Str("strategy", string(cfg.Strategy())).
			Str("storage", st.backend).
			Int("tests", cat.Len()).
			Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

func analyzeCmd() *cobra.Command {
	var (
		format   string
		out      string
		strategy string
	)
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Analyze a lab report file and print the result",
		Long: "Analyze runs OCR on a PDF or image and prints the interpreted report.\n" +
			"A .txt file is treated as already recognised text; form feeds separate pages.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := render.ParseFormat(format)
			if err != nil {
				return err
			}
			var s extraction.Strategy
			if strategy != "" {
				if s, err = extraction.ParseStrategy(strategy); err != nil {
					return err
				}
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer st.close()
			svc := newService(cfg, cat, st.repo, logger)

			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}

			var rep *analysis.Report
			if strings.EqualFold(filepath.Ext(path), ".txt") {
				rep, err = svc.AnalyzePages(ctx, textPages(string(data)), s)
				if rep != nil {
					rep.Filename = filepath.Base(path)
				}
			} else {
				rep, err = svc.Analyze(ctx, filepath.Base(path), data, s)
			}
			if err != nil {
				return err
			}

			body, err := analysis.Export(rep, f)
			if err != nil {
				return err
			}
			if out == "" {
				_, err = cmd.OutOrStdout().Write(body)
				return err
			}
			if err := os.WriteFile(out, body, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s, risk %s)\n", out, f, rep.Risk.Label)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "Output format: json, markdown, pdf or xlsx")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write output to this file instead of stdout")
	cmd.Flags().StringVar(&strategy, "strategy", "", "Extraction strategy: line, keyword or delimiter (default from config)")
	return cmd
}

// textPages splits plain text on form feeds, one page per segment.
func textPages(text string) []extraction.Page {
	parts := strings.Split(text, "\f")
	pages := make([]extraction.Page, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, extraction.Page{Number: len(pages) + 1, Text: p})
	}
	return pages
}

func catalogCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the reference tests, units and normal ranges",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(cat.Tests())
			}

			fmt.Fprintf(w, "%-20s %-16s %-10s %-20s %s\n", "KEY", "GROUP", "UNIT", "RANGE", "ALIASES")
			for _, t := range cat.Tests() {
				fmt.Fprintf(w, "%-20s %-16s %-10s %-20s %s\n",
					t.Key, t.Group, t.Unit, t.Range.Format(""), strings.Join(t.Aliases, ", "))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the catalog as JSON")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the configured STORE_DRIVER",
	}

	// migrate up
	var target int
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			switch cfg.StoreDriver {
			case config.StorePostgres:
				pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBAppName, cfg.DBMaxConns, cfg.DBMinConns)
				if err != nil {
					return err
				}
				defer pool.Close()

				count, err := db.NewMigrator(pool, db.PostgresMigrations()).UpTo(ctx, target)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(w, "Applied %d migration(s) successfully.\n", count)
			case config.StoreSQLite:
				sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				sqlDB.Close()
				fmt.Fprintf(w, "SQLite database %s is up to date.\n", cfg.SQLitePath)
			default:
				return fmt.Errorf("STORE_DRIVER is %q; nothing to migrate", cfg.StoreDriver)
			}
			return nil
		},
	}
	upCmd.Flags().IntVar(&target, "to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status (postgres)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver != config.StorePostgres {
				return fmt.Errorf("migrate status needs STORE_DRIVER=%s", config.StorePostgres)
			}

			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBAppName, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, db.PostgresMigrations()).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printStatuses(cmd.OutOrStdout(), statuses)
			return nil
		},
	})

	return cmd
}

func printStatuses(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		roles   []string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with AUTH_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}
			tok, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject (user id)")
	cmd.Flags().StringSliceVar(&roles, "roles", []string{auth.RoleAnalyst}, "Roles to grant: admin, analyst, viewer")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}
