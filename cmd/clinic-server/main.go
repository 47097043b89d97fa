package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/clinic/clinic/internal/config"
	"github.com/clinic/clinic/internal/domain/attendance"
	"github.com/clinic/clinic/internal/domain/patient"
	"github.com/clinic/clinic/internal/platform/auth"
	"github.com/clinic/clinic/internal/platform/db"
	"github.com/clinic/clinic/internal/platform/ids"
	"github.com/clinic/clinic/internal/platform/latency"
	"github.com/clinic/clinic/internal/platform/middleware"
	"github.com/clinic/clinic/internal/platform/postal"
	"github.com/clinic/clinic/internal/platform/recordstore"
	"github.com/clinic/clinic/internal/platform/sandbox"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "clinic-server",
		Short:        "Clinic patient and attendance API server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(storeCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedCmd() *cobra.Command {
	defaults := sandbox.DefaultSeedConfig()
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the record store with synthetic patients and attendances",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)

			seedCfg := sandbox.SeedConfig{}
			seedCfg.PatientCount, _ = cmd.Flags().GetInt("patients")
			seedCfg.AttendancesPerPatient, _ = cmd.Flags().GetInt("attendances")
			seedCfg.InactivePercent, _ = cmd.Flags().GetInt("inactive-percent")
			seedCfg.Seed, _ = cmd.Flags().GetInt64("seed")
			if seedCfg.InactivePercent < 0 || seedCfg.InactivePercent > 100 {
				return fmt.Errorf("--inactive-percent must be within 0-100")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, cfg, latency.None())
			if err != nil {
				return err
			}
			defer a.close()

			result, err := sandbox.NewSeeder(a.patients, a.attendances, logger).Seed(ctx, seedCfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d patients (%d inactive) and %d attendances, seed %d\n",
				result.Patients, result.InactivePatients, result.Attendances, result.Seed)
			return nil
		},
	}
	cmd.Flags().Int("patients", defaults.PatientCount, "Number of patients to create")
	cmd.Flags().Int("attendances", defaults.AttendancesPerPatient, "Attendances per patient")
	cmd.Flags().Int("inactive-percent", defaults.InactivePercent, "Share of patients left inactive (0-100)")
	cmd.Flags().Int64("seed", 0, "Random seed; 0 picks one from the clock")
	return cmd
}

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect the record store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Ping the backend and verify both collections deserialize",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, latency.None())
			if err != nil {
				return err
			}
			defer a.close()
			return checkStore(cmd.Context(), a, cmd.OutOrStdout())
		},
	})
	return cmd
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// app holds the record store and the repositories built on top of it.
type app struct {
	driver      string
	store       *recordstore.Store
	pool        *pgxpool.Pool
	gen         ids.Generator
	patients    patient.Repository
	attendances attendance.Repository
	closers     []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func openApp(ctx context.Context, cfg *config.Config, delay *latency.Simulator) (*app, error) {
	a := &app{driver: cfg.StoreDriver}

	var backend recordstore.Backend
	switch cfg.StoreDriver {
	case config.DriverMemory:
		backend = recordstore.NewMemoryBackend()
	case config.DriverFile:
		fb, err := recordstore.NewFileBackend(afero.NewOsFs(), cfg.StoreDir)
		if err != nil {
			return nil, err
		}
		backend = fb
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		a.pool = pool
		a.closers = append(a.closers, pool.Close)
		pb := recordstore.NewPostgresBackend(pool)
		if err := pb.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		backend = pb
	case config.DriverMySQL:
		gb, err := recordstore.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = gb.Close() })
		backend = gb
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	a.store = recordstore.New(backend)
	a.gen = ids.NewMonotonic()
	a.patients = patient.NewRepoStore(a.store, a.gen, delay)
	a.attendances = attendance.NewRepoStore(a.store, a.patients, a.gen, delay)
	return a, nil
}

func checkStore(ctx context.Context, a *app, out io.Writer) error {
	if err := a.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping %s store: %w", a.driver, err)
	}
	patients, err := a.patients.List(ctx)
	if err != nil {
		return fmt.Errorf("check %s: %w", patient.CollectionKey, err)
	}
	attendances, err := a.attendances.List(ctx)
	if err != nil {
		return fmt.Errorf("check %s: %w", attendance.CollectionKey, err)
	}

	known := make(map[int64]bool, len(patients))
	for _, p := range patients {
		known[p.ID] = true
	}
	dangling := 0
	for _, at := range attendances {
		if !known[at.PatientID] {
			dangling++
		}
	}
	fmt.Fprintf(out, "store %s ok: %d patients, %d attendances (%d without a patient)\n",
		a.driver, len(patients), len(attendances), dangling)
	return nil
}

// resolveSigningKey returns the configured token signing key or generates a
// random 32-byte key. The second return value is true when a random key was
// generated.
func resolveSigningKey(value string) ([]byte, bool, error) {
	if value != "" {
		return []byte(value), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("failed to generate random signing key: %w", err)
	}
	return key, true, nil
}

// newServer wires middleware and routes. The returned cleanup stops
// background workers owned by the server.
func newServer(cfg *config.Config, a *app, logger zerolog.Logger) (*echo.Echo, func(), error) {
	key, random, err := resolveSigningKey(cfg.AuthSigningKey)
	if err != nil {
		return nil, nil, err
	}
	if random {
		logger.Warn().Msg("AUTH_SIGNING_KEY not set, using a random key; tokens will not survive a restart")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Recovery(logger))
	var hsts time.Duration
	if cfg.IsProduction() {
		hsts = 365 * 24 * time.Hour
	}
	e.Use(middleware.SecurityHeaders(hsts))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout()))

	// Auth middleware
	issuer := auth.NewTokenIssuer(key, cfg.TokenTTL())
	revoked := auth.NewTokenRevocationStore()
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(issuer, revoked, auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(issuer, revoked, auth.AuthSkipper))
	}

	db.NewHealth(a.store, a.driver, a.pool).RegisterRoutes(e)

	apiV1 := e.Group("/api/v1")
	auth.NewHandler(auth.NewAuthenticator(cfg.AuthUsername, cfg.AuthPassword), issuer, revoked, logger).
		RegisterRoutes(apiV1)

	patients := patient.NewProvider(a.patients, logger)
	attendances := attendance.NewProvider(a.attendances, logger)
	patients.OnChange(attendances.PatientChanged)
	patient.NewHandler(patients).RegisterRoutes(apiV1)
	attendance.NewHandler(attendances).RegisterRoutes(apiV1)

	postal.NewHandler(postal.NewClient(cfg.PostalBaseURL, cfg.PostalTimeout()), logger).RegisterRoutes(apiV1)

	if cfg.IsDev() {
		// seeding writes many records in one request; skip the simulated delay
		seedPatients := patient.NewRepoStore(a.store, a.gen, latency.None())
		seedAttendances := attendance.NewRepoStore(a.store, seedPatients, a.gen, latency.None())
		seeder := sandbox.NewSeeder(seedPatients, seedAttendances, logger)
		sandbox.NewSeedHandler(seeder, patients, attendances).RegisterRoutes(apiV1)
	}

	return e, revoked.Close, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode: requests without a token are served as dev-user")
	}

	// Record store
	ctx := context.Background()
	a, err := openApp(ctx, cfg, latency.New(cfg.LatencyBand()))
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("failed to open record store")
	}
	defer a.close()
	logger.Info().Str("driver", a.driver).Msg("record store ready")

	e, cleanup, err := newServer(cfg, a, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build server")
	}
	defer cleanup()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
