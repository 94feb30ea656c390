package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appointment-scheduler/config"
	deliveryHttp "appointment-scheduler/internal/delivery/http"
	"appointment-scheduler/internal/delivery/http/handler"
	"appointment-scheduler/internal/delivery/http/middleware"
	domainRepo "appointment-scheduler/internal/domain/repository"
	"appointment-scheduler/internal/infrastructure/cache"
	"appointment-scheduler/internal/infrastructure/database"
	"appointment-scheduler/internal/infrastructure/metrics"
	"appointment-scheduler/internal/repository"
	"appointment-scheduler/internal/repository/memory"
	"appointment-scheduler/internal/service"
	"appointment-scheduler/internal/usecase"
	"appointment-scheduler/pkg/jwt"
	"appointment-scheduler/pkg/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// App holds all dependencies for the application
type App struct {
	Config      *config.Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Locker      *memory.SlotLocker
	Server      *http.Server
}

// stores is the persistence the usecase runs on
type stores struct {
	appointments domainRepo.AppointmentRepository
	doctors      domainRepo.DoctorProfileRepository
	patients     domainRepo.PatientProfileRepository
}

// LoadConfig loads configuration and configures the shared logger from it
func LoadConfig() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, SetupLogger(cfg.App), nil
}

// SetupLogger configures the logrus standard logger
func SetupLogger(cfg config.AppConfig) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

// New creates a new App instance with all dependencies initialized
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger, out io.Writer) (*App, error) {
	app := &App{Config: cfg, Log: log}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	schedulerMetrics := metrics.NewSchedulerMetrics(registry)
	jwtService := jwt.NewJWTService(cfg.JWT)

	var (
		st  stores
		err error
	)
	switch cfg.Ledger.Driver {
	case config.LedgerDriverMemory:
		st, err = app.memoryStores(jwtService, out)
	default:
		st, err = app.postgresStores(schedulerMetrics)
	}
	if err != nil {
		app.Close()
		return nil, err
	}

	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warnf("Doctor cache disabled: %v", err)
		} else {
			app.RedisClient = redisClient
			st.doctors = repository.NewCachedDoctorRepository(st.doctors, redisClient, log, cfg.Redis.DoctorCacheTTL)
			log.Info("Redis connected successfully")
		}
	}

	appointmentUsecase := usecase.NewAppointmentUsecase(
		log,
		st.appointments,
		st.doctors,
		st.patients,
		service.NewAuditService(log),
		schedulerMetrics,
		usecase.AppointmentUsecaseConfig{
			Location:        cfg.App.Location,
			DefaultPageSize: cfg.Ledger.DefaultPageSize,
			MaxPageSize:     cfg.Ledger.MaxPageSize,
		},
	)

	router := deliveryHttp.NewRouter(
		handler.NewAppointmentHandler(appointmentUsecase, validator.NewValidator(), log),
		middleware.NewAuthMiddleware(jwtService),
		middleware.NewCORSMiddleware(),
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	)

	app.Server = &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.App.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

func (app *App) postgresStores(m *metrics.SchedulerMetrics) (stores, error) {
	cfg := app.Config

	if cfg.DB.AutoMigrate {
		if err := RunMigrations(cfg, app.Log, func(mg *database.Migrator) error { return mg.Up() }); err != nil {
			return stores{}, err
		}
	}

	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.IsDevelopment())
	if err != nil {
		return stores{}, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = db
	app.Log.Info("Database connected successfully")

	return stores{
		appointments: repository.NewAppointmentRepository(db, app.Log, m, cfg.Ledger.MaxRetries),
		doctors:      repository.NewDoctorProfileRepository(db),
		patients:     repository.NewPatientProfileRepository(db),
	}, nil
}

// memoryStores serves a freshly generated directory; tokens for it go to out
func (app *App) memoryStores(jwtService *jwt.JWTService, out io.Writer) (stores, error) {
	dir := service.NewDirectorySeeder(0).Generate(app.Config.Seed.Doctors, app.Config.Seed.Patients)
	if err := PrintTokens(out, jwtService, dir); err != nil {
		return stores{}, err
	}

	app.Locker = memory.NewSlotLocker(app.Log)
	app.Log.Infof("Using in-memory ledger with %d doctors and %d patients", len(dir.Doctors), len(dir.Patients))

	return stores{
		appointments: memory.NewAppointmentRepository(app.Log, app.Locker),
		doctors:      memory.NewDoctorDirectory(dir.Doctors...),
		patients:     memory.NewPatientDirectory(dir.Patients...),
	}, nil
}

// RunMigrations opens a migrator for the configured database and hands it to fn
func RunMigrations(cfg *config.Config, log *logrus.Logger, fn func(*database.Migrator) error) error {
	migrator, err := database.NewMigrator(database.DSN(cfg.DB), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Warnf("Failed to close migrator: %v", err)
		}
	}()
	return fn(migrator)
}

// Seed writes a generated directory to PostgreSQL and prints access tokens for it
func Seed(ctx context.Context, cfg *config.Config, log *logrus.Logger, out io.Writer) error {
	db, err := database.NewPostgresConnection(cfg.DB, cfg.App.IsDevelopment())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	dir := service.NewDirectorySeeder(0).Generate(cfg.Seed.Doctors, cfg.Seed.Patients)
	if err := database.SeedDirectory(ctx, db, log, dir); err != nil {
		return err
	}
	return PrintTokens(out, jwt.NewJWTService(cfg.JWT), dir)
}

// PrintTokens writes one development access token per directory member
func PrintTokens(out io.Writer, jwtService *jwt.JWTService, dir service.Directory) error {
	for _, p := range dir.Patients {
		token, _, err := jwtService.GenerateAccessToken(p.UserID, p.User.RoleID)
		if err != nil {
			return fmt.Errorf("failed to sign token for patient %s: %w", p.UserID, err)
		}
		fmt.Fprintf(out, "patient %s %s\n%s\n", p.UserID, p.User.Email, token)
	}
	for _, d := range dir.Doctors {
		token, _, err := jwtService.GenerateAccessToken(d.UserID, d.User.RoleID)
		if err != nil {
			return fmt.Errorf("failed to sign token for doctor %s: %w", d.UserID, err)
		}
		fmt.Fprintf(out, "doctor %s %s capacity=%d\n%s\n", d.UserID, d.User.Email, d.DailyCapacity, token)
	}
	return nil
}

// Run starts the HTTP server and handles graceful shutdown
func (app *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		app.Log.Infof("Server starting on port %s", app.Config.App.Port)
		app.Log.Infof("Environment: %s, ledger: %s", app.Config.App.Env, app.Config.Ledger.Driver)
		if err := app.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		app.Close()
		return fmt.Errorf("failed to start server: %w", err)
	case <-quit:
	}

	app.Log.Info("Shutting down server...")

	// Create shutdown context with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.Server.Shutdown(ctx); err != nil {
		app.Log.Errorf("Server forced to shutdown: %v", err)
	}

	app.Close()

	app.Log.Info("Server shutdown complete")
	return nil
}

// Close releases the database, Redis, and the slot locker
func (app *App) Close() {
	if app.DB != nil {
		sqlDB, err := app.DB.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}

	if app.RedisClient != nil {
		_ = app.RedisClient.Close()
	}

	if app.Locker != nil {
		app.Locker.Stop()
	}
}
