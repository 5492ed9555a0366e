package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clinicware/medtrack/internal/adapters/legacy"
	"github.com/clinicware/medtrack/internal/audit"
	"github.com/clinicware/medtrack/internal/medication"
	"github.com/clinicware/medtrack/internal/patient"
	"github.com/clinicware/medtrack/internal/prescription"
	"github.com/clinicware/medtrack/internal/reminder"
	"github.com/clinicware/medtrack/internal/shared/auth"
	"github.com/clinicware/medtrack/internal/shared/config"
	"github.com/clinicware/medtrack/internal/shared/crypto"
	"github.com/clinicware/medtrack/internal/shared/database"
	"github.com/clinicware/medtrack/internal/shared/metrics"
	secmiddleware "github.com/clinicware/medtrack/internal/shared/middleware"
	"github.com/clinicware/medtrack/internal/staff"
	"github.com/clinicware/medtrack/internal/timeutil"
)

// App holds all application dependencies
type App struct {
	Config *config.Config
	DB     *database.DB
	Trail  audit.Recorder
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg, Trail: audit.Nop{}}

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "database not available: %v\n", err)
		os.Exit(1)
	}
	app.DB = db
	defer db.Close()

	if err := database.Migrate(ctx, db.Pool); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// Audit trail is optional; everything it records also reaches the logs.
	var auditTrail *audit.Trail
	if cfg.Audit.Enabled {
		trail, err := audit.NewTrail(cfg.Audit)
		if err != nil {
			fmt.Printf("Warning: audit trail not available: %v\n", err)
			fmt.Println("Running without append-only audit...")
		} else {
			app.Trail = trail
			auditTrail = trail
			defer trail.Close()
			fmt.Println("Audit trail initialized (EventStoreDB)")
		}
	}

	clock := timeutil.SystemClock{}
	hasher := crypto.NewBcryptHasher(0)
	issuer := auth.NewTokenIssuer(cfg.Auth)

	patientRepo := patient.NewRepository(db.Pool)
	staffRepo := staff.NewRepository(db.Pool)
	medicationRepo := medication.NewRepository(db.Pool)
	prescriptionRepo := prescription.NewRepository(db.Pool)

	resolver := patient.NewIdentityResolver(patientRepo, hasher)
	calculator := prescription.NewCalculator(prescriptionRepo)
	guard := prescription.NewGuard(prescriptionRepo, cfg.Clinic.DoseWindowHours)

	patientHandler := patient.NewHandler(patientRepo, resolver, hasher, issuer, app.Trail)
	staffHandler := staff.NewHandler(staffRepo, hasher, issuer, app.Trail)
	medicationHandler := medication.NewHandler(medicationRepo)
	prescriptionHandler := prescription.NewHandler(prescriptionRepo, calculator, guard, clock, app.Trail)

	loginLimiter := secmiddleware.NewIPRateLimiter(cfg.Auth.LoginRatePerMinute, cfg.Auth.LoginBurst)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.MaxBody)
	r.Use(metrics.Middleware)

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", infoHandler)

	r.Route("/api/v1", func(r chi.Router) {
		// Login endpoints are the only unauthenticated API surface.
		r.Group(func(r chi.Router) {
			r.Use(loginLimiter.Middleware)
			r.Post("/login", patientHandler.Login)
			r.Post("/staff/login", staffHandler.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(cfg.Auth))

			r.Mount("/patients", patientHandler.Routes())
			r.Mount("/staff/users", staffHandler.Routes())
			r.Mount("/medications", medicationHandler.Routes())
			r.Mount("/prescriptions", prescriptionHandler.Routes())
			r.Mount("/clinic", prescriptionHandler.ClinicRoutes())
			r.Get("/dose-history", prescriptionHandler.DoseHistory)

			if auditTrail != nil {
				r.Mount("/audit", audit.NewHandler(auditTrail).Routes())
			}
		})
	})

	// Background reminder dispatcher
	if cfg.Reminder.Enabled {
		source := reminder.NewRepositorySource(prescriptionRepo, patientRepo, medicationRepo)
		dispatcher := reminder.NewDispatcher(
			source,
			reminder.NewConsoleProvider("EMAIL"),
			reminder.NewConsoleProvider("SMS"),
			clock,
			app.Trail,
			reminder.Config{
				Workers:      cfg.Reminder.Workers,
				ScanInterval: cfg.Reminder.ScanInterval,
			},
		)
		if err := dispatcher.Start(ctx); err != nil {
			fmt.Printf("Warning: reminder dispatcher failed to start: %v\n", err)
		} else {
			defer dispatcher.Stop()
			fmt.Printf("Reminder dispatcher started (%d workers, scan every %s)\n",
				cfg.Reminder.Workers, cfg.Reminder.ScanInterval)
		}
	}

	// One-way import from the legacy EHR
	if cfg.Legacy.Enabled {
		importer := legacy.NewImporter(cfg.Legacy, hasher, patientRepo, medicationRepo)
		if err := importer.Start(ctx); err != nil {
			fmt.Printf("Warning: legacy importer failed to start: %v\n", err)
			fmt.Println("Running without legacy EHR import...")
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				importer.Stop(stopCtx)
			}()
			fmt.Printf("Legacy EHR importer started (poll every %s)\n", cfg.Legacy.PollInterval)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("MedTrack Medication Adherence Service")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("Clinic TZ:    %s\n", cfg.Clinic.TimeZone)
	fmt.Printf("Dose window:  %dh\n", cfg.Clinic.DoseWindowHours)
	fmt.Printf("Audit trail:  %v\n", cfg.Audit.Enabled)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "MedTrack Medication Adherence Service",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		if err := app.DB.Health(r.Context()); err != nil {
			checks["database"] = "not ready: " + err.Error()
		} else {
			checks["database"] = "ready"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}
