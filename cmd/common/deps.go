// Package common wires the shared dependencies of the CLI commands.
package common

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/courtcapture/internal/capture"
	"github.com/jonesrussell/courtcapture/internal/comms"
	"github.com/jonesrussell/courtcapture/internal/config"
	"github.com/jonesrussell/courtcapture/internal/courts"
	"github.com/jonesrussell/courtcapture/internal/credentials"
	"github.com/jonesrussell/courtcapture/internal/database"
	"github.com/jonesrussell/courtcapture/internal/logger"
	"github.com/jonesrussell/courtcapture/internal/metrics"
	"github.com/jonesrussell/courtcapture/internal/recovery"
	"github.com/jonesrussell/courtcapture/internal/syncer"
)

// Deps holds the fully wired service graph shared by the commands.
type Deps struct {
	Config *config.Config
	Logger logger.Interface
	DB     *sqlx.DB

	Runs          *database.CaptureRunRepository
	RawLogs       *database.RawLogRepository
	Schedules     *database.ScheduleRepository
	Credentials   *database.CredentialRepository
	Cases         *database.CaseRepository
	Records       *database.RecordRepository
	Communication *database.CommunicationRepository

	Registry  *courts.Registry
	Collector *metrics.Collector
	Service   *capture.Service
	Analyzer  *recovery.Analyzer
	Feed      *comms.FeedClient
	Ingestor  *comms.Ingestor
}

// New loads configuration and builds the service graph. The returned
// Deps owns the database handle; callers must Close it.
func New(cfgFile string, debug bool) (*Deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Server.Debug = true
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.NewPostgresConnection(cfg.Database)
	if err != nil {
		return nil, err
	}

	registry, err := courts.LoadRegistry(cfg.CourtsFile)
	if err != nil {
		db.Close()
		return nil, err
	}

	key := cfg.CredentialKey
	if key == "" {
		key = os.Getenv("COURTCAPTURE_CREDENTIAL_KEY")
	}

	deps := &Deps{
		Config:        cfg,
		Logger:        log,
		DB:            db,
		Runs:          database.NewCaptureRunRepository(db),
		RawLogs:       database.NewRawLogRepository(db),
		Schedules:     database.NewScheduleRepository(db),
		Credentials:   database.NewCredentialRepository(db),
		Cases:         database.NewCaseRepository(db),
		Records:       database.NewRecordRepository(db),
		Communication: database.NewCommunicationRepository(db),
		Registry:      registry,
		Collector:     metrics.NewCollector(),
	}

	resolver, err := credentials.NewResolver(deps.Credentials, key)
	if err != nil {
		db.Close()
		return nil, err
	}

	client := capture.NewClient(capture.ClientConfig{
		RequestDelay:   cfg.Capture.RequestDelay,
		RequestTimeout: cfg.Capture.RequestTimeout,
		UserAgent:      cfg.Capture.UserAgent,
	}, log)

	executor := capture.NewExecutor(
		registry,
		resolver,
		client,
		deps.Runs,
		deps.RawLogs,
		capture.NewFileDocumentStore(cfg.Capture.DocumentsDir),
		deps.Collector,
		log,
		capture.Config{
			PageSize:   cfg.Capture.PageSize,
			RunTimeout: cfg.Capture.RunTimeout,
		},
	)

	deps.Service = capture.NewService(executor, syncer.New(deps.Cases, deps.Records, log), log)
	deps.Analyzer = recovery.NewAnalyzer(deps.RawLogs, log)
	deps.Feed = comms.NewFeedClient(comms.FeedClientConfig{
		BaseURL:        cfg.Comms.BaseURL,
		RequestDelay:   cfg.Comms.RequestDelay,
		RequestTimeout: cfg.Comms.RequestTimeout,
		UserAgent:      cfg.Capture.UserAgent,
	}, log)
	deps.Ingestor = comms.NewIngestor(deps.Communication, deps.Cases, log)

	return deps, nil
}

// Close releases the database handle.
func (d *Deps) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}
