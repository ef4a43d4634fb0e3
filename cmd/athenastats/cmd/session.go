package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/dbsmedya/athenastats/internal/client"
	"github.com/dbsmedya/athenastats/internal/config"
	"github.com/dbsmedya/athenastats/internal/database"
	"github.com/dbsmedya/athenastats/internal/logger"
	"github.com/dbsmedya/athenastats/internal/retriever"
	"github.com/dbsmedya/athenastats/internal/stats"
)

// newClient builds the Athena client; tests replace it with a mock-backed one.
var newClient = client.New

// session holds what every Athena-facing command needs for one run.
type session struct {
	cfg       *config.Config
	log       *logger.Logger
	client    *client.Client
	retriever *retriever.Retriever
	runID     string
	ctx       context.Context
	stop      context.CancelFunc
}

func openSession(cfg *config.Config) (*session, error) {
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	runID := uuid.NewString()
	log = log.WithRun(runID)

	c, err := newClient(cfg.AWS)
	if err != nil {
		return nil, fmt.Errorf("failed to create Athena client: %w", err)
	}

	mapper := stats.NewMapper(stats.Limits{
		MaxDepth: cfg.Mapping.MaxDepth,
		MaxNodes: cfg.Mapping.MaxNodes,
	})

	ctx, stop := database.SetupSignalHandlerWithCallback(func(sig os.Signal) {
		log.Warnw("Received signal, aborting", "signal", sig.String())
	})

	return &session{
		cfg:       cfg,
		log:       log,
		client:    c,
		retriever: retriever.New(c, mapper, log),
		runID:     runID,
		ctx:       ctx,
		stop:      stop,
	}, nil
}

// retrieve fetches the configured query execution.
func (s *session) retrieve() (*stats.ExecutionSummary, error) {
	id := s.cfg.Query.ExecutionID
	s.log.Infow("Retrieving query execution statistics", "query_execution_id", id, "region", s.cfg.AWS.Region)
	return s.retriever.Retrieve(s.ctx, id)
}

func (s *session) Close() {
	s.stop()
	if err := s.client.Close(); err != nil {
		s.log.Warnw("Failed to close Athena client", "error", err)
	}
	_ = s.log.Sync()
}
