package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/athenastats/internal/archiver"
	"github.com/dbsmedya/athenastats/internal/database"
	"github.com/dbsmedya/athenastats/internal/verifier"
)

var (
	createSchema bool
	verifyMethod string
)

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Store a query execution summary in MySQL",
	Long: `Archive retrieves a query execution and writes its summary, stage tree
and operator plans into the archive database in one transaction.

Archiving the same query execution again replaces the earlier rows. Runs
archiving the same execution are serialized with a MySQL advisory lock, and
the written rows are read back and verified unless verification is skipped.

Example:
  athenastats archive --config athenastats.yaml -q 2f6f7a1e-... --create-schema`,
	RunE: runArchive,
}

func init() {
	archiveCmd.Flags().BoolVar(&createSchema, "create-schema", false,
		"Create the archive tables if they do not exist")
	archiveCmd.Flags().StringVar(&verifyMethod, "verify", "",
		"Verification of archived rows: count, sha256 or skip (overrides archive.verify)")

	rootCmd.AddCommand(archiveCmd)
}

// newArchiveManager builds the archive connection manager; tests replace it.
var newArchiveManager = database.NewManager

func runArchive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Archive.Enabled {
		return errors.New("archive is not enabled in configuration (set archive.enabled: true)")
	}

	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := s.retrieve()
	if err != nil {
		return fmt.Errorf("failed to retrieve query execution: %w", err)
	}

	dbManager := newArchiveManager(&cfg.Archive.Database, s.log)
	if err := dbManager.Connect(s.ctx); err != nil {
		return err
	}
	defer dbManager.Close()

	store, err := archiver.NewStore(dbManager.DB, cfg.Archive.TablePrefix, s.log)
	if err != nil {
		return err
	}
	store.SetLockTimeout(cfg.Archive.LockTimeoutSeconds)

	if createSchema {
		if err := store.EnsureSchema(s.ctx); err != nil {
			return err
		}
	}

	result, err := store.Save(s.ctx, s.runID, summary)
	if err != nil {
		return fmt.Errorf("failed to archive query execution: %w", err)
	}

	fmt.Fprintf(outputWriter, "Archived %s (run %s): %d stages, %d plan nodes in %s\n",
		summary.QueryExecutionID, result.RunID, result.Stages, result.PlanNodes, result.Duration)

	verified, err := store.Verify(s.ctx, cfg.Archive.Verify, summary)
	if err != nil {
		return fmt.Errorf("archive verification failed: %w", err)
	}
	if verified.Method != verifier.MethodSkip {
		fmt.Fprintf(outputWriter, "✓ Verified archive (%s): %d tables, %d rows\n",
			verified.Method, verified.TablesVerified, verified.TotalRows)
	}
	return nil
}
