// Package retriever fetches the two Athena views of a query execution and
// assembles them into a single summary.
package retriever

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/service/athena"

	"github.com/dbsmedya/athenastats/internal/logger"
	"github.com/dbsmedya/athenastats/internal/stats"
)

// Source is the subset of the Athena client the retriever needs.
type Source interface {
	GetExecutionStatus(ctx context.Context, queryExecutionID string) (*athena.QueryExecution, error)
	GetRuntimeStatistics(ctx context.Context, queryExecutionID string) (*athena.QueryRuntimeStatistics, error)
}

// Retriever builds ExecutionSummary values from a Source.
type Retriever struct {
	source Source
	mapper *stats.Mapper
	log    *logger.Logger
}

// New creates a Retriever. A nil mapper uses the default limits and a nil
// logger discards output.
func New(source Source, mapper *stats.Mapper, log *logger.Logger) *Retriever {
	if mapper == nil {
		mapper = stats.NewMapper(stats.Limits{})
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Retriever{
		source: source,
		mapper: mapper,
		log:    log,
	}
}

// Retrieve fetches execution status and runtime statistics, in that order,
// and assembles them. The first failing call aborts the retrieval.
func (r *Retriever) Retrieve(ctx context.Context, queryExecutionID string) (*stats.ExecutionSummary, error) {
	log := r.log.WithQuery(queryExecutionID)

	start := time.Now()
	exec, err := r.source.GetExecutionStatus(ctx, queryExecutionID)
	if err != nil {
		return nil, err
	}
	log.Debugw("fetched query execution", "duration", time.Since(start))

	start = time.Now()
	runtime, err := r.source.GetRuntimeStatistics(ctx, queryExecutionID)
	if err != nil {
		return nil, err
	}
	log.Debugw("fetched runtime statistics", "duration", time.Since(start))

	summary, err := stats.Assemble(exec, runtime, r.mapper)
	if err != nil {
		return nil, err
	}

	if summary.OutputStage != nil {
		log.Debugw("mapped stage tree",
			"stages", summary.OutputStage.Count(),
			"depth", summary.OutputStage.Depth())
	}

	return summary, nil
}
