package client

import (
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"
)

// MockAthenaAPI implements the athenaiface.AthenaAPI interface for testing.
// Only the calls athenastats makes are implemented; anything else panics on
// the nil embedded interface.
type MockAthenaAPI struct {
	athenaiface.AthenaAPI
	mu sync.Mutex

	Executions        map[string]*athena.QueryExecution
	RuntimeStatistics map[string]*athena.QueryRuntimeStatistics

	// Errors returned instead of the canned responses when set.
	ExecutionErr error
	RuntimeErr   error

	Calls []string
}

// NewMockAthenaAPI creates an empty mock Athena client.
func NewMockAthenaAPI() *MockAthenaAPI {
	return &MockAthenaAPI{
		Executions:        make(map[string]*athena.QueryExecution),
		RuntimeStatistics: make(map[string]*athena.QueryRuntimeStatistics),
	}
}

// GetQueryExecutionWithContext returns the canned execution for the requested id.
func (m *MockAthenaAPI) GetQueryExecutionWithContext(_ aws.Context, input *athena.GetQueryExecutionInput, _ ...request.Option) (*athena.GetQueryExecutionOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := aws.StringValue(input.QueryExecutionId)
	m.Calls = append(m.Calls, "GetQueryExecution:"+id)

	if m.ExecutionErr != nil {
		return nil, m.ExecutionErr
	}
	exec, ok := m.Executions[id]
	if !ok {
		return nil, notFound(id)
	}
	return &athena.GetQueryExecutionOutput{QueryExecution: exec}, nil
}

// GetQueryRuntimeStatisticsWithContext returns the canned runtime statistics for the requested id.
func (m *MockAthenaAPI) GetQueryRuntimeStatisticsWithContext(_ aws.Context, input *athena.GetQueryRuntimeStatisticsInput, _ ...request.Option) (*athena.GetQueryRuntimeStatisticsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := aws.StringValue(input.QueryExecutionId)
	m.Calls = append(m.Calls, "GetQueryRuntimeStatistics:"+id)

	if m.RuntimeErr != nil {
		return nil, m.RuntimeErr
	}
	rs, ok := m.RuntimeStatistics[id]
	if !ok {
		return nil, notFound(id)
	}
	return &athena.GetQueryRuntimeStatisticsOutput{QueryRuntimeStatistics: rs}, nil
}

func notFound(id string) error {
	return awserr.New(athena.ErrCodeInvalidRequestException,
		fmt.Sprintf("QueryExecution %s was not found", id), nil)
}
