// Package client wraps the Athena API calls athenastats needs.
package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/athena"
	"github.com/aws/aws-sdk-go/service/athena/athenaiface"

	"github.com/dbsmedya/athenastats/internal/config"
)

// TransportError is returned when an Athena API call fails, whether from the
// network, authorization or throttling. Err is the unmodified SDK error.
type TransportError struct {
	Op               string
	QueryExecutionID string
	Err              error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("athena %s (%s): %v", e.Op, e.QueryExecutionID, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Code returns the AWS error code, or an empty string for non-AWS errors.
func (e *TransportError) Code() string {
	if aerr, ok := e.Err.(awserr.Error); ok {
		return aerr.Code()
	}
	return ""
}

// Client is a handle on the Athena API authenticated with static credentials.
// Call Close when done with it.
type Client struct {
	api        athenaiface.AthenaAPI
	httpClient *http.Client
}

// New creates a Client from AWS configuration.
func New(cfg config.AWSConfig) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}

	awsConfig := &aws.Config{
		Region:     aws.String(cfg.Region),
		HTTPClient: httpClient,
		MaxRetries: aws.Int(cfg.MaxRetries),
	}

	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			cfg.AccessKey,
			cfg.SecretKey,
			cfg.SessionToken,
		)
	}

	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &Client{
		api:        athena.New(sess),
		httpClient: httpClient,
	}, nil
}

// NewWithAPI creates a Client around an existing Athena API implementation.
// This is primarily used for testing with mock clients.
func NewWithAPI(api athenaiface.AthenaAPI) *Client {
	return &Client{api: api}
}

// GetExecutionStatus returns the status and statistics of a query execution.
func (c *Client) GetExecutionStatus(ctx context.Context, queryExecutionID string) (*athena.QueryExecution, error) {
	out, err := c.api.GetQueryExecutionWithContext(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(queryExecutionID),
	})
	if err != nil {
		return nil, &TransportError{Op: "GetQueryExecution", QueryExecutionID: queryExecutionID, Err: err}
	}
	return out.QueryExecution, nil
}

// GetRuntimeStatistics returns the row counts, timeline and stage tree of a query execution.
func (c *Client) GetRuntimeStatistics(ctx context.Context, queryExecutionID string) (*athena.QueryRuntimeStatistics, error) {
	out, err := c.api.GetQueryRuntimeStatisticsWithContext(ctx, &athena.GetQueryRuntimeStatisticsInput{
		QueryExecutionId: aws.String(queryExecutionID),
	})
	if err != nil {
		return nil, &TransportError{Op: "GetQueryRuntimeStatistics", QueryExecutionID: queryExecutionID, Err: err}
	}
	return out.QueryRuntimeStatistics, nil
}

// Close releases idle HTTP connections held by the client.
func (c *Client) Close() error {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}
