package testutil

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	ierr "github.com/ledgerline/taxengine/internal/errors"
	"github.com/ledgerline/taxengine/internal/logger"
	"github.com/ledgerline/taxengine/internal/postgres"
)

var _ postgres.IClient = (*MockPostgresClient)(nil) // Ensure MockPostgresClient implements IClient

// TxParticipant is implemented by in-memory stores that take part in mock
// transactions so WithTx failures roll their state back the way a real
// transaction would.
type TxParticipant interface {
	Snapshot() any
	Restore(snapshot any)
}

// MockPostgresClient is a mock implementation of postgres client for testing.
// Services under test go through the in-memory repositories, so only the
// transaction wrapper is functional.
type MockPostgresClient struct {
	logger       *logger.Logger
	participants []TxParticipant
}

// NewMockPostgresClient creates a new mock postgres client
func NewMockPostgresClient(logger *logger.Logger, participants ...TxParticipant) *MockPostgresClient {
	return &MockPostgresClient{
		logger:       logger,
		participants: participants,
	}
}

// WithTx executes the given function, restoring the registered participants
// to their pre-transaction state when it returns an error
func (c *MockPostgresClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	snapshots := make([]any, len(c.participants))
	for i, p := range c.participants {
		snapshots[i] = p.Snapshot()
	}

	if err := fn(ctx); err != nil {
		for i, p := range c.participants {
			p.Restore(snapshots[i])
		}
		return err
	}
	return nil
}

func (c *MockPostgresClient) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return nil, ierr.NewError("raw queries are not supported by the mock client").
		WithHint("Use the in-memory repositories in tests").
		Mark(ierr.ErrInvalidOperation)
}

func (c *MockPostgresClient) NamedQueryContext(ctx context.Context, query string, arg interface{}) (*sqlx.Rows, error) {
	return nil, ierr.NewError("raw queries are not supported by the mock client").
		WithHint("Use the in-memory repositories in tests").
		Mark(ierr.ErrInvalidOperation)
}
