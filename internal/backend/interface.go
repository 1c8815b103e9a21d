package backend

import (
	"context"

	"ledger/internal/amqp"
	"ledger/internal/rates"
	"ledger/internal/services"
	"ledger/internal/worker"
)

// Store is everything the binaries need from persistence: the ledger
// repository, the key-value slots of the rate cache and the reads of the
// event worker.
type Store interface {
	services.Repository
	rates.KVStore
	worker.Store
}

// Pinger reports whether the store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Store Store

	// Pinger is nil for backends without a connection to check.
	Pinger Pinger

	// AMQP is nil when no broker is configured or it could not be reached.
	AMQP *amqp.Client

	Cleanup CleanupFunc
}

// Publisher returns the event publisher, or a nil interface when AMQP is off.
func (r *BackendResult) Publisher() services.EventPublisher {
	if r.AMQP == nil {
		return nil
	}
	return r.AMQP
}

// Close runs Cleanup if set.
func (r *BackendResult) Close() error {
	if r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	SQLiteDBPath string

	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// RequireAMQP fails creation instead of continuing without a broker.
	RequireAMQP bool
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
