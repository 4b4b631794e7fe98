package storage

import (
	"context"
	"fmt"

	"github.com/cryarchy/fiverr-tools/utils"
)

// Backend names accepted by Open.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Open returns the storage backend named by backend.
func Open(ctx context.Context, backend, dsn string, retry *utils.RetryConfig, logger *utils.Logger) (Store, error) {
	logger.Info("[storage] Opening %s backend", backend)

	switch backend {
	case BackendPostgres:
		return NewPostgresStore(ctx, dsn, retry, logger)
	case BackendMemory:
		logger.Warn("[storage] Memory backend selected: nothing will survive a restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %q", backend)
	}
}
