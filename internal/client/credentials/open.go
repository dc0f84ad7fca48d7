package credentials

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Open builds a Store for the named backend ("file", "sqlite" or "memory").
// The returned close function releases backend resources.
func Open(ctx context.Context, backend, tokenPath, databasePath, profile string, logger *zap.Logger) (*Store, func() error, error) {
	noop := func() error { return nil }
	switch backend {
	case "file", "":
		return New(NewFileBackend(tokenPath), logger), noop, nil
	case "sqlite":
		b, err := OpenSQLite(ctx, databasePath, profile)
		if err != nil {
			return nil, nil, err
		}
		return New(b, logger), b.Close, nil
	case "memory":
		return New(NewMemoryBackend(""), logger), noop, nil
	default:
		return nil, nil, fmt.Errorf("unknown token backend %q", backend)
	}
}
