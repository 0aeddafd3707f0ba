// cmd/libradesk/backend.go
package main

import (
	"context"
	"fmt"

	"libradesk/internal/config"
	"libradesk/internal/storage"
)

// openBackend connects the storage backend named by the configuration.
func openBackend(ctx context.Context, cfg config.FileConfig) (storage.KV, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemory(cfg.MemoryQuotaBytes), nil
	case config.BackendFile:
		return storage.NewFile(cfg.DataDir)
	case config.BackendPostgres:
		return storage.OpenPostgres(ctx, cfg.DatabaseURL)
	case config.BackendRedis:
		kv := storage.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisPrefix)
		if err := kv.Ping(ctx); err != nil {
			kv.Close()
			return nil, err
		}
		return kv, nil
	case config.BackendMinio:
		return storage.NewMinio(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
