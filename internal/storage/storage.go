// Package storage persists whole entity collections in a key-value backend.
// Each collection lives under one key and is always read and written in full.
package storage

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrQuotaExceeded is returned when a backend refuses a write for lack of space.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	// ErrClosed is returned by backends used after Close.
	ErrClosed = errors.New("storage closed")
)

// KV is the minimal key-value contract a backend has to provide.
type KV interface {
	// Get returns the value stored under key; ok is false when key is absent.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, data []byte) error
	Close() error
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var tracer = otel.Tracer("libradesk/storage")

// Load reads the collection stored under key. An absent key yields an empty,
// non-nil slice.
func Load[T any](ctx context.Context, kv KV, key string) ([]T, error) {
	ctx, span := tracer.Start(ctx, "storage.load",
		trace.WithAttributes(attribute.String("collection.key", key)),
	)
	defer span.End()

	data, ok, err := kv.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	records := make([]T, 0)
	if !ok || len(data) == 0 {
		span.SetAttributes(attribute.Bool("collection.absent", true))
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	if records == nil {
		records = make([]T, 0)
	}

	span.SetAttributes(attribute.Int("collection.size", len(records)))
	return records, nil
}

// Save replaces the collection stored under key with records.
func Save[T any](ctx context.Context, kv KV, key string, records []T) error {
	ctx, span := tracer.Start(ctx, "storage.save",
		trace.WithAttributes(
			attribute.String("collection.key", key),
			attribute.Int("collection.size", len(records)),
		),
	)
	defer span.End()

	if records == nil {
		records = make([]T, 0)
	}
	data, err := json.Marshal(records)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode failed")
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := kv.Put(ctx, key, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put failed")
		return fmt.Errorf("save %s: %w", key, err)
	}

	span.SetAttributes(attribute.Int("collection.bytes", len(data)))
	return nil
}
