// Package storage provides the durable artifact store behind the result
// materializer: an S3(-compatible) backend for deployments and a local
// filesystem backend for development and tests.
package storage

import "context"

// BlobStore writes one artifact and returns its durable public URL.
// Writing the same key twice overwrites; callers rely on last-writer-wins.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
