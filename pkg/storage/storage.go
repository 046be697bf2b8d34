// Package storage writes narration audio to object storage and returns
// the object's public URL.
package storage

import (
	"context"
	"strings"
)

// Sink is the object-storage collaborator.
type Sink interface {
	PutObject(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// joinURL joins a base URL and an object key with exactly one slash.
func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
