// Package storage defines the object storage provider contract.
//
// The metadata store only holds references; bytes live with the provider.
// Handlers depend on this interface so the provider can be swapped for a
// test double.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned by Stat for keys with no stored object.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// UploadCredential is a short-lived signed credential letting a client
// upload one object directly to the provider.
type UploadCredential struct {
	URL       string    `json:"url"`
	Method    string    `json:"method"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Provider is an object storage backend.
type Provider interface {
	// Upload stores body under key and returns the object's public URL.
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)

	// Stat returns size and content type for a stored object, or
	// ErrObjectNotFound.
	Stat(ctx context.Context, key string) (*ObjectInfo, error)

	// Delete removes a stored object. Missing objects are not an error.
	Delete(ctx context.Context, key string) error

	// PresignUpload returns a signed credential for a direct client upload
	// of key, valid for ttl.
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (*UploadCredential, error)

	// PublicURL returns the URL an already-stored object is served from.
	PublicURL(key string) string
}
