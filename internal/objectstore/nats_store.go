// Package objectstore provides the NATS JetStream backed audio archive.
// Finished audio is stored under its job identifier so clients can fetch it
// again after the synthesis response has been consumed.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/book-expert/chatterbox-service/internal/core"
)

// ErrNotFound indicates the requested audio key does not exist in the archive.
var ErrNotFound = errors.New("audio object not found")

// Archive implements core.ObjectStore on a NATS JetStream object store bucket.
type Archive struct {
	bucket string
	store  nats.ObjectStore
}

// Compile-time interface check.
var _ core.ObjectStore = (*Archive)(nil)

// New connects the archive to the given bucket, creating it when it does not
// exist yet and binding to it when it does.
func New(natsConnection *nats.Conn, bucketName string) (*Archive, error) {
	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain jetstream context: %w", err)
	}

	// Create-first; bind when the bucket already exists.
	store, err := jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Generated audio archive (%s).", bucketName),
		TTL:         0,
		MaxBytes:    0,
		Storage:     nats.FileStorage,
		Replicas:    1,
		Placement:   nil,
		Metadata:    nil,
		Compression: false,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) {
			return nil, fmt.Errorf("failed to create archive bucket '%s': %w", bucketName, err)
		}

		store, err = jetstreamContext.ObjectStore(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to archive bucket '%s': %w", bucketName, err)
		}
	}

	return &Archive{
		bucket: bucketName,
		store:  store,
	}, nil
}

// Download retrieves archived audio by key.
func (a *Archive) Download(_ context.Context, key string) ([]byte, error) {
	obj, err := a.store.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: '%s'", ErrNotFound, key)
		}

		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, a.bucket, err)
	}

	data, readErr := io.ReadAll(obj)
	closeErr := obj.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload archives audio bytes under the given key.
func (a *Archive) Upload(_ context.Context, key string, data []byte) error {
	reader := bytes.NewReader(data)

	_, err := a.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, reader)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, a.bucket, err)
	}

	return nil
}
