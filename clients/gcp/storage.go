package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// Backup stores copies of the directory file in a Cloud Storage bucket.
type Backup struct {
	client *storage.Client
	bucket string
}

func NewBackup(ctx context.Context, bucket string, opts ...option.ClientOption) (*Backup, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &Backup{client: client, bucket: bucket}, nil
}

// Upload replaces the object name with data.
func (b *Backup) Upload(ctx context.Context, name string, data []byte) error {
	w := b.client.Bucket(b.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("Object(%q).Write: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("Object(%q).Close: %w", name, err)
	}
	log.Debug().Str("bucket", b.bucket).Str("object", name).Int("bytes", len(data)).Msg("backup uploaded")
	return nil
}

// Restore downloads the object name. A missing object is reported as
// fs.ErrNotExist.
func (b *Backup) Restore(ctx context.Context, name string) ([]byte, error) {
	rc, err := b.client.Bucket(b.bucket).Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gs://%s/%s: %w", b.bucket, name, fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("Object(%q).NewReader: %w", name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}
	log.Debug().Str("bucket", b.bucket).Str("object", name).Int("bytes", len(data)).Msg("backup downloaded")
	return data, nil
}

func (b *Backup) Close() error {
	return b.client.Close()
}
