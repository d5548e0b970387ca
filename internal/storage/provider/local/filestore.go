package local

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	storagetypes "github.com/emberlink/ember/internal/storage/types"
)

func isValidSecretId(id string) bool {
	return !strings.Contains(id, "/") &&
		!strings.Contains(id, "\\") &&
		!strings.Contains(id, "..") &&
		id != ""
}

// LocalFileStore keeps blob ciphertext as files under <dataDir>/blobs.
type LocalFileStore struct {
	dataDir string
	done    chan struct{}
}

func NewLocalFileStore(dataDir string) (*LocalFileStore, error) {
	blobsDir := filepath.Join(dataDir, "blobs")

	if err := os.MkdirAll(blobsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blobs directory: %w", err)
	}

	log.Printf("Local file store initialized at %s", blobsDir)
	return &LocalFileStore{
		dataDir: blobsDir,
		done:    make(chan struct{}),
	}, nil
}

func (l *LocalFileStore) StoreBlob(ctx context.Context, id string, body io.Reader) error {
	if !isValidSecretId(id) {
		return fmt.Errorf("invalid secret id")
	}

	f, err := os.Create(filepath.Join(l.dataDir, id))
	if err != nil {
		return fmt.Errorf("failed to create blob file: %w", err)
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to write blob file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close blob file: %w", err)
	}

	return nil
}

func (l *LocalFileStore) OpenBlob(ctx context.Context, id string) (io.ReadCloser, error) {
	if !isValidSecretId(id) {
		return nil, fmt.Errorf("invalid secret id")
	}

	f, err := os.Open(filepath.Join(l.dataDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storagetypes.ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob file: %w", err)
	}

	return f, nil
}

func (l *LocalFileStore) DeleteBlob(ctx context.Context, id string) error {
	if !isValidSecretId(id) {
		return fmt.Errorf("invalid secret id")
	}

	err := os.Remove(filepath.Join(l.dataDir, id))
	if err != nil {
		if os.IsNotExist(err) {
			return storagetypes.ErrNotFound
		}
		return fmt.Errorf("failed to delete blob file: %w", err)
	}

	return nil
}

// StartJanitor removes blobs older than maxAge every interval until Close.
// A blob past the maximum secret TTL is necessarily expired or orphaned, so
// age is the only signal needed here.
func (l *LocalFileStore) StartJanitor(interval, maxAge time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := l.sweep(maxAge); err != nil {
					log.Printf("blob janitor sweep failed: %v", err)
				}
			case <-l.done:
				return
			}
		}
	}()
}

func (l *LocalFileStore) sweep(maxAge time.Duration) error {
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(l.dataDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(l.dataDir, entry.Name())); err != nil {
				log.Printf("failed to remove expired blob %s: %v", entry.Name(), err)
			}
		}
	}

	return nil
}

func (l *LocalFileStore) Close() error {
	close(l.done)
	return nil
}
