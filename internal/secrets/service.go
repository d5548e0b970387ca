// Package secrets implements the burn-after-read secret lifecycle: admission
// of text and file secrets, single-shot retrieval, and TTL policy. All state
// lives in the two backing stores; the service itself is stateless.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/emberlink/ember/internal/storage/types"
	"github.com/emberlink/ember/pkg/utils"
)

const (
	TypeText = "text"
	TypeFile = "file"

	// Requested expiries are clamped into [MinTTL, MaxTTL]; out-of-range
	// values silently become the boundary, never an error.
	MinTTL     int64 = 60
	MaxTTL     int64 = 60 * 60 * 24 * 7
	DefaultTTL int64 = 3600

	idLength = 16
)

var (
	// ErrMissingFields signals a malformed admission: client-side
	// encryption always produces both a ciphertext and an iv.
	ErrMissingFields = errors.New("missing ciphertext or iv")

	// ErrNotFound covers absent, already burned and expired ids alike.
	// Callers cannot distinguish the three cases.
	ErrNotFound = errors.New("secret not found or already burned")

	// ErrBlobMissing is the consistency fault: metadata promised a blob
	// that the file store no longer holds. The secret is unrecoverable.
	ErrBlobMissing = errors.New("stored file is missing")
)

// Record is the metadata entry for one secret, marshaled to JSON and stored
// under the secret id. Records are immutable once written.
type Record struct {
	Type       string `json:"type"`
	Ciphertext string `json:"ciphertext,omitempty"`
	IV         string `json:"iv"`
	Filename   string `json:"filename,omitempty"`
	BlobRef    string `json:"blob_ref,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// RetrievedSecret is the result of a successful burn. Blob is non-nil only
// for file secrets; the caller owns closing it.
type RetrievedSecret struct {
	Record Record
	Blob   io.ReadCloser
}

// Service orchestrates admissions and retrievals across the metadata and
// blob stores. The id generator is injected so tests can substitute a
// deterministic one.
type Service struct {
	meta  types.SecretStore
	blobs types.FileStore
	newID func() string
}

type Option func(*Service)

// WithIDGenerator replaces the default crypto/rand id generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

func NewService(meta types.SecretStore, blobs types.FileStore, opts ...Option) *Service {
	s := &Service{
		meta:  meta,
		blobs: blobs,
		newID: func() string { return utils.RandString(idLength) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClampTTL maps a requested expiry to the effective TTL. A nil expiry means
// the caller did not specify one.
func ClampTTL(expiry *int64) int64 {
	if expiry == nil {
		return DefaultTTL
	}
	if *expiry < MinTTL {
		return MinTTL
	}
	if *expiry > MaxTTL {
		return MaxTTL
	}
	return *expiry
}

// StoreText admits an inline text secret and returns its id.
func (s *Service) StoreText(ctx context.Context, ciphertext, iv string, expiry *int64) (string, error) {
	if ciphertext == "" || iv == "" {
		return "", ErrMissingFields
	}

	ttl := ClampTTL(expiry)
	id := s.newID()

	record := Record{
		Type:       TypeText,
		Ciphertext: ciphertext,
		IV:         iv,
		TTLSeconds: ttl,
	}

	if err := s.putRecord(ctx, id, record, ttl); err != nil {
		return "", err
	}

	return id, nil
}

// StoreFile admits a file secret, streaming the ciphertext body into the
// blob store before the metadata record is written. Writing in that order
// means a retrievable record never points at a blob that does not exist yet.
func (s *Service) StoreFile(ctx context.Context, body io.Reader, iv, filename string, expiry *int64) (string, error) {
	if body == nil || iv == "" {
		return "", ErrMissingFields
	}

	ttl := ClampTTL(expiry)
	id := s.newID()

	if err := s.blobs.StoreBlob(ctx, id, body); err != nil {
		return "", fmt.Errorf("failed to store blob: %w", err)
	}

	record := Record{
		Type:       TypeFile,
		IV:         iv,
		Filename:   filename,
		BlobRef:    id,
		TTLSeconds: ttl,
	}

	if err := s.putRecord(ctx, id, record, ttl); err != nil {
		return "", err
	}

	return id, nil
}

func (s *Service) putRecord(ctx context.Context, id string, record Record, ttl int64) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to serialize secret record: %w", err)
	}
	if err := s.meta.PutSecret(ctx, id, data, ttl); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	return nil
}

// Retrieve burns the secret for id and returns it. The atomic metadata
// consume is the commit point: once it succeeds no other caller can ever
// observe the record again, even if this request fails downstream. For file
// secrets the blob is opened as a stream; deleting it is deferred to
// PurgeBlob since the id is already unreachable.
func (s *Service) Retrieve(ctx context.Context, id string) (*RetrievedSecret, error) {
	data, err := s.meta.ConsumeSecret(ctx, id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("invalid secret record: %w", err)
	}

	if record.Type != TypeFile {
		return &RetrievedSecret{Record: record}, nil
	}

	blob, err := s.blobs.OpenBlob(ctx, record.BlobRef)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			return nil, ErrBlobMissing
		}
		return nil, fmt.Errorf("failed to read blob: %w", err)
	}

	return &RetrievedSecret{Record: record, Blob: blob}, nil
}

// PurgeBlob deletes a consumed secret's blob in the background. Best-effort
// storage reclamation: the metadata consume already made the id dead, so a
// failure here never surfaces to the client.
func (s *Service) PurgeBlob(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.blobs.DeleteBlob(ctx, id); err != nil && !errors.Is(err, types.ErrNotFound) {
			log.Printf("failed to delete blob %s: %v", id, err)
		}
	}()
}
