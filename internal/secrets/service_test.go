package secrets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/emberlink/ember/internal/storage/mock"
)

func fixedIDs(ids ...string) func() string {
	i := 0
	return func() string {
		id := ids[i%len(ids)]
		i++
		return id
	}
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestClampTTL(t *testing.T) {
	tests := []struct {
		name   string
		expiry *int64
		want   int64
	}{
		{name: "unspecified", expiry: nil, want: 3600},
		{name: "below minimum", expiry: int64Ptr(5), want: 60},
		{name: "at minimum", expiry: int64Ptr(60), want: 60},
		{name: "in range", expiry: int64Ptr(7200), want: 7200},
		{name: "at maximum", expiry: int64Ptr(604800), want: 604800},
		{name: "above maximum", expiry: int64Ptr(999999999), want: 604800},
		{name: "negative", expiry: int64Ptr(-1), want: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampTTL(tt.expiry); got != tt.want {
				t.Errorf("ClampTTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStoreText_Validation(t *testing.T) {
	tests := []struct {
		name       string
		ciphertext string
		iv         string
	}{
		{name: "missing ciphertext", ciphertext: "", iv: "iv"},
		{name: "missing iv", ciphertext: "ct", iv: ""},
		{name: "missing both", ciphertext: "", iv: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretStore := mock.NewMockSecretStore()
			svc := NewService(secretStore, mock.NewMockFileStore())

			_, err := svc.StoreText(context.Background(), tt.ciphertext, tt.iv, nil)
			if !errors.Is(err, ErrMissingFields) {
				t.Errorf("StoreText() error = %v, want ErrMissingFields", err)
			}
			if secretStore.PutCalls != 0 {
				t.Errorf("StoreText() wrote to store on invalid input, PutCalls = %d", secretStore.PutCalls)
			}
		})
	}
}

func TestStoreText_TTLClamping(t *testing.T) {
	tests := []struct {
		name   string
		expiry *int64
		want   int64
	}{
		{name: "below minimum clamps up", expiry: int64Ptr(5), want: 60},
		{name: "above maximum clamps down", expiry: int64Ptr(999999999), want: 604800},
		{name: "omitted uses default", expiry: nil, want: 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secretStore := mock.NewMockSecretStore()
			svc := NewService(secretStore, mock.NewMockFileStore(), WithIDGenerator(fixedIDs("id1")))

			id, err := svc.StoreText(context.Background(), "ct", "iv", tt.expiry)
			if err != nil {
				t.Fatalf("StoreText() error = %v", err)
			}

			ttl, ok := secretStore.TTLOf(id)
			if !ok {
				t.Fatal("StoreText() did not store a record")
			}
			if ttl != tt.want {
				t.Errorf("stored TTL = %v, want %v", ttl, tt.want)
			}
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	secretStore := mock.NewMockSecretStore()
	svc := NewService(secretStore, mock.NewMockFileStore())

	id, err := svc.StoreText(context.Background(), "ct", "iv", nil)
	if err != nil {
		t.Fatalf("StoreText() error = %v", err)
	}
	if id == "" {
		t.Fatal("StoreText() returned empty id")
	}

	got, err := svc.Retrieve(context.Background(), id)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.Record.Type != TypeText || got.Record.Ciphertext != "ct" || got.Record.IV != "iv" {
		t.Errorf("Retrieve() record = %+v", got.Record)
	}
	if got.Blob != nil {
		t.Error("Retrieve() returned a blob for a text secret")
	}

	if _, err := svc.Retrieve(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Retrieve() error = %v, want ErrNotFound", err)
	}
}

// callRecorder captures cross-store call order for the ordering invariant:
// the blob must exist before the metadata record does.
type callRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *callRecorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

type recordingSecretStore struct {
	*mock.MockSecretStore
	rec *callRecorder
}

func (s *recordingSecretStore) PutSecret(ctx context.Context, id string, data []byte, ttlSeconds int64) error {
	s.rec.add("metadata.put")
	return s.MockSecretStore.PutSecret(ctx, id, data, ttlSeconds)
}

type recordingFileStore struct {
	*mock.MockFileStore
	rec *callRecorder
}

func (s *recordingFileStore) StoreBlob(ctx context.Context, id string, body io.Reader) error {
	s.rec.add("blob.store")
	return s.MockFileStore.StoreBlob(ctx, id, body)
}

func TestStoreFile_BlobWrittenBeforeMetadata(t *testing.T) {
	rec := &callRecorder{}
	secretStore := &recordingSecretStore{MockSecretStore: mock.NewMockSecretStore(), rec: rec}
	fileStore := &recordingFileStore{MockFileStore: mock.NewMockFileStore(), rec: rec}
	svc := NewService(secretStore, fileStore)

	_, err := svc.StoreFile(context.Background(), bytes.NewReader([]byte("blob")), "iv", "f.bin", nil)
	if err != nil {
		t.Fatalf("StoreFile() error = %v", err)
	}

	if len(rec.calls) != 2 || rec.calls[0] != "blob.store" || rec.calls[1] != "metadata.put" {
		t.Errorf("store call order = %v, want [blob.store metadata.put]", rec.calls)
	}
}

func TestStoreFile_BlobFailureSkipsMetadata(t *testing.T) {
	secretStore := mock.NewMockSecretStore()
	fileStore := mock.NewMockFileStore()
	fileStore.StoreErr = errors.New("bucket unavailable")
	svc := NewService(secretStore, fileStore)

	_, err := svc.StoreFile(context.Background(), bytes.NewReader([]byte("blob")), "iv", "f.bin", nil)
	if err == nil {
		t.Fatal("StoreFile() expected error")
	}
	if secretStore.PutCalls != 0 {
		t.Errorf("metadata written despite blob failure, PutCalls = %d", secretStore.PutCalls)
	}
}

func TestFileRoundTrip(t *testing.T) {
	secretStore := mock.NewMockSecretStore()
	fileStore := mock.NewMockFileStore()
	svc := NewService(secretStore, fileStore)

	payload := []byte("encrypted file bytes")
	id, err := svc.StoreFile(context.Background(), bytes.NewReader(payload), "iv-file", "f.bin", nil)
	if err != nil {
		t.Fatalf("StoreFile() error = %v", err)
	}

	got, err := svc.Retrieve(context.Background(), id)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got.Record.Type != TypeFile || got.Record.IV != "iv-file" || got.Record.Filename != "f.bin" {
		t.Errorf("Retrieve() record = %+v", got.Record)
	}
	if got.Record.BlobRef != id {
		t.Errorf("BlobRef = %q, want %q", got.Record.BlobRef, id)
	}

	body, err := io.ReadAll(got.Blob)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	got.Blob.Close()
	if !bytes.Equal(body, payload) {
		t.Errorf("blob = %q, want %q", body, payload)
	}

	if _, err := svc.Retrieve(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Retrieve() error = %v, want ErrNotFound", err)
	}
}

func TestPurgeBlob(t *testing.T) {
	fileStore := mock.NewMockFileStore()
	svc := NewService(mock.NewMockSecretStore(), fileStore)

	id, err := svc.StoreFile(context.Background(), bytes.NewReader([]byte("blob")), "iv", "f.bin", nil)
	if err != nil {
		t.Fatalf("StoreFile() error = %v", err)
	}

	svc.PurgeBlob(id)

	deadline := time.Now().Add(2 * time.Second)
	for fileStore.Has(id) {
		if time.Now().After(deadline) {
			t.Fatal("PurgeBlob() did not delete the blob")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRetrieve_NotFound(t *testing.T) {
	svc := NewService(mock.NewMockSecretStore(), mock.NewMockFileStore())

	if _, err := svc.Retrieve(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Retrieve() error = %v, want ErrNotFound", err)
	}
}

func TestRetrieve_MissingBlobIsConsistencyFault(t *testing.T) {
	secretStore := mock.NewMockSecretStore()
	svc := NewService(secretStore, mock.NewMockFileStore())

	record, _ := json.Marshal(Record{
		Type:       TypeFile,
		IV:         "iv",
		Filename:   "f.bin",
		BlobRef:    "orphaned",
		TTLSeconds: 3600,
	})
	if err := secretStore.PutSecret(context.Background(), "orphaned", record, 3600); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Retrieve(context.Background(), "orphaned")
	if !errors.Is(err, ErrBlobMissing) {
		t.Errorf("Retrieve() error = %v, want ErrBlobMissing", err)
	}
}

func TestRetrieve_CorruptRecord(t *testing.T) {
	secretStore := mock.NewMockSecretStore()
	svc := NewService(secretStore, mock.NewMockFileStore())

	if err := secretStore.PutSecret(context.Background(), "bad", []byte("{not json"), 3600); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Retrieve(context.Background(), "bad")
	if err == nil {
		t.Fatal("Retrieve() expected error for corrupt record")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("corrupt record reported as not found")
	}
}

func TestConcurrentRetrieval_SingleWinner(t *testing.T) {
	svc := NewService(mock.NewMockSecretStore(), mock.NewMockFileStore())

	id, err := svc.StoreText(context.Background(), "ct", "iv", nil)
	if err != nil {
		t.Fatalf("StoreText() error = %v", err)
	}

	const callers = 32
	var wg sync.WaitGroup
	var successes, notFounds int64
	var mu sync.Mutex

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Retrieve(context.Background(), id)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrNotFound):
				notFounds++
			default:
				t.Errorf("Retrieve() unexpected error = %v", err)
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if notFounds != callers-1 {
		t.Errorf("notFounds = %d, want %d", notFounds, callers-1)
	}
}
