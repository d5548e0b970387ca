package gcp

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/emberlink/ember/internal/config"
	storagetypes "github.com/emberlink/ember/internal/storage/types"
	"github.com/emberlink/ember/pkg/utils"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps secret records as documents carrying an expires_at
// timestamp. A Firestore TTL policy on that field reaps expired documents;
// since the policy deletes lazily, reads check expires_at themselves.
type FirestoreStore struct {
	client *firestore.Client
	now    func() time.Time
}

func NewFirestoreStore() (storagetypes.SecretStore, error) {
	ctx := context.Background()
	client, err := firestore.NewClientWithDatabase(ctx, config.GCPProjectID, config.FirestoreDatabase)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreStore{
		client: client,
		now:    time.Now,
	}, nil
}

func (f *FirestoreStore) collection() *firestore.CollectionRef {
	return f.client.Collection(config.FirestoreDatabase)
}

func (f *FirestoreStore) PutSecret(ctx context.Context, id string, data []byte, ttlSeconds int64) error {
	doc := map[string]any{
		"data":       utils.B64E(data),
		"expires_at": f.now().Add(time.Duration(ttlSeconds) * time.Second),
	}

	_, err := f.collection().Doc(id).Set(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to store secret in Firestore: %w", err)
	}

	return nil
}

// ConsumeSecret reads and deletes the document in one transaction so that
// concurrent consumers of the same id serialize on the commit and exactly
// one of them observes the record.
func (f *FirestoreStore) ConsumeSecret(ctx context.Context, id string) ([]byte, error) {
	ref := f.collection().Doc(id)

	var encoded string
	var expired bool
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		encoded = ""
		expired = false

		doc, err := tx.Get(ref)
		if err != nil {
			return err
		}

		docData := doc.Data()
		if expiresAt, ok := docData["expires_at"].(time.Time); ok && !expiresAt.After(f.now()) {
			// expired but not yet reaped by the TTL policy; delete anyway
			expired = true
			return tx.Delete(ref)
		}

		enc, ok := docData["data"].(string)
		if !ok {
			return fmt.Errorf("data field not found")
		}
		encoded = enc

		return tx.Delete(ref)
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, storagetypes.ErrNotFound
		}
		return nil, fmt.Errorf("failed to consume secret from Firestore: %w", err)
	}
	if expired {
		return nil, storagetypes.ErrNotFound
	}

	data, err := utils.B64D(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid data encoding: %w", err)
	}

	return data, nil
}

func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
