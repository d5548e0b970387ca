package storage

import (
	"fmt"
	"log"
	"time"

	"github.com/emberlink/ember/internal/config"
	"github.com/emberlink/ember/internal/storage/provider/aws"
	"github.com/emberlink/ember/internal/storage/provider/gcp"
	"github.com/emberlink/ember/internal/storage/provider/local"
	"github.com/emberlink/ember/internal/storage/types"
)

const (
	janitorInterval = 5 * time.Minute
	blobMaxAge      = 7 * 24 * time.Hour
)

// Initialize selects the storage backend pair from the loaded configuration:
// AWS when DynamoDB+S3 are configured, GCP when Firestore+GCS are, otherwise
// a local SQLite+filesystem pair under DataDir. Cloud backends rely on
// platform expiry (DynamoDB TTL, Firestore TTL policies, bucket lifecycle
// rules); the local pair runs its own janitors.
func Initialize() (types.SecretStore, types.FileStore, error) {
	if config.UsesAWS {
		log.Println("Initializing AWS storage providers (DynamoDB and S3)")
		return aws.NewDynamoStore(), aws.NewS3Store(), nil
	}

	if config.UsesGCP {
		log.Println("Initializing GCP storage providers (Firestore and GCS)")
		secretStore, err := gcp.NewFirestoreStore()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize Firestore: %w", err)
		}
		fileStore, err := gcp.NewGCSStore()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize GCS: %w", err)
		}
		return secretStore, fileStore, nil
	}

	log.Printf("Initializing local storage providers (SQLite and filesystem) in %s", config.DataDir)
	secretStore, err := local.NewSQLiteStore(config.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}
	fileStore, err := local.NewLocalFileStore(config.DataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize local file store: %w", err)
	}

	secretStore.StartJanitor(janitorInterval)
	fileStore.StartJanitor(janitorInterval, blobMaxAge)

	return secretStore, fileStore, nil
}
