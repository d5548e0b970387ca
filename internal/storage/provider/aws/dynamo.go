package aws

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	dynamotypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/emberlink/ember/internal/config"
	storagetypes "github.com/emberlink/ember/internal/storage/types"
	"github.com/emberlink/ember/pkg/utils"
)

// DynamoDBAPI defines the interface for DynamoDB operations we use
type DynamoDBAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore keeps secret records in a table whose native TTL is enabled on
// the expires_at attribute. DynamoDB reaps expired items lazily, so reads
// filter on expires_at themselves.
type DynamoStore struct {
	client DynamoDBAPI
	now    func() time.Time
}

func NewDynamoStore() storagetypes.SecretStore {
	cfg, _ := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(config.AWSRegion))
	return &DynamoStore{
		client: dynamodb.NewFromConfig(cfg),
		now:    time.Now,
	}
}

func (d *DynamoStore) PutSecret(ctx context.Context, id string, data []byte, ttlSeconds int64) error {
	expiresAt := d.now().Unix() + ttlSeconds

	item := map[string]dynamotypes.AttributeValue{
		"secret_id":  &dynamotypes.AttributeValueMemberS{Value: id},
		"data":       &dynamotypes.AttributeValueMemberS{Value: utils.B64E(data)},
		"expires_at": &dynamotypes.AttributeValueMemberN{Value: strconv.FormatInt(expiresAt, 10)},
	}

	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(config.DynamoTable),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}

	return nil
}

// ConsumeSecret deletes the item with ReturnValues=ALL_OLD, which is a
// single atomic get-and-delete: concurrent consumers of the same id race on
// the delete and exactly one receives the old item.
func (d *DynamoStore) ConsumeSecret(ctx context.Context, id string) ([]byte, error) {
	result, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(config.DynamoTable),
		Key: map[string]dynamotypes.AttributeValue{
			"secret_id": &dynamotypes.AttributeValueMemberS{Value: id},
		},
		ReturnValues: dynamotypes.ReturnValueAllOld,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consume secret: %w", err)
	}

	if len(result.Attributes) == 0 {
		return nil, storagetypes.ErrNotFound
	}

	if v, ok := result.Attributes["expires_at"].(*dynamotypes.AttributeValueMemberN); ok {
		expiresAt, err := strconv.ParseInt(v.Value, 10, 64)
		if err != nil || expiresAt <= d.now().Unix() {
			// expired but not yet reaped by DynamoDB
			return nil, storagetypes.ErrNotFound
		}
	}

	if v, ok := result.Attributes["data"].(*dynamotypes.AttributeValueMemberS); ok {
		data, err := utils.B64D(v.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid data encoding: %w", err)
		}
		return data, nil
	}

	return nil, fmt.Errorf("data field not found")
}
