package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store persists clinic settings in DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a settings store on the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("clinic: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("clinic: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

func settingsPK(clinicID string) string {
	return "CLINIC#" + clinicID
}

// Get loads clinic settings, falling back to DefaultSettings when none have
// been saved yet. Malformed documents are rejected, not defaulted.
func (s *Store) Get(ctx context.Context, clinicID string) (*Settings, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: settingsPK(clinicID)},
			"sk": &types.AttributeValueMemberS{Value: "SETTINGS"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("clinic: load settings: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return DefaultSettings(clinicID), nil
	}
	var settings Settings
	if err := attributevalue.UnmarshalMap(out.Item, &settings); err != nil {
		return nil, storage.Malformed("clinic settings", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, storage.Malformed("clinic settings", err)
	}
	return &settings, nil
}

// Put validates and saves clinic settings.
func (s *Store) Put(ctx context.Context, settings *Settings) error {
	if settings == nil {
		return fmt.Errorf("clinic: settings cannot be nil")
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	settings.UpdatedAt = time.Now().UTC()
	item, err := attributevalue.MarshalMap(settings)
	if err != nil {
		return fmt.Errorf("clinic: marshal settings: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: settingsPK(settings.ClinicID)}
	item["sk"] = &types.AttributeValueMemberS{Value: "SETTINGS"}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("clinic: save settings: %w", storage.Unavailable(err))
	}
	s.logger.Info("clinic: settings saved", "clinic_id", settings.ClinicID, "timezone", settings.Timezone)
	return nil
}
