package schedule

import (
	"context"
	"fmt"

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
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

const (
	skWeekly          = "SCHEDULE"
	skExceptionPrefix = "EXCEPTION#"
)

// Store persists weekly schedules and exceptions in DynamoDB.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a schedule store on the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("schedule: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("schedule: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

func providerPK(clinicID, providerID string) string {
	return fmt.Sprintf("CLINIC#%s#PROVIDER#%s", clinicID, providerID)
}

// GetWeekly loads a provider's weekly schedule. Returns storage.ErrNotFound
// when none has been saved yet.
func (s *Store) GetWeekly(ctx context.Context, clinicID, providerID string) (*Weekly, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: providerPK(clinicID, providerID)},
			"sk": &types.AttributeValueMemberS{Value: skWeekly},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("schedule: load weekly: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("schedule: weekly for provider %s: %w", providerID, storage.ErrNotFound)
	}
	var w Weekly
	if err := attributevalue.UnmarshalMap(out.Item, &w); err != nil {
		return nil, storage.Malformed("weekly schedule", err)
	}
	if err := w.Validate(); err != nil {
		return nil, storage.Malformed("weekly schedule", err)
	}
	return &w, nil
}

// PutWeekly validates and saves a provider's weekly schedule.
func (s *Store) PutWeekly(ctx context.Context, w *Weekly) error {
	if w == nil {
		return fmt.Errorf("schedule: weekly cannot be nil")
	}
	if err := w.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(w)
	if err != nil {
		return fmt.Errorf("schedule: marshal weekly: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: providerPK(w.ClinicID, w.ProviderID)}
	item["sk"] = &types.AttributeValueMemberS{Value: skWeekly}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("schedule: save weekly: %w", storage.Unavailable(err))
	}
	s.logger.Info("schedule: weekly saved", "clinic_id", w.ClinicID, "provider_id", w.ProviderID)
	return nil
}

// PutException validates and saves a date-bound override.
func (s *Store) PutException(ctx context.Context, e *Exception) error {
	if e == nil {
		return fmt.Errorf("schedule: exception cannot be nil")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("schedule: marshal exception: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: providerPK(e.ClinicID, e.ProviderID)}
	item["sk"] = &types.AttributeValueMemberS{Value: skExceptionPrefix + e.Date}

	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("schedule: save exception: %w", storage.Unavailable(err))
	}
	s.logger.Info("schedule: exception saved",
		"clinic_id", e.ClinicID, "provider_id", e.ProviderID, "date", e.Date, "available", e.IsAvailable)
	return nil
}

// DeleteException removes the override for the given date, if any.
func (s *Store) DeleteException(ctx context.Context, clinicID, providerID, date string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: providerPK(clinicID, providerID)},
			"sk": &types.AttributeValueMemberS{Value: skExceptionPrefix + date},
		},
	}); err != nil {
		return fmt.Errorf("schedule: delete exception: %w", storage.Unavailable(err))
	}
	return nil
}

// ListExceptions returns overrides for dates in [fromDate, toDate]
// (inclusive, DateLayout strings), keyed by date.
func (s *Store) ListExceptions(ctx context.Context, clinicID, providerID, fromDate, toDate string) (map[string]Exception, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: providerPK(clinicID, providerID)},
			":lo": &types.AttributeValueMemberS{Value: skExceptionPrefix + fromDate},
			":hi": &types.AttributeValueMemberS{Value: skExceptionPrefix + toDate},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("schedule: list exceptions: %w", storage.Unavailable(err))
	}

	exceptions := make(map[string]Exception, len(out.Items))
	for _, item := range out.Items {
		var e Exception
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			return nil, storage.Malformed("schedule exception", err)
		}
		if err := e.Validate(); err != nil {
			return nil, storage.Malformed("schedule exception", err)
		}
		exceptions[e.Date] = e
	}
	return exceptions, nil
}
