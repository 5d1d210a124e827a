package rules

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
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store persists booking rules in the shared DynamoDB table.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("rules: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("rules: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

func rulesPK(clinicID string) string { return "CLINIC#" + clinicID + "#RULES" }

// List returns every rule configured for the clinic, enabled or not.
func (s *Store) List(ctx context.Context, clinicID string) ([]Rule, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: rulesPK(clinicID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rules: list: %w", storage.Unavailable(err))
	}
	rules := make([]Rule, 0, len(out.Items))
	for _, item := range out.Items {
		var r Rule
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			return nil, storage.Malformed("booking rule", err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Put validates and saves a rule.
func (s *Store) Put(ctx context.Context, r *Rule) error {
	if r == nil {
		return fmt.Errorf("rules: rule cannot be nil")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("rules: marshal rule: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: rulesPK(r.ClinicID)}
	item["sk"] = &types.AttributeValueMemberS{Value: "RULE#" + r.ID}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("rules: save rule: %w", storage.Unavailable(err))
	}
	s.logger.Info("rules: rule saved", "clinic_id", r.ClinicID, "rule_id", r.ID)
	return nil
}

// Delete removes a rule. Deleting a missing rule is not an error.
func (s *Store) Delete(ctx context.Context, clinicID, ruleID string) error {
	if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: rulesPK(clinicID)},
			"sk": &types.AttributeValueMemberS{Value: "RULE#" + ruleID},
		},
	}); err != nil {
		return fmt.Errorf("rules: delete rule: %w", storage.Unavailable(err))
	}
	return nil
}
