package reminders

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
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// JobStore persists reminder jobs in the shared DynamoDB table.
type JobStore struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

func NewJobStore(client dynamoAPI, tableName string, logger *logging.Logger) *JobStore {
	if client == nil {
		panic("reminders: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("reminders: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &JobStore{client: client, tableName: tableName, logger: logger}
}

func jobsPK(clinicID string) string { return "CLINIC#" + clinicID + "#REMIND" }

// Put saves a job.
func (s *JobStore) Put(ctx context.Context, job *Job) error {
	if job == nil {
		return fmt.Errorf("reminders: job cannot be nil")
	}
	if err := job.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(job)
	if err != nil {
		return fmt.Errorf("reminders: marshal job: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: jobsPK(job.ClinicID)}
	item["sk"] = &types.AttributeValueMemberS{Value: "JOB#" + job.ID}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("reminders: save job: %w", storage.Unavailable(err))
	}
	return nil
}

// Get loads a job.
func (s *JobStore) Get(ctx context.Context, clinicID, jobID string) (*Job, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: jobsPK(clinicID)},
			"sk": &types.AttributeValueMemberS{Value: "JOB#" + jobID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reminders: load job: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("reminders: job %s: %w", jobID, storage.ErrNotFound)
	}
	var j Job
	if err := attributevalue.UnmarshalMap(out.Item, &j); err != nil {
		return nil, storage.Malformed("reminder job", err)
	}
	return &j, nil
}

// ListForAppointment returns the jobs created for an appointment.
func (s *JobStore) ListForAppointment(ctx context.Context, clinicID, appointmentID string) ([]Job, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		FilterExpression:       aws.String("appointmentId = :appt"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: jobsPK(clinicID)},
			":appt": &types.AttributeValueMemberS{Value: appointmentID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("reminders: list jobs: %w", storage.Unavailable(err))
	}
	jobs := make([]Job, 0, len(out.Items))
	for _, item := range out.Items {
		var j Job
		if err := attributevalue.UnmarshalMap(item, &j); err != nil {
			return nil, storage.Malformed("reminder job", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// UpdateStatus records a delivery attempt's outcome.
func (s *JobStore) UpdateStatus(ctx context.Context, clinicID, jobID string, status JobStatus, attempts int, lastError string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: jobsPK(clinicID)},
			"sk": &types.AttributeValueMemberS{Value: "JOB#" + jobID},
		},
		UpdateExpression:    aws.String("SET #status = :status, attempts = :attempts, lastError = :lastError, updatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(sk)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status":    &types.AttributeValueMemberS{Value: string(status)},
			":attempts":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", attempts)},
			":lastError": &types.AttributeValueMemberS{Value: lastError},
			":now":       &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("reminders: update job status: %w", storage.Unavailable(err))
	}
	return nil
}
