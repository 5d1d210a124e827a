// Package compliance provides the immutable audit trail for booking
// activity.
package compliance

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// AuditEventType identifies the kind of booking activity recorded.
type AuditEventType string

const (
	EventAppointmentBooked    AuditEventType = "booking.appointment_booked"
	EventAppointmentCancelled AuditEventType = "booking.appointment_cancelled"
	EventStatusChanged        AuditEventType = "booking.status_changed"
	EventSeriesBooked         AuditEventType = "booking.series_booked"
	EventSeriesCancelled      AuditEventType = "booking.series_cancelled"
	EventScheduleUpdated      AuditEventType = "schedule.updated"
	EventExceptionUpdated     AuditEventType = "schedule.exception_updated"
	EventSettingsUpdated      AuditEventType = "clinic.settings_updated"
	EventRuleUpdated          AuditEventType = "rules.updated"
	EventDataExported         AuditEventType = "export.completed"
)

// AuditEvent is one immutable audit record.
type AuditEvent struct {
	PK            string            `dynamodbav:"pk" json:"-"`
	SK            string            `dynamodbav:"sk" json:"-"`
	ID            string            `dynamodbav:"id" json:"id"`
	EventType     AuditEventType    `dynamodbav:"event_type" json:"event_type"`
	ClinicID      string            `dynamodbav:"clinic_id" json:"clinic_id"`
	ActorID       string            `dynamodbav:"actor_id,omitempty" json:"actor_id,omitempty"`
	AppointmentID string            `dynamodbav:"appointment_id,omitempty" json:"appointment_id,omitempty"`
	ProviderID    string            `dynamodbav:"provider_id,omitempty" json:"provider_id,omitempty"`
	PatientID     string            `dynamodbav:"patient_id,omitempty" json:"patient_id,omitempty"`
	Details       map[string]string `dynamodbav:"details,omitempty" json:"details,omitempty"`
	CreatedAt     time.Time         `dynamodbav:"created_at" json:"created_at"`
}

type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// AuditService writes and queries audit events. Writes are append-only;
// nothing in the API mutates or deletes a recorded event.
type AuditService struct {
	db     dynamoAPI
	table  string
	logger *logging.Logger
}

func NewAuditService(db dynamoAPI, table string, logger *logging.Logger) *AuditService {
	if db == nil {
		panic("compliance: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("compliance: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuditService{db: db, table: table, logger: logger}
}

func auditPK(clinicID string) string { return "CLINIC#" + clinicID + "#AUDIT" }

func auditSK(at time.Time, id string) string {
	return fmt.Sprintf("EVENT#%s#%s", at.UTC().Format(time.RFC3339Nano), id)
}

// LogEvent appends one audit record.
func (s *AuditService) LogEvent(ctx context.Context, event AuditEvent) error {
	if event.ClinicID == "" {
		return fmt.Errorf("compliance: clinic id required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	event.PK = auditPK(event.ClinicID)
	event.SK = auditSK(event.CreatedAt, event.ID)

	item, err := attributevalue.MarshalMap(event)
	if err != nil {
		return fmt.Errorf("compliance: marshal audit event: %w", err)
	}
	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
	})
	if err != nil {
		return storage.Unavailable(fmt.Errorf("compliance: log audit event: %w", err))
	}
	return nil
}

// QueryEvents returns events for a clinic in [start, end], newest first.
// A zero limit defaults to 100.
func (s *AuditService) QueryEvents(ctx context.Context, clinicID string, start, end time.Time, limit int32) ([]AuditEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	out, err := s.db.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":   &types.AttributeValueMemberS{Value: auditPK(clinicID)},
			":from": &types.AttributeValueMemberS{Value: "EVENT#" + start.UTC().Format(time.RFC3339Nano)},
			":to":   &types.AttributeValueMemberS{Value: "EVENT#" + end.UTC().Format(time.RFC3339Nano) + "~"},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(limit),
	})
	if err != nil {
		return nil, storage.Unavailable(fmt.Errorf("compliance: query audit events: %w", err))
	}

	events := make([]AuditEvent, 0, len(out.Items))
	for _, item := range out.Items {
		var e AuditEvent
		if err := attributevalue.UnmarshalMap(item, &e); err != nil {
			s.logger.Warn("compliance: skipping malformed audit item", "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, nil
}
