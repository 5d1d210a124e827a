package notify

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

// Contact is the delivery profile for one patient.
type Contact struct {
	ClinicID  string `dynamodbav:"clinicId" json:"clinicId"`
	PatientID string `dynamodbav:"patientId" json:"patientId"`
	Name      string `dynamodbav:"name" json:"name"`
	Email     string `dynamodbav:"email,omitempty" json:"email,omitempty"`
	Phone     string `dynamodbav:"phone,omitempty" json:"phone,omitempty"`
}

// ContactSource resolves a patient's contact profile.
type ContactSource interface {
	PatientContact(ctx context.Context, clinicID, patientID string) (*Contact, error)
}

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Directory stores patient contact profiles in the shared DynamoDB table,
// under the same patient partition the booking engine indexes
// appointments in.
type Directory struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

func NewDirectory(client dynamoAPI, tableName string, logger *logging.Logger) *Directory {
	if client == nil {
		panic("notify: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("notify: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Directory{client: client, tableName: tableName, logger: logger}
}

func contactPK(clinicID, patientID string) string {
	return fmt.Sprintf("CLINIC#%s#PATIENT#%s", clinicID, patientID)
}

// PatientContact loads a patient's contact profile.
func (d *Directory) PatientContact(ctx context.Context, clinicID, patientID string) (*Contact, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: contactPK(clinicID, patientID)},
			"sk": &types.AttributeValueMemberS{Value: "PROFILE"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("notify: load contact: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notify: contact for patient %s: %w", patientID, storage.ErrNotFound)
	}
	var c Contact
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return nil, storage.Malformed("patient contact", err)
	}
	return &c, nil
}

// PutContact saves a patient's contact profile.
func (d *Directory) PutContact(ctx context.Context, c *Contact) error {
	if c == nil {
		return fmt.Errorf("notify: contact cannot be nil")
	}
	if c.ClinicID == "" || c.PatientID == "" {
		return fmt.Errorf("notify: contact clinicId and patientId required")
	}
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("notify: marshal contact: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: contactPK(c.ClinicID, c.PatientID)}
	item["sk"] = &types.AttributeValueMemberS{Value: "PROFILE"}
	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("notify: save contact: %w", storage.Unavailable(err))
	}
	return nil
}

var _ ContactSource = (*Directory)(nil)
