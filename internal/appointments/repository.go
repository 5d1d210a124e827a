package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/bookinglink/bookinglink/internal/storage"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// ErrVersionConflict indicates a calendar CAS write lost a race with a
// concurrent booking or cancellation. Callers reload and retry a bounded
// number of times before surfacing a slot conflict.
var ErrVersionConflict = errors.New("appointments: calendar version conflict")

// ErrInvalidTransition indicates a status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("appointments: invalid status transition")

type dynamoAPI interface {
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Repository persists appointments, appointment types, and provider-day
// calendars in a single DynamoDB table.
type Repository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewRepository builds a repository on the provided DynamoDB client.
func NewRepository(client dynamoAPI, tableName string, logger *logging.Logger) *Repository {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Repository{client: client, tableName: tableName, logger: logger}
}

func providerPK(clinicID, providerID string) string {
	return fmt.Sprintf("CLINIC#%s#PROVIDER#%s", clinicID, providerID)
}

func typesPK(clinicID string) string {
	return fmt.Sprintf("CLINIC#%s#TYPES", clinicID)
}

func apptPointerPK(clinicID, appointmentID string) string {
	return fmt.Sprintf("CLINIC#%s#APPT#%s", clinicID, appointmentID)
}

func groupPK(clinicID, groupID string) string {
	return fmt.Sprintf("CLINIC#%s#RECUR#%s", clinicID, groupID)
}

func patientPK(clinicID, patientID string) string {
	return fmt.Sprintf("CLINIC#%s#PATIENT#%s", clinicID, patientID)
}

func apptSK(start time.Time, appointmentID string) string {
	return fmt.Sprintf("APPT#%s#%s", start.UTC().Format(time.RFC3339), appointmentID)
}

func calendarSK(date string) string {
	return "CAL#" + date
}

// pointer locates an appointment item from its id alone.
type pointer struct {
	PK string `dynamodbav:"apptPk"`
	SK string `dynamodbav:"apptSk"`
}

// groupRef links a recurrence group to one of its appointment items.
type groupRef struct {
	AppointmentID string `dynamodbav:"appointmentId"`
	PK            string `dynamodbav:"apptPk"`
	SK            string `dynamodbav:"apptSk"`
}

// GetType loads an appointment type.
func (r *Repository) GetType(ctx context.Context, clinicID, typeID string) (*Type, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: typesPK(clinicID)},
			"sk": &types.AttributeValueMemberS{Value: "TYPE#" + typeID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: load type: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("appointments: type %s: %w", typeID, storage.ErrNotFound)
	}
	var t Type
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, storage.Malformed("appointment type", err)
	}
	if err := t.Validate(); err != nil {
		return nil, storage.Malformed("appointment type", err)
	}
	return &t, nil
}

// PutType validates and saves an appointment type.
func (r *Repository) PutType(ctx context.Context, t *Type) error {
	if t == nil {
		return fmt.Errorf("appointments: type cannot be nil")
	}
	if err := t.Validate(); err != nil {
		return err
	}
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("appointments: marshal type: %w", err)
	}
	item["pk"] = &types.AttributeValueMemberS{Value: typesPK(t.ClinicID)}
	item["sk"] = &types.AttributeValueMemberS{Value: "TYPE#" + t.ID}
	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("appointments: save type: %w", storage.Unavailable(err))
	}
	return nil
}

// ListTypes returns every appointment type defined for the clinic.
func (r *Repository) ListTypes(ctx context.Context, clinicID string) ([]Type, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: typesPK(clinicID)},
			":prefix": &types.AttributeValueMemberS{Value: "TYPE#"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: list types: %w", storage.Unavailable(err))
	}
	result := make([]Type, 0, len(out.Items))
	for _, item := range out.Items {
		var t Type
		if err := attributevalue.UnmarshalMap(item, &t); err != nil {
			return nil, storage.Malformed("appointment type", err)
		}
		result = append(result, t)
	}
	return result, nil
}

// GetCalendar loads the provider-day calendar. A missing item is a valid
// empty calendar at version zero.
func (r *Repository) GetCalendar(ctx context.Context, clinicID, providerID, date string) (*DayCalendar, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		ConsistentRead: aws.Bool(true),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: providerPK(clinicID, providerID)},
			"sk": &types.AttributeValueMemberS{Value: calendarSK(date)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: load calendar: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return &DayCalendar{ClinicID: clinicID, ProviderID: providerID, Date: date}, nil
	}
	var cal DayCalendar
	if err := attributevalue.UnmarshalMap(out.Item, &cal); err != nil {
		return nil, storage.Malformed("day calendar", err)
	}
	return &cal, nil
}

// CommitBooking atomically appends the entry to the day calendar (guarded
// by the snapshot's version) and creates the appointment document. Exactly
// one of two racing commits against the same snapshot can succeed; the
// loser gets ErrVersionConflict.
func (r *Repository) CommitBooking(ctx context.Context, appt *Appointment, entry CalendarEntry, snapshot *DayCalendar) error {
	if appt == nil || snapshot == nil {
		return fmt.Errorf("appointments: appointment and calendar snapshot required")
	}
	if err := appt.Validate(); err != nil {
		return err
	}

	next := DayCalendar{
		ClinicID:   snapshot.ClinicID,
		ProviderID: snapshot.ProviderID,
		Date:       snapshot.Date,
		Version:    snapshot.Version + 1,
		Entries:    snapshot.WithEntry(entry),
	}

	calItem, err := attributevalue.MarshalMap(&next)
	if err != nil {
		return fmt.Errorf("appointments: marshal calendar: %w", err)
	}
	calItem["pk"] = &types.AttributeValueMemberS{Value: providerPK(appt.ClinicID, appt.ProviderID)}
	calItem["sk"] = &types.AttributeValueMemberS{Value: calendarSK(appt.Date)}

	calPut := &types.Put{
		TableName: aws.String(r.tableName),
		Item:      calItem,
	}
	if snapshot.Version == 0 {
		calPut.ConditionExpression = aws.String("attribute_not_exists(pk)")
	} else {
		calPut.ConditionExpression = aws.String("version = :expected")
		calPut.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", snapshot.Version)},
		}
	}

	apptItem, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return fmt.Errorf("appointments: marshal appointment: %w", err)
	}
	pk := providerPK(appt.ClinicID, appt.ProviderID)
	sk := apptSK(appt.Start, appt.ID)
	apptItem["pk"] = &types.AttributeValueMemberS{Value: pk}
	apptItem["sk"] = &types.AttributeValueMemberS{Value: sk}

	ptrItem, err := attributevalue.MarshalMap(pointer{PK: pk, SK: sk})
	if err != nil {
		return fmt.Errorf("appointments: marshal pointer: %w", err)
	}
	ptrItem["pk"] = &types.AttributeValueMemberS{Value: apptPointerPK(appt.ClinicID, appt.ID)}
	ptrItem["sk"] = &types.AttributeValueMemberS{Value: "PTR"}

	items := []types.TransactWriteItem{
		{Put: calPut},
		{Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                apptItem,
			ConditionExpression: aws.String("attribute_not_exists(sk)"),
		}},
		{Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                ptrItem,
			ConditionExpression: aws.String("attribute_not_exists(pk)"),
		}},
	}

	patRefItem, err := attributevalue.MarshalMap(groupRef{AppointmentID: appt.ID, PK: pk, SK: sk})
	if err != nil {
		return fmt.Errorf("appointments: marshal patient ref: %w", err)
	}
	patRefItem["pk"] = &types.AttributeValueMemberS{Value: patientPK(appt.ClinicID, appt.PatientID)}
	patRefItem["sk"] = &types.AttributeValueMemberS{Value: "APPT#" + appt.Start.UTC().Format(time.RFC3339) + "#" + appt.ID}
	items = append(items, types.TransactWriteItem{Put: &types.Put{
		TableName: aws.String(r.tableName),
		Item:      patRefItem,
	}})

	if appt.RecurrenceGroupID != "" {
		refItem, err := attributevalue.MarshalMap(groupRef{AppointmentID: appt.ID, PK: pk, SK: sk})
		if err != nil {
			return fmt.Errorf("appointments: marshal group ref: %w", err)
		}
		refItem["pk"] = &types.AttributeValueMemberS{Value: groupPK(appt.ClinicID, appt.RecurrenceGroupID)}
		refItem["sk"] = &types.AttributeValueMemberS{Value: "APPT#" + appt.ID}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName: aws.String(r.tableName),
			Item:      refItem,
		}})
	}

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	}); err != nil {
		if isConditionalFailure(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("appointments: commit booking: %w", storage.Unavailable(err))
	}

	r.logger.Info("appointments: booking committed",
		"clinic_id", appt.ClinicID, "provider_id", appt.ProviderID,
		"appointment_id", appt.ID, "start", appt.Start, "calendar_version", next.Version)
	return nil
}

// GetByID resolves an appointment from its id via the pointer item.
func (r *Repository) GetByID(ctx context.Context, clinicID, appointmentID string) (*Appointment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: apptPointerPK(clinicID, appointmentID)},
			"sk": &types.AttributeValueMemberS{Value: "PTR"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: load pointer: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("appointments: appointment %s: %w", appointmentID, storage.ErrNotFound)
	}
	var ptr pointer
	if err := attributevalue.UnmarshalMap(out.Item, &ptr); err != nil {
		return nil, storage.Malformed("appointment pointer", err)
	}
	return r.getByKey(ctx, ptr.PK, ptr.SK)
}

func (r *Repository) getByKey(ctx context.Context, pk, sk string) (*Appointment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: sk},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: load appointment: %w", storage.Unavailable(err))
	}
	if out.Item == nil {
		return nil, fmt.Errorf("appointments: item %s: %w", sk, storage.ErrNotFound)
	}
	var a Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &a); err != nil {
		return nil, storage.Malformed("appointment", err)
	}
	if err := a.Validate(); err != nil {
		return nil, storage.Malformed("appointment", err)
	}
	return &a, nil
}

// ListForProviderRange returns appointments for the provider with start
// times in [from, to), ordered by start.
func (r *Repository) ListForProviderRange(ctx context.Context, clinicID, providerID string, from, to time.Time) ([]Appointment, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: providerPK(clinicID, providerID)},
			":lo": &types.AttributeValueMemberS{Value: "APPT#" + from.UTC().Format(time.RFC3339)},
			":hi": &types.AttributeValueMemberS{Value: "APPT#" + to.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: list range: %w", storage.Unavailable(err))
	}
	appts := make([]Appointment, 0, len(out.Items))
	for _, item := range out.Items {
		var a Appointment
		if err := attributevalue.UnmarshalMap(item, &a); err != nil {
			return nil, storage.Malformed("appointment", err)
		}
		if err := a.Validate(); err != nil {
			return nil, storage.Malformed("appointment", err)
		}
		if a.Start.Before(to) {
			appts = append(appts, a)
		}
	}
	return appts, nil
}

// ListGroup returns all appointments booked under a recurrence group.
func (r *Repository) ListGroup(ctx context.Context, clinicID, groupID string) ([]Appointment, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: groupPK(clinicID, groupID)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: list group: %w", storage.Unavailable(err))
	}
	appts := make([]Appointment, 0, len(out.Items))
	for _, item := range out.Items {
		var ref groupRef
		if err := attributevalue.UnmarshalMap(item, &ref); err != nil {
			return nil, storage.Malformed("recurrence group ref", err)
		}
		a, err := r.getByKey(ctx, ref.PK, ref.SK)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue // weak reference, tolerate
			}
			return nil, err
		}
		appts = append(appts, *a)
	}
	return appts, nil
}

// UpdateStatus applies a staff-driven lifecycle transition. Transitions to
// a terminal status also remove the calendar entry so the slot is freed,
// retrying the calendar CAS a bounded number of times.
func (r *Repository) UpdateStatus(ctx context.Context, appt *Appointment, to Status) error {
	if appt == nil {
		return fmt.Errorf("appointments: appointment cannot be nil")
	}
	if !appt.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	if !to.Terminal() {
		if err := r.updateStatusItem(ctx, appt, to, nil); err != nil {
			return err
		}
		appt.Status = to
		return nil
	}

	const maxAttempts = 3
	for attempt := 1; ; attempt++ {
		cal, err := r.GetCalendar(ctx, appt.ClinicID, appt.ProviderID, appt.Date)
		if err != nil {
			return err
		}
		entries, found := cal.WithoutEntry(appt.ID)
		if !found {
			// Entry already gone (e.g. a completed appointment in the past).
			if err := r.updateStatusItem(ctx, appt, to, nil); err != nil {
				return err
			}
			appt.Status = to
			return nil
		}
		next := DayCalendar{
			ClinicID:   cal.ClinicID,
			ProviderID: cal.ProviderID,
			Date:       cal.Date,
			Version:    cal.Version + 1,
			Entries:    entries,
		}
		err = r.updateStatusItem(ctx, appt, to, &calendarWrite{snapshotVersion: cal.Version, next: next})
		if err == nil {
			appt.Status = to
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= maxAttempts {
			return err
		}
	}
}

type calendarWrite struct {
	snapshotVersion int64
	next            DayCalendar
}

func (r *Repository) updateStatusItem(ctx context.Context, appt *Appointment, to Status, cal *calendarWrite) error {
	pk := providerPK(appt.ClinicID, appt.ProviderID)
	sk := apptSK(appt.Start, appt.ID)
	now := time.Now().UTC().Format(time.RFC3339Nano)

	statusUpdate := &types.Update{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: pk},
			"sk": &types.AttributeValueMemberS{Value: sk},
		},
		UpdateExpression:    aws.String("SET #status = :to, updatedAt = :now"),
		ConditionExpression: aws.String("#status = :from"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":to":   &types.AttributeValueMemberS{Value: string(to)},
			":from": &types.AttributeValueMemberS{Value: string(appt.Status)},
			":now":  &types.AttributeValueMemberS{Value: now},
		},
	}

	items := []types.TransactWriteItem{{Update: statusUpdate}}
	if cal != nil {
		calItem, err := attributevalue.MarshalMap(&cal.next)
		if err != nil {
			return fmt.Errorf("appointments: marshal calendar: %w", err)
		}
		calItem["pk"] = &types.AttributeValueMemberS{Value: pk}
		calItem["sk"] = &types.AttributeValueMemberS{Value: calendarSK(cal.next.Date)}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:           aws.String(r.tableName),
			Item:                calItem,
			ConditionExpression: aws.String("version = :expected"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":expected": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", cal.snapshotVersion)},
			},
		}})
	}

	if _, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	}); err != nil {
		if isConditionalFailure(err) {
			return ErrVersionConflict
		}
		return fmt.Errorf("appointments: update status: %w", storage.Unavailable(err))
	}

	r.logger.Info("appointments: status updated",
		"clinic_id", appt.ClinicID, "appointment_id", appt.ID,
		"from", appt.Status, "to", to)
	return nil
}

// SetReminderSent flips the reminderSent flag once a reminder dispatches.
func (r *Repository) SetReminderSent(ctx context.Context, appt *Appointment) error {
	if appt == nil {
		return fmt.Errorf("appointments: appointment cannot be nil")
	}
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: providerPK(appt.ClinicID, appt.ProviderID)},
			"sk": &types.AttributeValueMemberS{Value: apptSK(appt.Start, appt.ID)},
		},
		UpdateExpression:    aws.String("SET reminderSent = :sent, updatedAt = :now"),
		ConditionExpression: aws.String("attribute_exists(sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sent": &types.AttributeValueMemberBOOL{Value: true},
			":now":  &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("appointments: mark reminder sent: %w", storage.Unavailable(err))
	}
	return nil
}

// CountForPatient counts the patient's active appointments across all
// providers with start times in [from, to). Used by booking-rule
// evaluation. Dangling refs are tolerated as weak references.
func (r *Repository) CountForPatient(ctx context.Context, clinicID, patientID string, from, to time.Time) (int, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("pk = :pk AND sk BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: patientPK(clinicID, patientID)},
			":lo": &types.AttributeValueMemberS{Value: "APPT#" + from.UTC().Format(time.RFC3339)},
			":hi": &types.AttributeValueMemberS{Value: "APPT#" + to.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("appointments: count for patient: %w", storage.Unavailable(err))
	}
	n := 0
	for _, item := range out.Items {
		var ref groupRef
		if err := attributevalue.UnmarshalMap(item, &ref); err != nil {
			return 0, storage.Malformed("patient appointment ref", err)
		}
		a, err := r.getByKey(ctx, ref.PK, ref.SK)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			return 0, err
		}
		if a.Status.Active() && !a.Start.Before(from) && a.Start.Before(to) {
			n++
		}
	}
	return n, nil
}

func isConditionalFailure(err error) bool {
	var txn *types.TransactionCanceledException
	if errors.As(err, &txn) {
		for _, reason := range txn.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return true
			}
		}
		return false
	}
	var cond *types.ConditionalCheckFailedException
	return errors.As(err, &cond)
}
