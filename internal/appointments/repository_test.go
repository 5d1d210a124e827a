package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDynamo struct {
	getItems   map[string]map[string]types.AttributeValue
	queryItems []map[string]types.AttributeValue
	txIn       *dynamodb.TransactWriteItemsInput
	txErr      error
	queryIn    *dynamodb.QueryInput
}

func itemKey(key map[string]types.AttributeValue) string {
	pk := key["pk"].(*types.AttributeValueMemberS).Value
	sk := key["sk"].(*types.AttributeValueMemberS).Value
	return pk + "|" + sk
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{Item: f.getItems[itemKey(in.Key)]}, nil
}

func (f *fakeDynamo) PutItem(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) UpdateItem(_ context.Context, _ *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryIn = in
	return &dynamodb.QueryOutput{Items: f.queryItems}, nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.txIn = in
	if f.txErr != nil {
		return nil, f.txErr
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func testAppointment() *Appointment {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	return &Appointment{
		ID: "appt-1", ClinicID: "clinic-1", PatientID: "pat-1", ProviderID: "prov-1", TypeID: "type-1",
		Date: "2026-03-02", Start: start, End: start.Add(30 * time.Minute),
		Status: StatusScheduled,
	}
}

func TestGetCalendarMissingIsEmptyVersionZero(t *testing.T) {
	repo := NewRepository(&fakeDynamo{}, "bookinglink", nil)

	cal, err := repo.GetCalendar(context.Background(), "clinic-1", "prov-1", "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, int64(0), cal.Version)
	assert.Empty(t, cal.Entries)
	assert.Equal(t, "prov-1", cal.ProviderID)
}

func TestCommitBookingFirstWriteGuardsCreation(t *testing.T) {
	db := &fakeDynamo{}
	repo := NewRepository(db, "bookinglink", nil)
	appt := testAppointment()

	snapshot := &DayCalendar{ClinicID: "clinic-1", ProviderID: "prov-1", Date: "2026-03-02"}
	entry := CalendarEntry{AppointmentID: appt.ID, Start: appt.Start, End: appt.End}

	require.NoError(t, repo.CommitBooking(context.Background(), appt, entry, snapshot))
	require.NotNil(t, db.txIn)

	calPut := db.txIn.TransactItems[0].Put
	assert.Equal(t, "attribute_not_exists(pk)", *calPut.ConditionExpression)

	var written DayCalendar
	require.NoError(t, attributevalue.UnmarshalMap(calPut.Item, &written))
	assert.Equal(t, int64(1), written.Version)
	require.Len(t, written.Entries, 1)
	assert.Equal(t, "appt-1", written.Entries[0].AppointmentID)
}

func TestCommitBookingVersionedWriteChecksSnapshot(t *testing.T) {
	db := &fakeDynamo{}
	repo := NewRepository(db, "bookinglink", nil)
	appt := testAppointment()

	snapshot := &DayCalendar{ClinicID: "clinic-1", ProviderID: "prov-1", Date: "2026-03-02", Version: 4}
	require.NoError(t, repo.CommitBooking(context.Background(), appt, CalendarEntry{AppointmentID: appt.ID}, snapshot))

	calPut := db.txIn.TransactItems[0].Put
	assert.Equal(t, "version = :expected", *calPut.ConditionExpression)
	expected := calPut.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN)
	assert.Equal(t, "4", expected.Value)
}

func TestCommitBookingConditionFailureIsVersionConflict(t *testing.T) {
	code := "ConditionalCheckFailed"
	db := &fakeDynamo{txErr: &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &code}},
	}}
	repo := NewRepository(db, "bookinglink", nil)

	err := repo.CommitBooking(context.Background(), testAppointment(), CalendarEntry{}, &DayCalendar{Date: "2026-03-02"})
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestCommitBookingOtherCancellationIsNotConflict(t *testing.T) {
	code := "TransactionConflict"
	db := &fakeDynamo{txErr: &types.TransactionCanceledException{
		CancellationReasons: []types.CancellationReason{{Code: &code}},
	}}
	repo := NewRepository(db, "bookinglink", nil)

	err := repo.CommitBooking(context.Background(), testAppointment(), CalendarEntry{}, &DayCalendar{Date: "2026-03-02"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrVersionConflict))
}

func TestCommitBookingRecurrenceAddsGroupRef(t *testing.T) {
	db := &fakeDynamo{}
	repo := NewRepository(db, "bookinglink", nil)
	appt := testAppointment()
	appt.RecurrenceGroupID = "group-1"

	require.NoError(t, repo.CommitBooking(context.Background(), appt, CalendarEntry{AppointmentID: appt.ID}, &DayCalendar{Date: "2026-03-02"}))

	// calendar + appointment + pointer + patient ref + group ref
	require.Len(t, db.txIn.TransactItems, 5)
	groupItem := db.txIn.TransactItems[4].Put.Item
	pk := groupItem["pk"].(*types.AttributeValueMemberS).Value
	assert.Equal(t, "CLINIC#clinic-1#RECUR#group-1", pk)
}

func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	repo := NewRepository(&fakeDynamo{}, "bookinglink", nil)
	appt := testAppointment()
	appt.Status = StatusCancelled

	err := repo.UpdateStatus(context.Background(), appt, StatusConfirmed)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusCancelled, appt.Status, "status unchanged on failure")
}

func TestUpdateStatusTerminalRemovesCalendarEntry(t *testing.T) {
	appt := testAppointment()
	cal := DayCalendar{
		ClinicID: appt.ClinicID, ProviderID: appt.ProviderID, Date: appt.Date, Version: 2,
		Entries: []CalendarEntry{{AppointmentID: appt.ID, Start: appt.Start, End: appt.End}},
	}
	calItem, err := attributevalue.MarshalMap(&cal)
	require.NoError(t, err)
	calItem["pk"] = &types.AttributeValueMemberS{Value: providerPK(appt.ClinicID, appt.ProviderID)}
	calItem["sk"] = &types.AttributeValueMemberS{Value: calendarSK(appt.Date)}

	db := &fakeDynamo{getItems: map[string]map[string]types.AttributeValue{
		providerPK(appt.ClinicID, appt.ProviderID) + "|" + calendarSK(appt.Date): calItem,
	}}
	repo := NewRepository(db, "bookinglink", nil)

	require.NoError(t, repo.UpdateStatus(context.Background(), appt, StatusCancelled))
	assert.Equal(t, StatusCancelled, appt.Status)

	require.NotNil(t, db.txIn)
	require.Len(t, db.txIn.TransactItems, 2, "status update plus calendar rewrite")

	var written DayCalendar
	require.NoError(t, attributevalue.UnmarshalMap(db.txIn.TransactItems[1].Put.Item, &written))
	assert.Equal(t, int64(3), written.Version)
	assert.Empty(t, written.Entries)
}

func TestListTypesQueriesTypePrefix(t *testing.T) {
	item, err := attributevalue.MarshalMap(Type{
		ID: "type-1", ClinicID: "clinic-1", Name: "Consultation", DurationMinutes: 30,
	})
	require.NoError(t, err)

	db := &fakeDynamo{queryItems: []map[string]types.AttributeValue{item}}
	repo := NewRepository(db, "bookinglink", nil)

	got, err := repo.ListTypes(context.Background(), "clinic-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Consultation", got[0].Name)

	require.NotNil(t, db.queryIn)
	prefix := db.queryIn.ExpressionAttributeValues[":prefix"].(*types.AttributeValueMemberS)
	assert.Equal(t, "TYPE#", prefix.Value)
}
