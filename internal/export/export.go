// Package export produces CSV extracts of booked appointments and stores
// them in S3.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/bookinglink/bookinglink/internal/appointments"
	"github.com/bookinglink/bookinglink/pkg/logging"
)

// S3API is the subset of the S3 client the exporter uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// AppointmentLister lists a provider's appointments in [from, to).
type AppointmentLister interface {
	ListForProviderRange(ctx context.Context, clinicID, providerID string, from, to time.Time) ([]appointments.Appointment, error)
}

// Request selects what to export.
type Request struct {
	ClinicID    string    `json:"clinicId"`
	ProviderIDs []string  `json:"providerIds"`
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
}

func (r Request) Validate() error {
	if r.ClinicID == "" {
		return fmt.Errorf("export: clinicId required")
	}
	if len(r.ProviderIDs) == 0 {
		return fmt.Errorf("export: at least one providerId required")
	}
	if !r.From.Before(r.To) {
		return fmt.Errorf("export: from must be before to")
	}
	return nil
}

// Result reports where the extract landed.
type Result struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Exporter writes appointment CSVs to S3. An empty bucket disables it.
type Exporter struct {
	s3Client S3API
	bucket   string
	appts    AppointmentLister
	logger   *logging.Logger
}

func NewExporter(s3Client S3API, bucket string, appts AppointmentLister, logger *logging.Logger) *Exporter {
	if appts == nil {
		panic("export: appointment lister cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Exporter{s3Client: s3Client, bucket: bucket, appts: appts, logger: logger}
}

// Enabled reports whether an S3 destination is configured.
func (e *Exporter) Enabled() bool {
	return e != nil && e.bucket != "" && e.s3Client != nil
}

var csvHeader = []string{
	"appointment_id", "provider_id", "patient_id", "appointment_type_id",
	"date", "start_time", "end_time", "status", "recurrence_group_id",
	"reminder_sent", "created_at",
}

// Export lists the selected appointments, renders them as CSV, and
// uploads the file. Returns the object key.
func (e *Exporter) Export(ctx context.Context, req Request) (*Result, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("export: no S3 bucket configured")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("export: write header: %w", err)
	}

	count := 0
	for _, providerID := range req.ProviderIDs {
		appts, err := e.appts.ListForProviderRange(ctx, req.ClinicID, providerID, req.From, req.To)
		if err != nil {
			return nil, err
		}
		for _, a := range appts {
			if err := w.Write(csvRow(a)); err != nil {
				return nil, fmt.Errorf("export: write row: %w", err)
			}
			count++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("export: flush csv: %w", err)
	}

	key := fmt.Sprintf("exports/%s/appointments/%s_%s_%s.csv",
		req.ClinicID,
		req.From.UTC().Format("20060102"),
		req.To.UTC().Format("20060102"),
		uuid.NewString())

	if _, err := e.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	}); err != nil {
		return nil, fmt.Errorf("export: s3 put %s: %w", key, err)
	}

	e.logger.Info("export: appointments exported",
		"clinic_id", req.ClinicID, "key", key, "count", count)
	return &Result{Key: key, Count: count}, nil
}

func csvRow(a appointments.Appointment) []string {
	return []string{
		a.ID,
		a.ProviderID,
		a.PatientID,
		a.TypeID,
		a.Date,
		a.Start.UTC().Format(time.RFC3339),
		a.End.UTC().Format(time.RFC3339),
		string(a.Status),
		a.RecurrenceGroupID,
		fmt.Sprintf("%t", a.ReminderSent),
		a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
