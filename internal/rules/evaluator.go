package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/bookinglink/bookinglink/pkg/logging"
)

// Booking describes the appointment a patient is attempting to book.
type Booking struct {
	ClinicID   string
	PatientID  string
	ProviderID string
	TypeID     string
	Start      time.Time
	Location   *time.Location
}

// Violation names the rule a booking attempt breaks.
type Violation struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Reason   string `json:"reason"`
}

// RuleSource lists the clinic's configured rules.
type RuleSource interface {
	List(ctx context.Context, clinicID string) ([]Rule, error)
}

// PatientCounter counts a patient's active appointments with start times
// in [from, to).
type PatientCounter interface {
	CountForPatient(ctx context.Context, clinicID, patientID string, from, to time.Time) (int, error)
}

// Evaluator checks a booking attempt against the clinic's rules.
type Evaluator struct {
	rules   RuleSource
	counter PatientCounter
	logger  *logging.Logger
}

func NewEvaluator(rules RuleSource, counter PatientCounter, logger *logging.Logger) *Evaluator {
	if rules == nil || counter == nil {
		panic("rules: rule source and patient counter required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Evaluator{rules: rules, counter: counter, logger: logger}
}

// Check evaluates every applicable rule. A non-nil Violation means the
// booking must be rejected; the error return is reserved for store
// failures.
func (e *Evaluator) Check(ctx context.Context, b Booking, now time.Time) (*Violation, error) {
	all, err := e.rules.List(ctx, b.ClinicID)
	if err != nil {
		return nil, err
	}
	loc := b.Location
	if loc == nil {
		loc = time.UTC
	}

	for _, r := range all {
		if !r.AppliesTo(b.TypeID, b.ProviderID) {
			continue
		}
		if v := checkAdvance(r, b.Start, now); v != nil {
			return v, nil
		}
		v, err := e.checkCaps(ctx, r, b, loc)
		if err != nil {
			return nil, err
		}
		if v != nil {
			return v, nil
		}
	}
	return nil, nil
}

func checkAdvance(r Rule, start, now time.Time) *Violation {
	if r.MinAdvanceMinutes > 0 && start.Sub(now) < time.Duration(r.MinAdvanceMinutes)*time.Minute {
		return &Violation{
			RuleID:   r.ID,
			RuleName: r.Name,
			Reason:   fmt.Sprintf("bookings require at least %d minutes notice", r.MinAdvanceMinutes),
		}
	}
	if r.MaxAdvanceDays > 0 && start.After(now.AddDate(0, 0, r.MaxAdvanceDays)) {
		return &Violation{
			RuleID:   r.ID,
			RuleName: r.Name,
			Reason:   fmt.Sprintf("bookings cannot be made more than %d days ahead", r.MaxAdvanceDays),
		}
	}
	return nil
}

func (e *Evaluator) checkCaps(ctx context.Context, r Rule, b Booking, loc *time.Location) (*Violation, error) {
	type capWindow struct {
		cap      int
		from, to time.Time
		label    string
	}
	windows := []capWindow{}
	if r.MaxPerPatientPerDay > 0 {
		from, to := dayWindow(b.Start, loc)
		windows = append(windows, capWindow{r.MaxPerPatientPerDay, from, to, "day"})
	}
	if r.MaxPerPatientPerWeek > 0 {
		from, to := weekWindow(b.Start, loc)
		windows = append(windows, capWindow{r.MaxPerPatientPerWeek, from, to, "week"})
	}
	if r.MaxPerPatientPerMonth > 0 {
		from, to := monthWindow(b.Start, loc)
		windows = append(windows, capWindow{r.MaxPerPatientPerMonth, from, to, "month"})
	}

	for _, w := range windows {
		n, err := e.counter.CountForPatient(ctx, b.ClinicID, b.PatientID, w.from, w.to)
		if err != nil {
			return nil, err
		}
		if n >= w.cap {
			return &Violation{
				RuleID:   r.ID,
				RuleName: r.Name,
				Reason:   fmt.Sprintf("patient already has %d appointment(s) this %s (limit %d)", n, w.label, w.cap),
			}, nil
		}
	}
	return nil, nil
}

// dayWindow is the clinic-local calendar day containing t.
func dayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	from := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}

// weekWindow is the Monday-start clinic-local week containing t.
func weekWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	offset := (int(lt.Weekday()) + 6) % 7
	from := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -offset)
	return from, from.AddDate(0, 0, 7)
}

// monthWindow is the clinic-local calendar month containing t.
func monthWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	lt := t.In(loc)
	from := time.Date(lt.Year(), lt.Month(), 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 1, 0)
}
