package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
// All observe methods are nil-safe so wiring stays optional in tests.
type BookingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	slotsGenerated prometheus.Histogram
	commitLatency  prometheus.Histogram
	remindersTotal *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookinglink",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total booking attempts by outcome",
		}, []string{"outcome"}),
		slotsGenerated: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookinglink",
			Subsystem: "availability",
			Name:      "slots_generated",
			Help:      "Slots produced per availability query",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200},
		}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bookinglink",
			Subsystem: "booking",
			Name:      "commit_latency_seconds",
			Help:      "Latency of booking commits",
			Buckets:   prometheus.DefBuckets,
		}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bookinglink",
			Subsystem: "reminders",
			Name:      "jobs_total",
			Help:      "Total reminder jobs by channel and status",
		}, []string{"channel", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.slotsGenerated, m.commitLatency, m.remindersTotal)
	return m
}

// ObserveBooking counts one booking attempt. Outcomes: booked, conflict,
// invalid_slot, rule_violation, error.
func (m *BookingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSlots(count int) {
	if m == nil {
		return
	}
	m.slotsGenerated.Observe(float64(count))
}

func (m *BookingMetrics) ObserveCommitLatency(seconds float64) {
	if m == nil {
		return
	}
	m.commitLatency.Observe(seconds)
}

func (m *BookingMetrics) ObserveReminder(channel, status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(channel, status).Inc()
}
