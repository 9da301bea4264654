package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	taskStartedTotal    atomic.Uint64
	offerCompletedTotal atomic.Uint64
	offerFailedTotal    atomic.Uint64
	offerCancelledTotal atomic.Uint64
	creditRefundTotal   atomic.Uint64
	phaseRetryTotal     atomic.Uint64

	jobsReceivedTotal      atomic.Uint64
	jobsCompletedTotal     atomic.Uint64
	jobsFailedTotal        atomic.Uint64
	jobsUnrecoverableTotal atomic.Uint64

	phaseDuration = newHistogram([]float64{250, 500, 1000, 2000, 5000, 10000, 30000, 60000, 120000})
	offerDuration = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
)

// IncTaskStarted increments the started-tasks counter.
func IncTaskStarted() {
	taskStartedTotal.Add(1)
}

// IncOfferCompleted increments the completed-offers counter.
func IncOfferCompleted() {
	offerCompletedTotal.Add(1)
}

// IncOfferFailed increments the failed-offers counter.
func IncOfferFailed() {
	offerFailedTotal.Add(1)
}

// IncOfferCancelled increments the cancelled-offers counter.
func IncOfferCancelled() {
	offerCancelledTotal.Add(1)
}

// IncCreditRefund increments the refunds counter.
func IncCreditRefund() {
	creditRefundTotal.Add(1)
}

// IncPhaseRetry increments the phase-retries counter.
func IncPhaseRetry() {
	phaseRetryTotal.Add(1)
}

// IncJobReceived increments the received queue jobs counter.
func IncJobReceived() {
	jobsReceivedTotal.Add(1)
}

// IncJobCompleted increments the completed queue jobs counter.
func IncJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobFailed increments the failed queue jobs counter.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncJobDeletedUnrecoverable counts malformed messages deleted without
// processing.
func IncJobDeletedUnrecoverable() {
	jobsUnrecoverableTotal.Add(1)
}

// ObservePhaseDurationMs records a phase duration in milliseconds.
func ObservePhaseDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	phaseDuration.Observe(value)
}

// ObserveOfferDurationMs records an offer duration in milliseconds.
func ObserveOfferDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	offerDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "generation_task_started_total", "Total generation tasks started", taskStartedTotal.Load())
	writeCounter(&buf, "generation_offer_completed_total", "Total offers completed", offerCompletedTotal.Load())
	writeCounter(&buf, "generation_offer_failed_total", "Total offers failed", offerFailedTotal.Load())
	writeCounter(&buf, "generation_offer_cancelled_total", "Total offers cancelled", offerCancelledTotal.Load())
	writeCounter(&buf, "generation_credit_refund_total", "Total credit refunds issued", creditRefundTotal.Load())
	writeCounter(&buf, "generation_phase_retry_total", "Total phase retries", phaseRetryTotal.Load())
	writeCounter(&buf, "generation_jobs_received_total", "Total queue jobs received", jobsReceivedTotal.Load())
	writeCounter(&buf, "generation_jobs_completed_total", "Total queue jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "generation_jobs_failed_total", "Total queue jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "generation_jobs_deleted_unrecoverable_total", "Total malformed jobs deleted", jobsUnrecoverableTotal.Load())
	writeHistogram(&buf, "generation_phase_duration_ms", "Phase duration in milliseconds", phaseDuration.Snapshot())
	writeHistogram(&buf, "generation_offer_duration_ms", "Offer duration in milliseconds", offerDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
