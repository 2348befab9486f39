package gcc

import (
	"github.com/gammazero/deque"
	"github.com/samber/lo"
)

const (
	// defaultAlrBudgetWindowMs is the sliding window over which sent bytes
	// are accumulated to estimate utilization.
	defaultAlrBudgetWindowMs = 500
	// alrStartUsageRatio: utilization below this enters ALR.
	alrStartUsageRatio = 0.65
	// alrStopUsageRatio: utilization at or above this exits ALR. Higher
	// than the start ratio on purpose, so the detector doesn't flap right
	// at the boundary.
	alrStopUsageRatio = 0.80
)

type sentBytesSample struct {
	atMs  int64
	bytes int64
}

// AlrDetector flags application-limited periods: intervals where the
// sender has less data to send than the estimated link could carry,
// making throughput samples from that period unreliable as a capacity
// signal.
type AlrDetector struct {
	estimatedBitrate DataRate
	window           deque.Deque[sentBytesSample]
	windowMs         int64
	alrStartedAtMs   *int64
}

// NewAlrDetector creates an AlrDetector with the default sliding window.
func NewAlrDetector() *AlrDetector {
	return &AlrDetector{windowMs: defaultAlrBudgetWindowMs}
}

// SetEstimatedBitrate feeds the detector the link's currently estimated
// capacity, against which sent-byte utilization is measured.
func (a *AlrDetector) SetEstimatedBitrate(bps int64) {
	a.estimatedBitrate = BitsPerSec(bps)
}

// OnBytesSent records bytes handed to the transport at nowMs and
// re-evaluates the ALR state.
func (a *AlrDetector) OnBytesSent(bytes int64, nowMs int64) {
	a.window.PushBack(sentBytesSample{atMs: nowMs, bytes: bytes})
	for a.window.Len() > 0 && nowMs-a.window.Front().atMs > a.windowMs {
		a.window.PopFront()
	}
	a.update(nowMs)
}

func (a *AlrDetector) update(nowMs int64) {
	if a.estimatedBitrate.BPS() <= 0 || a.window.Len() == 0 {
		return
	}

	samples := make([]sentBytesSample, a.window.Len())
	for i := 0; i < a.window.Len(); i++ {
		samples[i] = a.window.At(i)
	}
	totalBytes := lo.SumBy(samples, func(s sentBytesSample) int64 { return s.bytes })

	spanMs := nowMs - a.window.Front().atMs
	if spanMs <= 0 {
		spanMs = 1
	}
	sentRate := Bytes(totalBytes).Over(MillisDelta(spanMs))
	usage := float64(sentRate.BPS()) / float64(a.estimatedBitrate.BPS())
	usage = lo.Clamp(usage, 0, 4) // guard against a pathological single-sample spike

	switch {
	case a.alrStartedAtMs == nil && usage < alrStartUsageRatio:
		started := nowMs
		a.alrStartedAtMs = &started
	case a.alrStartedAtMs != nil && usage >= alrStopUsageRatio:
		a.alrStartedAtMs = nil
	}
}

// GetApplicationLimitedRegionStartTime returns the timestamp ALR was
// entered, or nil if the sender is not currently application-limited.
func (a *AlrDetector) GetApplicationLimitedRegionStartTime() *int64 {
	return a.alrStartedAtMs
}

// Reset clears accumulated state, e.g. on a route change.
func (a *AlrDetector) Reset() {
	a.window.Clear()
	a.alrStartedAtMs = nil
}
