package gcc

import "github.com/gammazero/deque"

const (
	// ackBitrateWindowMs is the sliding window the estimator averages
	// received bytes over.
	ackBitrateWindowMs = 500
	// ackBitrateMinWindowMs is the minimum span of data required before
	// bitrate() reports a settled estimate; PeekRate ignores this.
	ackBitrateMinWindowMs = 150
)

// AcknowledgedBitrateEstimator smooths throughput observed from received
// (acknowledged) packets into a single bitrate, discarding samples that
// straddle an application-limited period since those don't reflect link
// capacity.
type AcknowledgedBitrateEstimator struct {
	inAlr        bool
	alrEndedAtMs *int64
	samples      deque.Deque[sentBytesSample]
	lastBitrate  *DataRate
}

// NewAcknowledgedBitrateEstimator creates an estimator with default
// windowing.
func NewAcknowledgedBitrateEstimator() *AcknowledgedBitrateEstimator {
	return &AcknowledgedBitrateEstimator{}
}

// IncomingPacketFeedbackVector processes a batch of received packets,
// ordered by receive time (the caller is expected to pass
// TransportPacketsFeedback.SortedByReceiveTime()).
func (e *AcknowledgedBitrateEstimator) IncomingPacketFeedbackVector(feedbacks []PacketResult) {
	if e.inAlr {
		// Throughput measured while application-limited reflects how much
		// the application had to send, not the link's capacity; drop it.
		return
	}
	for _, fb := range feedbacks {
		if !fb.IsReceived() {
			continue
		}
		if e.alrEndedAtMs != nil && fb.SentPacket.SendTime.MS() < *e.alrEndedAtMs {
			continue
		}
		e.samples.PushBack(sentBytesSample{atMs: fb.ReceiveTime.MS(), bytes: fb.SentPacket.Size.Bytes()})
	}
	e.trim()
	e.recompute(ackBitrateMinWindowMs)
}

func (e *AcknowledgedBitrateEstimator) trim() {
	if e.samples.Len() == 0 {
		return
	}
	last := e.samples.Back().atMs
	for e.samples.Len() > 0 && last-e.samples.Front().atMs > ackBitrateWindowMs {
		e.samples.PopFront()
	}
}

func (e *AcknowledgedBitrateEstimator) recompute(minWindowMs int64) {
	if e.samples.Len() < 2 {
		return
	}
	span := e.samples.Back().atMs - e.samples.Front().atMs
	if span < minWindowMs {
		return
	}
	var total int64
	for i := 0; i < e.samples.Len(); i++ {
		total += e.samples.At(i).bytes
	}
	rate := Bytes(total).Over(MillisDelta(span))
	e.lastBitrate = &rate
}

// Bitrate returns the current smoothed estimate, or nil if not enough
// data has accumulated yet.
func (e *AcknowledgedBitrateEstimator) Bitrate() *DataRate {
	return e.lastBitrate
}

// PeekRate returns a best-effort snapshot even when the estimator hasn't
// settled on a confident Bitrate() yet.
func (e *AcknowledgedBitrateEstimator) PeekRate() *DataRate {
	if e.lastBitrate != nil {
		return e.lastBitrate
	}
	if e.samples.Len() < 2 {
		return nil
	}
	span := e.samples.Back().atMs - e.samples.Front().atMs
	if span <= 0 {
		return nil
	}
	var total int64
	for i := 0; i < e.samples.Len(); i++ {
		total += e.samples.At(i).bytes
	}
	rate := Bytes(total).Over(MillisDelta(span))
	return &rate
}

// SetAlr marks whether the sender is currently application-limited.
func (e *AcknowledgedBitrateEstimator) SetAlr(inAlr bool) {
	e.inAlr = inAlr
}

// SetAlrEndedTime records when an application-limited period ended, so
// samples sent before it can be excluded from the smoothing window.
func (e *AcknowledgedBitrateEstimator) SetAlrEndedTime(at Timestamp) {
	ms := at.MS()
	e.alrEndedAtMs = &ms
}
