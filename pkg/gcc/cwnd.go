package gcc

// Congestion-window sizing constants. minCwnd is two
// full-size packets: below that the pacer can't usefully schedule
// anything.
const (
	minCwndBytes             = 2 * 1500
	defaultAdditionalTimeMs  = 100
	cwndPushbackMinPacingRatio = 0.1
)

// CongestionWindow computes the target-rate-and-RTT-derived send window:
// time_window = the smallest per-report maximum feedback RTT in the
// controller's feedback-RTT window + additional time, data_window =
// target_rate * time_window, floored at minCwndBytes.
type CongestionWindow struct {
	additionalTimeMs int64
	prevWindow       *DataSize
}

// NewCongestionWindow creates a CongestionWindow using the configured
// additional-time padding (RateControlSettings.GetCongestionWindowAdditionalTimeMs).
func NewCongestionWindow(additionalTimeMs int64) *CongestionWindow {
	if additionalTimeMs <= 0 {
		additionalTimeMs = defaultAdditionalTimeMs
	}
	return &CongestionWindow{additionalTimeMs: additionalTimeMs}
}

// Compute derives the window size for the given target rate and the
// smallest of the per-report maximum feedback RTTs in the current
// feedback-RTT window.
func (c *CongestionWindow) Compute(targetRate DataRate, maxFeedbackRtt TimeDelta) DataSize {
	if !maxFeedbackRtt.IsFinite() || maxFeedbackRtt.MS() <= 0 {
		maxFeedbackRtt = MillisDelta(defaultRttMs)
	}
	timeWindow := maxFeedbackRtt.Add(MillisDelta(c.additionalTimeMs))
	window := targetRate.Times(timeWindow)
	if window.Bytes() < minCwndBytes {
		window = Bytes(minCwndBytes)
	}
	if c.prevWindow != nil {
		// Smooth against the previous window so a single RTT spike
		// doesn't whipsaw the pacer's allowed queue size.
		smoothed := Bytes((window.Bytes() + c.prevWindow.Bytes()) / 2)
		window = smoothed
	}
	c.prevWindow = &window
	return window
}

// Reset clears smoothing state, e.g. on a route change.
func (c *CongestionWindow) Reset() {
	c.prevWindow = nil
}

// CongestionWindowPushbackController lowers the reported target bitrate
// when too much data is already outstanding relative to the configured
// window, so the encoder backs off before the pacer's queue grows
// unbounded.
type CongestionWindowPushbackController struct {
	dataWindow       DataSize
	outstandingBytes int64
	pacingQueueBytes int64
	minBitrate       DataRate
}

// NewCongestionWindowPushbackController creates a disabled-by-default
// pushback controller; SetDataWindow must be called to activate it.
func NewCongestionWindowPushbackController() *CongestionWindowPushbackController {
	return &CongestionWindowPushbackController{}
}

// SetMinBitrate installs the floor UpdateTargetBitrate must never scale
// below, mirroring SendSideBandwidthEstimation.GetMinBitrate().
func (c *CongestionWindowPushbackController) SetMinBitrate(min DataRate) {
	c.minBitrate = min
}

// UpdateOutstandingData records how many bytes are currently in flight
// (sent but not yet acknowledged or declared lost).
func (c *CongestionWindowPushbackController) UpdateOutstandingData(bytes int64) {
	c.outstandingBytes = bytes
}

// UpdatePacingQueue records how many bytes are queued in the pacer,
// counted toward the window the same way outstanding data is.
func (c *CongestionWindowPushbackController) UpdatePacingQueue(bytes int64) {
	c.pacingQueueBytes = bytes
}

// SetDataWindow installs the window size to push back against.
func (c *CongestionWindowPushbackController) SetDataWindow(window DataSize) {
	c.dataWindow = window
}

// UpdateTargetBitrate scales bitrate down in proportion to how far
// outstanding-plus-queued data has exceeded the window, never below
// cwndPushbackMinPacingRatio of the input nor below the configured
// minimum bitrate.
func (c *CongestionWindowPushbackController) UpdateTargetBitrate(bitrate DataRate) DataRate {
	if c.dataWindow.Bytes() <= 0 {
		return bitrate
	}
	total := c.outstandingBytes + c.pacingQueueBytes
	if int64(total) <= c.dataWindow.Bytes() {
		return bitrate
	}
	ratio := float64(c.dataWindow.Bytes()) / float64(total)
	if ratio < cwndPushbackMinPacingRatio {
		ratio = cwndPushbackMinPacingRatio
	}
	scaled := ScaleRate(bitrate, ratio)
	if c.minBitrate.BPS() > 0 && scaled.BPS() < c.minBitrate.BPS() {
		scaled = c.minBitrate
	}
	return scaled
}
