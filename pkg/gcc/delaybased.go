package gcc

import "math"

// Overuse detector tuning, adapted from the classic GCC adaptive-threshold
// detector: the threshold itself drifts toward the magnitude of recent
// deviations so the detector tolerates a noisy path without losing
// sensitivity on a clean one.
const (
	burstThresholdMs          = 5
	maxAdaptOffsetMs          = 15.0
	overusingTimeThresholdMs  = 100
	initialOveruseThresholdMs = 12.5
	minOveruseThresholdMs     = 6.0
	maxOveruseThresholdMs     = 600.0
	kUp                       = 0.01
	kDown                     = 0.00018

	delayAIMDBeta            = 0.85
	delayIncreaseFactorPerSec = 1.08
	delayMaxIncomingRatio    = 1.5

	expectedBwePeriodMs = 3000
)

// OveruseState classifies the queuing-delay trend.
type OveruseState int

const (
	BweNormal OveruseState = iota
	BweUnderusing
	BweOverusing
)

// packetGroup accumulates packets sent close together in time (within
// burstThresholdMs of each other) into one inter-arrival sample.
type packetGroup struct {
	firstSend    Timestamp
	lastSend     Timestamp
	firstArrival Timestamp
	lastArrival  Timestamp
	size         DataSize
	complete     bool
}

// kalmanTrend is a scalar Kalman filter tracking the slope of queuing
// delay growth, with its measurement-noise variance adapted online from
// the residual so it downweights a suddenly noisy path instead of
// overreacting to it.
type kalmanTrend struct {
	slope       float64
	estimateVar float64
	processVar  float64
	noiseVar    float64
}

func newKalmanTrend() *kalmanTrend {
	return &kalmanTrend{estimateVar: 0.1, processVar: 1e-3, noiseVar: 10.0}
}

func (k *kalmanTrend) update(delayMs float64) float64 {
	k.estimateVar += k.processVar
	gain := k.estimateVar / (k.estimateVar + k.noiseVar)
	residual := delayMs - k.slope
	k.slope += gain * residual
	k.estimateVar *= 1 - gain
	k.noiseVar = 0.99*k.noiseVar + 0.01*residual*residual
	if k.noiseVar < 1 {
		k.noiseVar = 1
	}
	return k.slope
}

func (k *kalmanTrend) reset() { *k = *newKalmanTrend() }

// overuseDetector turns a smoothed delay-gradient sample into one of
// {Normal, Overusing, Underusing} via an adaptive threshold.
type overuseDetector struct {
	threshold        float64
	state            OveruseState
	timeOverThreshMs int64
	overuseStreak    int
	prevOffset       float64
}

func newOveruseDetector() *overuseDetector {
	return &overuseDetector{threshold: initialOveruseThresholdMs}
}

func (d *overuseDetector) detect(offsetMs float64, tsDeltaMs int64) OveruseState {
	if tsDeltaMs <= 0 {
		tsDeltaMs = 1
	}
	switch {
	case offsetMs > d.threshold:
		d.timeOverThreshMs += tsDeltaMs
		d.overuseStreak++
		if d.timeOverThreshMs > overusingTimeThresholdMs && d.overuseStreak > 1 && offsetMs >= d.prevOffset {
			d.state = BweOverusing
		}
	case offsetMs < -d.threshold:
		d.state = BweUnderusing
		d.timeOverThreshMs = 0
		d.overuseStreak = 0
	default:
		d.state = BweNormal
		d.timeOverThreshMs = 0
		d.overuseStreak = 0
	}
	d.prevOffset = offsetMs
	d.updateThreshold(offsetMs, tsDeltaMs)
	return d.state
}

func (d *overuseDetector) updateThreshold(offsetMs float64, tsDeltaMs int64) {
	abs := math.Abs(offsetMs)
	if abs > maxAdaptOffsetMs {
		abs = maxAdaptOffsetMs
	}
	k := kDown
	if abs > d.threshold {
		k = kUp
	}
	delta := float64(tsDeltaMs)
	if delta > 100 {
		delta = 100
	}
	d.threshold += delta * k * (abs - d.threshold)
	if d.threshold < minOveruseThresholdMs {
		d.threshold = minOveruseThresholdMs
	}
	if d.threshold > maxOveruseThresholdMs {
		d.threshold = maxOveruseThresholdMs
	}
}

func (d *overuseDetector) reset() { *d = *newOveruseDetector() }

// rateState is the AIMD state driving target-bitrate adjustments from the
// overuse signal.
type rateState int

const (
	rateHold rateState = iota
	rateIncrease
	rateDecrease
)

// DelayBasedBweResult is what IncomingPacketFeedbackVector returns.
type DelayBasedBweResult struct {
	Updated              bool
	Probe                bool
	TargetBitrate        DataRate
	RecoveredFromOveruse bool
	BackoffInAlr         bool
}

// DelayBasedBwe detects queuing-delay growth from inter-arrival timing and
// converts it into a target rate via an AIMD controller.
type DelayBasedBwe struct {
	predictor NetworkStatePredictor

	group         packetGroup
	haveGroup     bool
	prevGroup     packetGroup
	prevGroupSeen bool
	kalman        *kalmanTrend
	detector      *overuseDetector

	rateState   rateState
	prevOveruse OveruseState
	rate        DataRate
	minRate     DataRate
	lastUpdateMs int64

	rttMs int64
}

// NewDelayBasedBwe creates a DelayBasedBwe. predictor may be nil.
func NewDelayBasedBwe(config KeyValueConfig, predictor NetworkStatePredictor) *DelayBasedBwe {
	_ = config
	return &DelayBasedBwe{
		predictor: predictor,
		kalman:    newKalmanTrend(),
		detector:  newOveruseDetector(),
	}
}

// SetStartBitrate seeds the controlled rate before any feedback arrives.
func (d *DelayBasedBwe) SetStartBitrate(rate DataRate) { d.rate = rate }

// SetMinBitrate sets the floor the AIMD controller will not decrease
// below.
func (d *DelayBasedBwe) SetMinBitrate(rate DataRate) { d.minRate = rate }

// OnRttUpdate records the latest finite RTT. Neither the delay estimator
// nor GetExpectedBwePeriod reads it.
func (d *DelayBasedBwe) OnRttUpdate(rtt TimeDelta) {
	if rtt.IsFinite() {
		d.rttMs = rtt.MS()
	}
}

// GetExpectedBwePeriod returns how often the host should expect a fresh
// estimate, used to populate TargetTransferRate.NetworkEstimate.BWEPeriod.
func (d *DelayBasedBwe) GetExpectedBwePeriod() TimeDelta {
	return MillisDelta(expectedBwePeriodMs)
}

// IncomingPacketFeedbackVector runs the full delay-based pipeline over one
// feedback batch.
func (d *DelayBasedBwe) IncomingPacketFeedbackVector(
	report TransportPacketsFeedback,
	acknowledgedBitrate *DataRate,
	probeBitrate *DataRate,
	networkEstimate *NetworkStateEstimate,
	alrInProgress bool,
) DelayBasedBweResult {
	state := d.prevOveruse
	anyGroupCompleted := false

	for _, pr := range report.ReceivedWithSendInfo() {
		completed, offsetMs, tsDeltaMs := d.addToGroup(pr)
		if !completed {
			continue
		}
		anyGroupCompleted = true
		trend := d.kalman.update(offsetMs)
		if d.predictor != nil {
			trend = float64(d.predictor.Update(pr.SentPacket.SendTime.MS(), pr.ReceiveTime.MS(), int64(trend)))
		}
		state = d.detector.detect(trend, tsDeltaMs)
	}

	if networkEstimate != nil && networkEstimate.Bandwidth.BPS() > 0 {
		d.rate = MinRate(d.rate, networkEstimate.Bandwidth)
	}

	if !anyGroupCompleted {
		return DelayBasedBweResult{}
	}

	result := DelayBasedBweResult{Updated: true}

	if probeBitrate != nil {
		d.rate = *probeBitrate
		result.Probe = true
		d.rateState = rateHold
		d.prevOveruse = state
		result.TargetBitrate = d.rate
		d.lastUpdateMs = report.FeedbackTime.MS()
		return result
	}

	prevRateState := d.rateState
	d.transition(state)

	incomingRate := d.rate
	if acknowledgedBitrate != nil {
		incomingRate = *acknowledgedBitrate
	}

	switch d.rateState {
	case rateDecrease:
		d.rate = ScaleRate(incomingRate, delayAIMDBeta)
		result.BackoffInAlr = alrInProgress
	case rateIncrease:
		elapsedMs := report.FeedbackTime.MS() - d.lastUpdateMs
		if d.lastUpdateMs == 0 {
			elapsedMs = 0
		}
		if elapsedMs > 1000 {
			elapsedMs = 1000
		}
		if elapsedMs > 0 {
			factor := math.Pow(delayIncreaseFactorPerSec, float64(elapsedMs)/1000.0)
			d.rate = ScaleRate(d.rate, factor)
		}
		if incomingRate.BPS() > 0 {
			cap := ScaleRate(incomingRate, delayMaxIncomingRatio)
			d.rate = MinRate(d.rate, cap)
		}
	case rateHold:
		// no change
	}

	if d.minRate.BPS() > 0 && d.rate.BPS() < d.minRate.BPS() {
		d.rate = d.minRate
	}

	if prevRateState == rateDecrease && d.rateState == rateHold {
		result.RecoveredFromOveruse = true
	}

	d.prevOveruse = state
	d.lastUpdateMs = report.FeedbackTime.MS()
	result.TargetBitrate = d.rate
	return result
}

// transition applies the GCC state-transition table:
//
//	Signal     | Hold     | Increase | Decrease
//	Overusing  | Decrease | Decrease | (stay)
//	Normal     | Increase | (stay)   | Hold
//	Underusing | (stay)   | Hold     | Hold
func (d *DelayBasedBwe) transition(signal OveruseState) {
	switch d.rateState {
	case rateHold:
		switch signal {
		case BweOverusing:
			d.rateState = rateDecrease
		case BweNormal:
			d.rateState = rateIncrease
		}
	case rateIncrease:
		switch signal {
		case BweOverusing:
			d.rateState = rateDecrease
		case BweUnderusing:
			d.rateState = rateHold
		}
	case rateDecrease:
		switch signal {
		case BweNormal, BweUnderusing:
			d.rateState = rateHold
		}
	}
}

// addToGroup folds pr into the current packet group, returning
// (completed, delayOffsetMs, tsDeltaMs) once a group boundary closes:
// completed is true when this packet started a new group and the
// just-closed group has an earlier closed group to compare against (the
// first boundary only records the closed group), at which point
// offsetMs/tsDeltaMs describe the just-closed group relative to the one
// before it.
func (d *DelayBasedBwe) addToGroup(pr PacketResult) (bool, float64, int64) {
	sendMs := pr.SentPacket.SendTime.MS()
	arrivalMs := pr.ReceiveTime.MS()

	if !d.haveGroup {
		d.group = packetGroup{firstSend: pr.SentPacket.SendTime, lastSend: pr.SentPacket.SendTime, firstArrival: pr.ReceiveTime, lastArrival: pr.ReceiveTime, size: pr.SentPacket.Size}
		d.haveGroup = true
		return false, 0, 0
	}

	if sendMs-d.group.lastSend.MS() <= burstThresholdMs {
		d.group.lastSend = pr.SentPacket.SendTime
		d.group.lastArrival = pr.ReceiveTime
		d.group.size = AddSize(d.group.size, pr.SentPacket.Size)
		return false, 0, 0
	}

	closed := d.group
	d.group = packetGroup{firstSend: pr.SentPacket.SendTime, lastSend: pr.SentPacket.SendTime, firstArrival: pr.ReceiveTime, lastArrival: pr.ReceiveTime, size: pr.SentPacket.Size}

	if !d.prevGroupSeen {
		d.prevGroup = closed
		d.prevGroupSeen = true
		return false, 0, 0
	}

	sendDeltaMs := closed.firstSend.MS() - d.prevGroup.firstSend.MS()
	arrivalDeltaMs := closed.firstArrival.MS() - d.prevGroup.firstArrival.MS()
	d.prevGroup = closed
	_ = arrivalMs
	return true, float64(arrivalDeltaMs - sendDeltaMs), arrivalDeltaMs
}

// Reset clears all delay-estimation and rate-control state, e.g. on a
// route change.
func (d *DelayBasedBwe) Reset() {
	d.haveGroup = false
	d.prevGroupSeen = false
	d.kalman.reset()
	d.detector.reset()
	d.rateState = rateHold
	d.prevOveruse = BweNormal
	d.lastUpdateMs = 0
}
