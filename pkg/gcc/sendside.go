package gcc

import "math"

// Loss-fraction thresholds expressed the way the source does: loss is
// tracked as a fraction-of-256 (fractionLossQ8) so a single byte can carry
// it over the wire, and decisions are made against float thresholds.
const (
	lowLossThreshold  = 0.02
	highLossThreshold = 0.1

	lossBasedDecreaseFactor  = 0.5
	lossBasedIncreaseFactor  = 1.05
	lossBasedIncreaseMinGapMs = 200

	defaultRttMs = 200

	// feedbackOnlyRembGraceMs: REMB reports received after the estimator
	// has already seen transport-feedback-based acks are ignored.
	feedbackOnlyRembGraceMs = 0
)

// CurrentBweEstimate is the snapshot returned by CurrentEstimate.
type CurrentBweEstimate struct {
	Bitrate       DataRate
	FractionLossQ8 int
	RoundTripTime TimeDelta
}

// SendSideBandwidthEstimation fuses loss feedback, RTT, REMB, the
// acknowledged rate and the delay-based cap into one bitrate via AIMD:
// additive/multiplicative increase while loss is low, hold under moderate
// loss, and multiplicative decrease proportional to the observed loss
// fraction once it crosses highLossThreshold.
type SendSideBandwidthEstimation struct {
	bitrate    DataRate
	minBitrate DataRate
	maxBitrate DataRate

	fractionLossQ8    int
	lossPacketsTotal  int64
	lossPacketsLost   int64

	rtt             TimeDelta
	propagationRtt  TimeDelta

	delayBasedCap    DataRate
	receiverEstimate DataRate
	hasReceiverEstimate bool
	acknowledgedRate *DataRate

	lastUpdateMs        int64
	lastIncreaseMs      int64
	usingFeedbackOnly   bool
	firstPacketSent     bool
}

// NewSendSideBandwidthEstimation creates an estimator with no configured
// bitrate; SetBitrates must be called before CurrentEstimate is
// meaningful.
func NewSendSideBandwidthEstimation() *SendSideBandwidthEstimation {
	return &SendSideBandwidthEstimation{
		delayBasedCap: PlusInfinityRate(),
		rtt:           MillisDelta(defaultRttMs),
	}
}

// SetSendBitrate force-sets the current estimate, clamped to the
// configured min/max, e.g. in response to an explicit application
// request or a probe result. Clears the delay-based cap for one cycle
// so the forced rate isn't immediately re-clamped by a stale cap.
func (s *SendSideBandwidthEstimation) SetSendBitrate(rate DataRate, atTimeMs int64) {
	s.delayBasedCap = PlusInfinityRate()
	s.bitrate = s.clamp(rate)
	s.lastUpdateMs = atTimeMs
}

// SetBitrates installs starting/min/max bitrates. A positive start value
// overrides the current estimate.
func (s *SendSideBandwidthEstimation) SetBitrates(minRate, startRate, maxRate DataRate, atTimeMs int64) {
	if minRate.BPS() > 0 {
		s.minBitrate = minRate
	}
	if maxRate.BPS() > 0 {
		s.maxBitrate = maxRate
	}
	if startRate.BPS() > 0 {
		s.bitrate = s.clamp(startRate)
		s.lastUpdateMs = atTimeMs
	}
}

// SetMinMaxBitrate updates the clamp bounds without touching the current
// estimate beyond re-clamping it.
func (s *SendSideBandwidthEstimation) SetMinMaxBitrate(minRate, maxRate DataRate) {
	s.minBitrate = minRate
	s.maxBitrate = maxRate
	s.bitrate = s.clamp(s.bitrate)
}

// GetMinBitrate returns the configured floor.
func (s *SendSideBandwidthEstimation) GetMinBitrate() DataRate { return s.minBitrate }

// CurrentEstimate returns the fused bitrate plus the loss/RTT figures that
// produced it.
func (s *SendSideBandwidthEstimation) CurrentEstimate() CurrentBweEstimate {
	return CurrentBweEstimate{Bitrate: s.bitrate, FractionLossQ8: s.fractionLossQ8, RoundTripTime: s.rtt}
}

// GetEstimatedLinkCapacity is the best available ceiling for how much the
// link could carry: the minimum of the delay-based cap and any REMB
// report, ignoring loss-driven adjustments.
func (s *SendSideBandwidthEstimation) GetEstimatedLinkCapacity() DataRate {
	cap := s.delayBasedCap
	if s.hasReceiverEstimate {
		cap = MinRate(cap, s.receiverEstimate)
	}
	return cap
}

// UpdateReceiverEstimate records a REMB-style receiver-side estimate. Once
// the estimator is operating purely off transport-wide feedback
// (usingFeedbackOnly), REMB reports are accepted for bookkeeping but no
// longer clamp the estimate.
func (s *SendSideBandwidthEstimation) UpdateReceiverEstimate(receiveTimeMs int64, bandwidth DataRate) {
	s.receiverEstimate = bandwidth
	s.hasReceiverEstimate = true
	if s.usingFeedbackOnly {
		return
	}
	s.bitrate = s.clamp(MinRate(s.bitrate, bandwidth))
}

// UsingFeedbackOnly reports whether transport-wide feedback has started
// flowing, meaning REMB reports are no longer an authoritative bandwidth
// source and a caller observing this should treat further REMB events as
// a contract violation rather than routing them here.
func (s *SendSideBandwidthEstimation) UsingFeedbackOnly() bool { return s.usingFeedbackOnly }

// UpdateRtt records the latest (possibly smoothed) round-trip time
// estimate.
func (s *SendSideBandwidthEstimation) UpdateRtt(rtt TimeDelta) {
	if rtt.IsFinite() && rtt.MS() > 0 {
		s.rtt = rtt
	}
}

// UpdatePropagationRtt records the one-way-inferred propagation RTT,
// distinct from UpdateRtt's (possibly queuing-inflated) transport RTT.
func (s *SendSideBandwidthEstimation) UpdatePropagationRtt(propagationRtt TimeDelta) {
	s.propagationRtt = propagationRtt
}

// OnSentPacket marks that at least one packet has left the pacer, which
// gates whether loss-based increases are allowed to run yet.
func (s *SendSideBandwidthEstimation) OnSentPacket(sentPacket SentPacket) {
	_ = sentPacket
	s.firstPacketSent = true
}

// UpdatePacketsLost folds a loss report into the running loss ratio used
// by the AIMD decrease/hold/increase decision.
func (s *SendSideBandwidthEstimation) UpdatePacketsLost(packetsLost, numberOfPackets int64, atTimeMs int64) {
	if numberOfPackets <= 0 {
		return
	}
	s.lossPacketsLost += packetsLost
	s.lossPacketsTotal += numberOfPackets
	fraction := float64(packetsLost) / float64(numberOfPackets)
	if fraction < 0 {
		fraction = 0
	}
	s.fractionLossQ8 = int(math.Round(fraction * 256))
	s.applyLossBasedControl(fraction, atTimeMs)
}

// SetAcknowledgedRate feeds the fused acknowledged-rate signal used as the
// increase anchor so the estimator doesn't ramp past what feedback has
// actually confirmed arrived.
func (s *SendSideBandwidthEstimation) SetAcknowledgedRate(rate *DataRate) {
	s.acknowledgedRate = rate
}

// IncomingPacketFeedbackVector currently only marks that transport-wide
// feedback is flowing, switching UpdateReceiverEstimate into its
// feedback-only, non-clamping mode.
func (s *SendSideBandwidthEstimation) IncomingPacketFeedbackVector(report TransportPacketsFeedback) {
	if len(report.PacketFeedbacks) > 0 {
		s.usingFeedbackOnly = true
	}
}

// UpdateDelayBasedEstimate applies the delay-based controller's cap: the
// fused bitrate never exceeds what the delay-based side believes the
// queue can tolerate.
func (s *SendSideBandwidthEstimation) UpdateDelayBasedEstimate(atTimeMs int64, delayBasedRate DataRate) {
	s.delayBasedCap = delayBasedRate
	if delayBasedRate.BPS() > 0 && s.bitrate.BPS() > delayBasedRate.BPS() {
		s.bitrate = s.clamp(delayBasedRate)
		s.lastUpdateMs = atTimeMs
	}
}

// UpdateEstimate re-runs the loss-based AIMD step for the current time
// without a fresh loss report, used by the periodic process tick to apply
// increases that accrued purely from the passage of time.
func (s *SendSideBandwidthEstimation) UpdateEstimate(atTimeMs int64) {
	if !s.firstPacketSent {
		return
	}
	s.applyLossBasedControl(float64(s.fractionLossQ8)/256.0, atTimeMs)
}

// OnRouteChange resets loss bookkeeping, the REMB and acknowledged-rate
// inputs and the delay-based cap; the configured min/max bitrate are left
// to the caller to reset via SetBitrates/SetMinMaxBitrate.
func (s *SendSideBandwidthEstimation) OnRouteChange() {
	s.fractionLossQ8 = 0
	s.lossPacketsTotal = 0
	s.lossPacketsLost = 0
	s.usingFeedbackOnly = false
	s.hasReceiverEstimate = false
	s.acknowledgedRate = nil
	s.delayBasedCap = PlusInfinityRate()
}

func (s *SendSideBandwidthEstimation) applyLossBasedControl(lossFraction float64, atTimeMs int64) {
	switch {
	case lossFraction > highLossThreshold:
		s.bitrate = s.clamp(ScaleRate(s.bitrate, 1-lossBasedDecreaseFactor*lossFraction))
		s.lastUpdateMs = atTimeMs
	case lossFraction < lowLossThreshold:
		if !s.firstPacketSent {
			return
		}
		if atTimeMs-s.lastIncreaseMs < lossBasedIncreaseMinGapMs {
			return
		}
		candidate := ScaleRate(s.bitrate, lossBasedIncreaseFactor)
		if s.acknowledgedRate != nil {
			cap := ScaleRate(*s.acknowledgedRate, 1.5)
			candidate = MinRate(candidate, cap)
		}
		s.bitrate = s.clamp(candidate)
		s.lastIncreaseMs = atTimeMs
		s.lastUpdateMs = atTimeMs
	default:
		// Between the thresholds: hold.
	}
}

func (s *SendSideBandwidthEstimation) clamp(rate DataRate) DataRate {
	if s.minBitrate.BPS() > 0 && rate.BPS() < s.minBitrate.BPS() {
		rate = s.minBitrate
	}
	if s.maxBitrate.BPS() > 0 && s.maxBitrate.IsFinite() && rate.BPS() > s.maxBitrate.BPS() {
		rate = s.maxBitrate
	}
	if s.delayBasedCap.IsFinite() && rate.BPS() > s.delayBasedCap.BPS() {
		rate = s.delayBasedCap
	}
	return rate
}
