package gcc

import (
	"errors"
	"log/slog"

	"github.com/gammazero/deque"
)

// ErrMissingStartingRate is returned by NewNetworkController when the
// initial constraints don't specify a starting bitrate: every other field
// of TargetRateConstraints has a sane "no opinion" default (nil means
// unbounded/unset), but the controller has no sender-reported history to
// fall back to for a seed rate.
var ErrMissingStartingRate = errors.New("gcc: Constraints.Starting is required")

const (
	maxFeedbackRttSamples = 32

	defaultPacingFactor       = 2.5
	defaultTargetChangeEpsilonBPS = 1

	// minTargetRateUpdateIntervalMs bounds how often a new
	// TargetTransferRate is emitted absent a significant change, so a
	// quiet link doesn't starve the pacer of refreshed NetworkEstimate.BWEPeriod hints.
	minTargetRateUpdateIntervalMs = 1000

	// lossUpdateIntervalMs paces the packet-feedback-only branch's
	// accumulated loss-ratio flush to the loss-based estimator.
	lossUpdateIntervalMs = 1000
)

// NetworkController is the single entry point fusing all nine
// sub-estimators into bitrate, pacer, congestion-window and probe-cluster
// decisions. It is event-driven, synchronous and single-threaded: callers
// serialize all On*/Get* calls themselves, the same non-blocking
// single-goroutine contract the buffer package's bounded queues rely on.
type NetworkController struct {
	log *slog.Logger

	rateControlSettings RateControlSettings
	safeReset           safeResetOnRouteChange
	probeRateFallback   bool
	packetFeedbackOnly  bool

	delayBased      *DelayBasedBwe
	sendSide        *SendSideBandwidthEstimation
	ackBitrate      *AcknowledgedBitrateEstimator
	probeBitrate    *ProbeBitrateEstimator
	probeController *ProbeController
	alrDetector     *AlrDetector
	cwnd            *CongestionWindow
	cwndPushback    *CongestionWindowPushbackController

	networkEstimator NetworkStateEstimator

	networkAvailable bool

	feedbackRtts   deque.Deque[int64]
	maxFeedbackRtt TimeDelta

	expectedPackets  int64
	lostPackets      int64
	nextLossUpdateMs int64

	pacingFactor             float64
	maxPaddingRate           DataRate
	minTotalAllocatedBitrate DataRate

	wasInAlr bool

	lastTarget       *TargetTransferRate
	lastTargetAtMs   int64
	lastRawTarget    DataRate
	lastProcessAtMs  int64
	outstandingBytes int64
	lastAckedRate    *DataRate

	pendingConstraints *TargetRateConstraints
}

// NewNetworkController creates a NetworkController seeded with the given
// constraints. config may be nil (treated as EmptyKeyValueConfig).
// stateEstimator and statePredictor are optional, borrowed collaborators;
// either may be nil.
func NewNetworkController(
	config KeyValueConfig,
	constraints TargetRateConstraints,
	stateEstimator NetworkStateEstimator,
	statePredictor NetworkStatePredictor,
	log *slog.Logger,
) (*NetworkController, error) {
	if constraints.Starting == nil {
		return nil, ErrMissingStartingRate
	}
	if config == nil {
		config = EmptyKeyValueConfig{}
	}
	if log == nil {
		log = slog.Default()
	}

	rcs := ParseRateControlSettingsFromKeyValueConfig(config)
	nc := &NetworkController{
		log:                  log,
		rateControlSettings:  rcs,
		safeReset:            parseSafeResetOnRouteChange(config),
		probeRateFallback:    probeRateFallbackEnabled(config),
		packetFeedbackOnly:   packetFeedbackOnlyEnabled(config),
		delayBased:           NewDelayBasedBwe(config, statePredictor),
		sendSide:             NewSendSideBandwidthEstimation(),
		ackBitrate:           NewAcknowledgedBitrateEstimator(),
		probeBitrate:         NewProbeBitrateEstimator(),
		probeController:      NewProbeController(config),
		alrDetector:          NewAlrDetector(),
		cwnd:                 NewCongestionWindow(rcs.GetCongestionWindowAdditionalTimeMs()),
		cwndPushback:         NewCongestionWindowPushbackController(),
		networkEstimator:     stateEstimator,
		networkAvailable:     true,
		pacingFactor:         defaultPacingFactor,
		maxPaddingRate:       ZeroRate(),
	}
	nc.pendingConstraints = &constraints
	return nc, nil
}

// ResetConstraints installs new min/starting/max bitrates across every
// sub-component that clamps against them, returning any probe clusters the
// new starting rate triggers.
func (nc *NetworkController) ResetConstraints(c TargetRateConstraints) []ProbeClusterConfig {
	minRate := minBitrateFloor()
	if c.Min != nil && c.Min.BPS() > minRate.BPS() {
		minRate = *c.Min
	}
	maxRate := PlusInfinityRate()
	if c.Max != nil {
		maxRate = *c.Max
	}
	if maxRate.BPS() < minRate.BPS() {
		nc.log.Warn("max bitrate smaller than min bitrate", "minBps", minRate.BPS(), "maxBps", maxRate.BPS())
		maxRate = minRate
	}
	var startBps int64
	if c.Starting != nil {
		startBps = c.Starting.BPS()
	}
	if startBps > 0 && startBps < minRate.BPS() {
		nc.log.Warn("start bitrate smaller than min bitrate", "minBps", minRate.BPS(), "startBps", startBps)
		startBps = minRate.BPS()
	}

	nc.sendSide.SetBitrates(minRate, ZeroRate(), maxRate, c.AtTime.MS())
	if startBps > 0 {
		nc.sendSide.SetSendBitrate(BitsPerSec(startBps), c.AtTime.MS())
	}
	nc.delayBased.SetMinBitrate(minRate)
	nc.cwndPushback.SetMinBitrate(minRate)
	if startBps > 0 {
		nc.delayBased.SetStartBitrate(BitsPerSec(startBps))
	}
	return nc.probeController.SetBitrates(minRate.BPS(), startBps, maxRate.BPS(), c.AtTime.MS())
}

// ClampConstraints folds new min/max bounds in without touching the
// current estimate's starting point, used when only the ceiling/floor
// changes (e.g. OnTargetRateConstraints after startup).
func (nc *NetworkController) ClampConstraints(c TargetRateConstraints) {
	minRate := ZeroRate()
	if c.Min != nil {
		minRate = *c.Min
	}
	maxRate := PlusInfinityRate()
	if c.Max != nil {
		maxRate = *c.Max
	}
	nc.sendSide.SetMinMaxBitrate(minRate, maxRate)
	nc.delayBased.SetMinBitrate(minRate)
	nc.cwndPushback.SetMinBitrate(minRate)
	nc.probeController.SetMaxBitrate(maxRate.BPS())
}

// OnNetworkAvailability toggles whether the network path is usable.
func (nc *NetworkController) OnNetworkAvailability(msg NetworkAvailability) NetworkControlUpdate {
	nc.networkAvailable = msg.Available
	update := NetworkControlUpdate{ProbeClusterConfigs: nc.probeController.OnNetworkAvailability(msg)}
	return update
}

// OnNetworkRouteChange resets every sub-component tied to the old path's
// statistics and reseeds constraints for the new one.
func (nc *NetworkController) OnNetworkRouteChange(msg NetworkRouteChange) NetworkControlUpdate {
	constraints := msg.Constraints
	if nc.safeReset.enabled && nc.safeReset.useAcked && nc.lastAckedRate != nil && constraints.Starting != nil {
		clamped := MinRate(*constraints.Starting, *nc.lastAckedRate)
		constraints.Starting = &clamped
	}

	nc.delayBased.Reset()
	nc.sendSide.OnRouteChange()
	nc.ackBitrate = NewAcknowledgedBitrateEstimator()
	nc.probeBitrate = NewProbeBitrateEstimator()
	nc.alrDetector.Reset()
	nc.cwnd.Reset()
	nc.feedbackRtts.Clear()
	nc.maxFeedbackRtt = TimeDelta{}
	nc.lastAckedRate = nil
	nc.expectedPackets = 0
	nc.lostPackets = 0
	nc.nextLossUpdateMs = 0
	nc.probeController.Reset(msg.AtTime.MS())
	if nc.networkEstimator != nil {
		nc.networkEstimator.OnRouteChange(msg)
	}
	nc.pendingConstraints = nil
	probes := nc.ResetConstraints(constraints)
	update := nc.maybeTriggerOnNetworkChanged(msg.AtTime, true)
	update.ProbeClusterConfigs = append(update.ProbeClusterConfigs, probes...)
	return update
}

// OnProcessInterval drives the periodic logic: applying the initial
// constraints deferred since construction, probe cooldown/periodic-ALR
// checks, and a loss-based re-evaluation so increases accrue even absent
// fresh feedback.
func (nc *NetworkController) OnProcessInterval(msg ProcessInterval) NetworkControlUpdate {
	nowMs := msg.AtTime.MS()
	if msg.PacerQueueBytes != nil {
		nc.cwndPushback.UpdatePacingQueue(msg.PacerQueueBytes.Bytes())
	}

	var deferredProbes []ProbeClusterConfig
	if nc.pendingConstraints != nil {
		deferredProbes = nc.ResetConstraints(*nc.pendingConstraints)
		nc.pendingConstraints = nil
	}

	nc.refreshAlrLinkage(nowMs)

	nc.sendSide.UpdateEstimate(nowMs)
	probes := nc.probeController.Process(nowMs)
	probes = append(deferredProbes, probes...)
	nc.lastProcessAtMs = nowMs
	update := nc.maybeTriggerOnNetworkChanged(msg.AtTime, false)
	update.ProbeClusterConfigs = append(update.ProbeClusterConfigs, probes...)
	return update
}

// OnRemoteBitrateReport folds a REMB-style receiver estimate into the
// loss-based estimator. Once transport-wide packet feedback has started
// flowing the sender is in packet-feedback-only mode and a REMB report is
// a contract violation: it is logged and dropped rather than applied.
func (nc *NetworkController) OnRemoteBitrateReport(msg RemoteBitrateReport) NetworkControlUpdate {
	if nc.sendSide.UsingFeedbackOnly() {
		nc.log.Error("REMB report received while in packet-feedback-only mode", "bandwidthBps", msg.Bandwidth.BPS())
		return NetworkControlUpdate{}
	}
	nc.sendSide.UpdateReceiverEstimate(msg.ReceiveTime.MS(), msg.Bandwidth)
	return nc.maybeTriggerOnNetworkChanged(msg.ReceiveTime, false)
}

// OnRoundTripTimeUpdate records an RTT sample.
func (nc *NetworkController) OnRoundTripTimeUpdate(msg RoundTripTimeUpdate) NetworkControlUpdate {
	nc.sendSide.UpdateRtt(msg.RoundTripTime)
	nc.delayBased.OnRttUpdate(msg.RoundTripTime)
	if !msg.Smoothed {
		nc.sendSide.UpdatePropagationRtt(msg.RoundTripTime)
	}
	return NetworkControlUpdate{}
}

// OnSentPacket tracks outstanding data and feeds the ALR detector.
func (nc *NetworkController) OnSentPacket(msg SentPacket) NetworkControlUpdate {
	if !nc.sendSide.firstPacketSent {
		nc.sendSide.UpdatePropagationRtt(ZeroDelta())
	}
	nc.sendSide.OnSentPacket(msg)
	nc.alrDetector.OnBytesSent(msg.Size.Bytes(), msg.SendTime.MS())
	nc.outstandingBytes = msg.DataInFlight.Bytes()
	nc.cwndPushback.UpdateOutstandingData(nc.outstandingBytes)
	return NetworkControlUpdate{}
}

// OnStreamsConfig installs allocation-layer policy: pacing factor, padding
// rate caps and whether the allocator is explicitly requesting ALR
// probing.
func (nc *NetworkController) OnStreamsConfig(msg StreamsConfig) NetworkControlUpdate {
	if msg.PacingFactor != nil {
		nc.pacingFactor = *msg.PacingFactor
	}
	if msg.MaxPaddingRate != nil {
		nc.maxPaddingRate = *msg.MaxPaddingRate
	}
	if msg.MinTotalAllocatedBitrate != nil {
		nc.minTotalAllocatedBitrate = *msg.MinTotalAllocatedBitrate
	}

	var probes []ProbeClusterConfig
	if msg.MaxTotalAllocatedBitrate != nil && nc.rateControlSettings.TriggerProbeOnMaxAllocatedBitrateChange() {
		probes = append(probes, nc.probeController.OnMaxTotalAllocatedBitrate(msg.MaxTotalAllocatedBitrate.BPS(), msg.AtTime.MS())...)
	}
	if msg.RequestsALRProbing != nil {
		nc.probeController.EnablePeriodicAlrProbing(*msg.RequestsALRProbing)
	}
	if probes == nil {
		return NetworkControlUpdate{}
	}
	return NetworkControlUpdate{ProbeClusterConfigs: probes}
}

// OnTargetRateConstraints applies a mid-session constraint change (e.g.
// the application capped the max bitrate).
func (nc *NetworkController) OnTargetRateConstraints(msg TargetRateConstraints) NetworkControlUpdate {
	nc.ClampConstraints(msg)
	return nc.maybeTriggerOnNetworkChanged(msg.AtTime, true)
}

// OnTransportLossReport folds an aggregate loss report into the loss-based
// estimator, used when per-packet transport-wide feedback isn't
// available. With the WebRTC-Bwe-PacketFeedbackOnly trial enabled, loss
// comes from the feedback batches instead and the report is a contract
// violation: it is logged and dropped.
func (nc *NetworkController) OnTransportLossReport(msg TransportLossReport) NetworkControlUpdate {
	if nc.packetFeedbackOnly {
		nc.log.Error("transport loss report received while in packet-feedback-only mode", "packetsLostDelta", msg.PacketsLostDelta)
		return NetworkControlUpdate{}
	}
	total := msg.PacketsLostDelta + msg.PacketsReceivedDelta
	nc.sendSide.UpdatePacketsLost(msg.PacketsLostDelta, total, msg.ReceiveTime.MS())
	return nc.maybeTriggerOnNetworkChanged(msg.ReceiveTime, false)
}

// OnNetworkStateEstimate accepts an externally pushed state estimate and
// returns an empty update. The message is not stored: the delay-based
// fuser only sees the estimate pulled from the injected
// NetworkStateEstimator's GetCurrentEstimate during feedback processing.
func (nc *NetworkController) OnNetworkStateEstimate(msg NetworkStateEstimate) NetworkControlUpdate {
	return NetworkControlUpdate{}
}

// OnTransportPacketsFeedback runs the full feedback pipeline: feeding the
// acknowledged-rate, probe-bitrate and delay-based estimators, fusing the
// result into the loss-based estimator, and deciding whether a fresh probe
// should fire off the back of an overuse recovery or ALR backoff.
func (nc *NetworkController) OnTransportPacketsFeedback(report TransportPacketsFeedback) NetworkControlUpdate {
	sorted := report.SortedByReceiveTime()

	nc.updateFeedbackRtt(report)
	nc.cwndPushback.UpdateOutstandingData(report.DataInFlight.Bytes())

	for _, pr := range sorted {
		nc.probeBitrate.HandleProbeAndEstimateBitrate(pr)
	}

	alrStart := nc.alrDetector.GetApplicationLimitedRegionStartTime()
	inAlr := alrStart != nil
	if nc.wasInAlr && !inAlr {
		nc.ackBitrate.SetAlrEndedTime(report.FeedbackTime)
		nc.probeController.SetAlrEndedTimeMs(report.FeedbackTime.MS())
	}
	nc.wasInAlr = inAlr
	nc.ackBitrate.SetAlr(inAlr)
	nc.ackBitrate.IncomingPacketFeedbackVector(sorted)

	if nc.networkEstimator != nil {
		nc.networkEstimator.OnTransportPacketsFeedback(report)
	}

	ackedRate := nc.ackBitrate.Bitrate()
	if ackedRate == nil {
		ackedRate = nc.ackBitrate.PeekRate()
	}
	probeRate := nc.probeBitrate.FetchAndResetLastEstimatedBitrate()
	if ackedRate == nil && nc.probeRateFallback && probeRate != nil {
		ackedRate = probeRate
	}

	var cachedEstimate *NetworkStateEstimate
	if nc.networkEstimator != nil {
		cachedEstimate = nc.networkEstimator.GetCurrentEstimate()
	}

	delayResult := nc.delayBased.IncomingPacketFeedbackVector(report, ackedRate, probeRate, cachedEstimate, alrStart != nil)

	nc.sendSide.SetAcknowledgedRate(ackedRate)
	nc.sendSide.IncomingPacketFeedbackVector(report)
	if delayResult.Updated {
		if delayResult.Probe {
			nc.sendSide.SetSendBitrate(delayResult.TargetBitrate, report.FeedbackTime.MS())
		}
		nc.sendSide.UpdateDelayBasedEstimate(report.FeedbackTime.MS(), delayResult.TargetBitrate)
	}

	if ackedRate != nil {
		nc.alrDetector.SetEstimatedBitrate(ackedRate.BPS())
		nc.lastAckedRate = ackedRate
	}

	update := nc.maybeTriggerOnNetworkChanged(report.FeedbackTime, false)

	if delayResult.RecoveredFromOveruse || delayResult.BackoffInAlr {
		update.ProbeClusterConfigs = append(update.ProbeClusterConfigs, nc.probeController.RequestProbe(report.FeedbackTime.MS())...)
	}
	return update
}

// refreshAlrLinkage keeps the probe controller's view of the current ALR
// start time current every tick, so periodic ALR probing (when enabled)
// keys off up-to-date state rather than only the feedback path.
func (nc *NetworkController) refreshAlrLinkage(nowMs int64) {
	alrStart := nc.alrDetector.GetApplicationLimitedRegionStartTime()
	inAlr := alrStart != nil
	if nc.wasInAlr && !inAlr {
		nc.ackBitrate.SetAlrEndedTime(MillisTimestamp(nowMs))
		nc.probeController.SetAlrEndedTimeMs(nowMs)
	}
	nc.wasInAlr = inAlr
	nc.probeController.SetAlrStartTimeMs(alrStart)
}

// GetNetworkState is a pull accessor returning the controller's last
// emitted decision without forcing a recompute, for callers that want the
// current state on demand (e.g. diagnostics) rather than only on change
//.
func (nc *NetworkController) GetNetworkState(atTime Timestamp) NetworkControlUpdate {
	update := NetworkControlUpdate{}
	if nc.lastTarget != nil {
		t := *nc.lastTarget
		update.TargetRate = &t
	}
	return update
}

// updateFeedbackRtt folds one TransportPacketsFeedback report into the
// feedback-RTT window and the propagation-RTT signal: max_recv_time anchors
// each packet's min_pending_time (how much later than the batch's last
// arrival this packet arrived, always <= 0), from which
// feedback_rtt - min_pending_time isolates the one-way propagation
// component from queuing delay.
func (nc *NetworkController) updateFeedbackRtt(report TransportPacketsFeedback) {
	var maxRecvTime int64 = -1
	for _, pr := range report.PacketFeedbacks {
		if pr.IsReceived() && pr.ReceiveTime.MS() > maxRecvTime {
			maxRecvTime = pr.ReceiveTime.MS()
		}
	}
	if maxRecvTime < 0 {
		return
	}

	var maxFeedbackRtt int64 = -1
	var minPropagationRtt int64
	havePropagation := false
	for _, pr := range report.PacketFeedbacks {
		if !pr.IsReceived() {
			continue
		}
		feedbackRtt := report.FeedbackTime.MS() - pr.SentPacket.SendTime.MS()
		minPendingTime := pr.ReceiveTime.MS() - maxRecvTime
		propagationRtt := feedbackRtt - minPendingTime
		if feedbackRtt > maxFeedbackRtt {
			maxFeedbackRtt = feedbackRtt
		}
		if !havePropagation || propagationRtt < minPropagationRtt {
			minPropagationRtt = propagationRtt
		}
		havePropagation = true
	}
	if maxFeedbackRtt < 0 {
		return
	}

	nc.feedbackRtts.PushBack(maxFeedbackRtt)
	for nc.feedbackRtts.Len() > maxFeedbackRttSamples {
		nc.feedbackRtts.PopFront()
	}
	m := nc.feedbackRtts.At(0)
	for i := 1; i < nc.feedbackRtts.Len(); i++ {
		if v := nc.feedbackRtts.At(i); v < m {
			m = v
		}
	}
	nc.maxFeedbackRtt = MillisDelta(m)

	if havePropagation {
		nc.sendSide.UpdatePropagationRtt(MillisDelta(minPropagationRtt))
	}

	if nc.packetFeedbackOnly {
		nc.updatePacketFeedbackOnlyRttAndLoss(report)
	}
}

// updatePacketFeedbackOnlyRttAndLoss is the alternative RTT/loss source
// used in place of separate RoundTripTimeUpdate/TransportLossReport events:
// the delay-based side gets the feedback window's mean RTT, the loss-based
// side gets this batch's minimum per-packet RTT, and loss counters
// accumulate until a 1-second deadline flushes them as a ratio.
func (nc *NetworkController) updatePacketFeedbackOnlyRttAndLoss(report TransportPacketsFeedback) {
	var sum int64
	for i := 0; i < nc.feedbackRtts.Len(); i++ {
		sum += nc.feedbackRtts.At(i)
	}
	if nc.feedbackRtts.Len() > 0 {
		nc.delayBased.OnRttUpdate(MillisDelta(sum / int64(nc.feedbackRtts.Len())))
	}

	var minRtt int64 = -1
	for _, pr := range report.PacketFeedbacks {
		if !pr.IsReceived() {
			continue
		}
		rtt := report.FeedbackTime.MS() - pr.SentPacket.SendTime.MS()
		if minRtt < 0 || rtt < minRtt {
			minRtt = rtt
		}
	}
	if minRtt >= 0 {
		nc.sendSide.UpdateRtt(MillisDelta(minRtt))
	}

	nc.expectedPackets += int64(len(report.PacketFeedbacks))
	for _, pr := range report.PacketFeedbacks {
		if !pr.IsReceived() {
			nc.lostPackets++
		}
	}

	nowMs := report.FeedbackTime.MS()
	if nc.nextLossUpdateMs == 0 {
		nc.nextLossUpdateMs = nowMs + lossUpdateIntervalMs
		return
	}
	if nowMs > nc.nextLossUpdateMs {
		nc.sendSide.UpdatePacketsLost(nc.lostPackets, nc.expectedPackets, nowMs)
		nc.expectedPackets = 0
		nc.lostPackets = 0
		nc.nextLossUpdateMs = nowMs + lossUpdateIntervalMs
	}
}

// maybeTriggerOnNetworkChanged recomputes the fused target rate and, if it
// changed meaningfully (or force is set, or enough time has passed),
// emits a new TargetTransferRate/PacerConfig/CongestionWindow
//.
func (nc *NetworkController) maybeTriggerOnNetworkChanged(atTime Timestamp, force bool) NetworkControlUpdate {
	estimate := nc.sendSide.CurrentEstimate()
	rawTarget := estimate.Bitrate
	bitrate := rawTarget

	// CongestionWindow.Compute carries exponential-smoothing state across
	// calls, so it must run at most once per tick: both the pushback
	// controller and the emitted CongestionWindow field reuse this one
	// result rather than each triggering their own Compute.
	var window *DataSize
	computeWindow := func() DataSize {
		if window == nil {
			w := nc.cwnd.Compute(rawTarget, nc.maxFeedbackRtt)
			window = &w
		}
		return *window
	}

	if nc.rateControlSettings.UseCongestionWindowPushback() {
		nc.cwndPushback.SetDataWindow(computeWindow())
		bitrate = nc.cwndPushback.UpdateTargetBitrate(rawTarget)
	}

	changed := force || nc.lastTarget == nil ||
		absDiffBPS(*nc.lastTarget, bitrate) > defaultTargetChangeEpsilonBPS ||
		nc.lastTarget.NetworkEstimate.LossRateRatio != float64(estimate.FractionLossQ8)/256.0 ||
		nc.lastTarget.NetworkEstimate.RoundTripTime != estimate.RoundTripTime
	stale := nc.lastTarget != nil && atTime.MS()-nc.lastTargetAtMs >= minTargetRateUpdateIntervalMs
	if !changed && !stale {
		return NetworkControlUpdate{}
	}

	target := TargetTransferRate{
		AtTime:     atTime,
		TargetRate: bitrate,
		NetworkEstimate: NetworkEstimate{
			AtTime:        atTime,
			Bandwidth:     nc.sendSide.GetEstimatedLinkCapacity(),
			RoundTripTime: estimate.RoundTripTime,
			LossRateRatio: float64(estimate.FractionLossQ8) / 256.0,
			BWEPeriod:     nc.delayBased.GetExpectedBwePeriod(),
		},
	}
	nc.lastTarget = &target
	nc.lastTargetAtMs = atTime.MS()
	nc.lastRawTarget = rawTarget

	pacer := nc.GetPacingRates(atTime, rawTarget, bitrate)

	var cwndOut *DataSize
	if nc.rateControlSettings.UseCongestionWindow() {
		w := computeWindow()
		cwndOut = &w
	}

	return NetworkControlUpdate{TargetRate: &target, PacerConfig: &pacer, CongestionWindow: cwndOut}
}

// GetPacingRates derives the pacer's send/pad budget. Pacing tracks the
// raw (pre-pushback) target so the pacer doesn't drain its queue
// sluggishly during congestion-window pushback; padding tracks the
// pushback target so excess padding isn't added during overload.
func (nc *NetworkController) GetPacingRates(atTime Timestamp, rawTarget, pushbackTarget DataRate) PacerConfig {
	pacingRate := ScaleRate(MaxRate(nc.minTotalAllocatedBitrate, rawTarget), nc.pacingFactor)
	padRate := MinRate(nc.maxPaddingRate, pushbackTarget)
	timeWindow := MillisDelta(1000)
	return PacerConfig{
		AtTime:     atTime,
		DataWindow: pacingRate.Times(timeWindow),
		PadWindow:  padRate.Times(timeWindow),
		TimeWindow: timeWindow,
	}
}

func absDiffBPS(prevTarget TargetTransferRate, next DataRate) int64 {
	d := prevTarget.TargetRate.BPS() - next.BPS()
	if d < 0 {
		d = -d
	}
	return d
}
