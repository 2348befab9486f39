package sfu

import (
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtcp"

	"github.com/HMasataka/choice/pkg/gcc"
)

// GCCBandwidthEstimator adapts a *gcc.NetworkController to the bandwidth
// estimator surface pion's interceptor chain expects: a single target
// bitrate, a change callback, and a per-stream hook. The NetworkController
// itself stays the owner of all estimation state; this type only republishes
// its decisions and satisfies the interceptor package's shape so a
// CongestionController can be handed anywhere a pion-native GCC estimator
// would go.
type GCCBandwidthEstimator struct {
	mu       sync.Mutex
	nc       *gcc.NetworkController
	target   int
	onChange []func(bitrate int)
}

// NewGCCBandwidthEstimator wraps nc, starting with no externally-observed
// target bitrate until the first NetworkControlUpdate arrives.
func NewGCCBandwidthEstimator(nc *gcc.NetworkController) *GCCBandwidthEstimator {
	return &GCCBandwidthEstimator{nc: nc}
}

// OnTargetBitrateChange registers a callback fired whenever the target
// bitrate moves. Multiple registrations are all kept, each fired in order.
func (g *GCCBandwidthEstimator) OnTargetBitrateChange(f func(bitrate int)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onChange = append(g.onChange, f)
}

// GetTargetBitrate returns the most recently published target bitrate.
func (g *GCCBandwidthEstimator) GetTargetBitrate() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.target
}

// GetStats returns a snapshot of the estimator's current view, keyed the
// way the interceptor stats dashboard expects free-form estimator output.
func (g *GCCBandwidthEstimator) GetStats() map[string]interface{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	est := g.nc.GetNetworkState(gcc.Timestamp{})
	stats := map[string]interface{}{"targetBitrate": g.target}
	if est.TargetRate != nil {
		stats["lossRateRatio"] = est.TargetRate.NetworkEstimate.LossRateRatio
		stats["roundTripTimeMs"] = est.TargetRate.NetworkEstimate.RoundTripTime.MS()
	}
	return stats
}

// AddStream registers a newly-added RTP stream with the estimator. The
// underlying NetworkController gets its signal from TWCC feedback rather
// than per-packet writer interception, so the writer is returned unchanged.
func (g *GCCBandwidthEstimator) AddStream(_ *interceptor.StreamInfo, writer interceptor.RTPWriter) interceptor.RTPWriter {
	return writer
}

// WriteRTCP accepts RTCP from the interceptor chain and ignores it: the
// NetworkController is fed TWCC feedback through
// TWCCReceiver.OnTransportCCFeedback instead.
func (g *GCCBandwidthEstimator) WriteRTCP(_ []rtcp.Packet, _ interceptor.Attributes) error {
	return nil
}

// Close is a no-op: the NetworkController has no background goroutines or
// open handles of its own to release.
func (g *GCCBandwidthEstimator) Close() error {
	return nil
}

// applyUpdate folds a NetworkControlUpdate into the externally-visible
// target bitrate, firing every registered OnTargetBitrateChange callback
// when the value actually moves.
func (g *GCCBandwidthEstimator) applyUpdate(update gcc.NetworkControlUpdate) {
	if update.TargetRate == nil {
		return
	}
	bps := int(update.TargetRate.TargetRate.BPS())

	g.mu.Lock()
	changed := bps != g.target
	g.target = bps
	callbacks := make([]func(bitrate int), len(g.onChange))
	copy(callbacks, g.onChange)
	g.mu.Unlock()

	if !changed {
		return
	}
	for _, cb := range callbacks {
		cb(bps)
	}
}
