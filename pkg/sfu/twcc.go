package sfu

import (
	"log/slog"
	"sync"
	"time"

	"github.com/pion/rtcp"

	"github.com/HMasataka/choice/pkg/gcc"
)

// TWCCConfig contains TWCC configuration
type TWCCConfig struct {
	// Initial bitrate estimate
	InitialBitrate uint64
	// Minimum bitrate
	MinBitrate uint64
	// Maximum bitrate
	MaxBitrate uint64
	// Interval for sending TWCC feedback
	FeedbackInterval time.Duration
}

// DefaultTWCCConfig returns the default TWCC configuration
func DefaultTWCCConfig() TWCCConfig {
	return TWCCConfig{
		InitialBitrate:   1_000_000, // 1 Mbps
		MinBitrate:       100_000,   // 100 Kbps
		MaxBitrate:       5_000_000, // 5 Mbps
		FeedbackInterval: 100 * time.Millisecond,
	}
}

// PacketInfo contains information about a packet handed to the pacer,
// tracked until a TWCC report accounts for it.
type PacketInfo struct {
	SequenceNumber uint16
	ArrivalTime    time.Time
	Size           int
}

// TWCCReceiver tracks packets sent with a transport-wide sequence number
// and turns each subsequent TWCC RTCP report into a gcc.TransportPacketsFeedback
// fed to a *CongestionController, so the send side's bandwidth estimate is
// driven by what the remote peer actually reports receiving.
type TWCCReceiver struct {
	config  TWCCConfig
	cc      *CongestionController
	packets map[uint16]*PacketInfo
	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
}

// NewTWCCReceiver creates a new TWCC receiver feeding cc. cc may be nil in
// tests that only exercise packet bookkeeping.
func NewTWCCReceiver(config TWCCConfig, cc *CongestionController) *TWCCReceiver {
	return &TWCCReceiver{
		config:  config,
		cc:      cc,
		packets: make(map[uint16]*PacketInfo),
		closeCh: make(chan struct{}),
	}
}

// RecordPacket records a packet handed to the pacer, keyed by its
// transport-wide sequence number, so a later TWCC report can be matched
// back to it.
func (t *TWCCReceiver) RecordPacket(seqNum uint16, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.packets[seqNum] = &PacketInfo{
		SequenceNumber: seqNum,
		ArrivalTime:    time.Now(),
		Size:           size,
	}

	// Once more than 1000 packets are tracked, drop those recorded over 5s ago
	if len(t.packets) > 1000 {
		t.cleanupOldPackets()
	}
}

// cleanupOldPackets removes old packet records
func (t *TWCCReceiver) cleanupOldPackets() {
	threshold := time.Now().Add(-5 * time.Second)
	for seq, pkt := range t.packets {
		if pkt.ArrivalTime.Before(threshold) {
			delete(t.packets, seq)
		}
	}
}

// OnTransportCCFeedback converts one received TWCC RTCP packet into a
// gcc.TransportPacketsFeedback and drives the congestion controller with it.
// It walks RecvDeltas sequentially from BaseSequenceNumber, mirroring the
// one-delta-per-packet encoding TWCCSender.buildFeedback produces (no
// run-length/status-symbol chunk decoding); a recorded packet with no
// matching delta is treated as not yet reported and left pending.
func (t *TWCCReceiver) OnTransportCCFeedback(fb *rtcp.TransportLayerCC) {
	if fb == nil {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	refTime := time.Unix(0, int64(fb.ReferenceTime)*64*int64(time.Millisecond))
	cumulative := time.Duration(0)
	results := make([]gcc.PacketResult, 0, len(fb.RecvDeltas))
	seq := fb.BaseSequenceNumber

	for _, d := range fb.RecvDeltas {
		pkt, ok := t.packets[seq]
		delete(t.packets, seq)
		seq++
		if !ok {
			continue
		}

		sent := gcc.SentPacketInfo{
			SendTime:   gcc.MillisTimestamp(pkt.ArrivalTime.UnixMilli()),
			Size:       gcc.Bytes(int64(pkt.Size)),
			PacingInfo: gcc.PacingInfo{ProbeClusterID: gcc.NotAProbe},
		}

		if d == nil || d.Type == rtcp.TypeTCCPacketNotReceived {
			results = append(results, gcc.PacketResult{SentPacket: sent, ReceiveTime: gcc.PlusInfinityTimestamp()})
			continue
		}

		cumulative += time.Duration(d.Delta) * 250 * time.Microsecond
		results = append(results, gcc.PacketResult{
			SentPacket:  sent,
			ReceiveTime: gcc.MillisTimestamp(refTime.Add(cumulative).UnixMilli()),
		})
	}
	t.mu.Unlock()

	if len(results) == 0 || t.cc == nil {
		return
	}
	t.cc.OnTransportPacketsFeedback(gcc.TransportPacketsFeedback{
		FeedbackTime:    gcc.MillisTimestamp(time.Now().UnixMilli()),
		PacketFeedbacks: results,
	})
}

// Close closes the TWCC receiver
func (t *TWCCReceiver) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	close(t.closeCh)
}

// TWCCSender sends TWCC feedback
type TWCCSender struct {
	config        TWCCConfig
	referenceTime time.Time
	packets       []*PacketInfo
	feedbackCount uint8
	onFeedback    func([]rtcp.Packet)
	mu            sync.Mutex
	closed        bool
	closeCh       chan struct{}
}

// NewTWCCSender creates a new TWCC sender
func NewTWCCSender(config TWCCConfig) *TWCCSender {
	return &TWCCSender{
		config:        config,
		referenceTime: time.Now(),
		packets:       make([]*PacketInfo, 0, 256),
		closeCh:       make(chan struct{}),
	}
}

// OnFeedback sets the callback for sending feedback
func (t *TWCCSender) OnFeedback(cb func([]rtcp.Packet)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onFeedback = cb
}

// RecordPacket records a sent packet
func (t *TWCCSender) RecordPacket(seqNum uint16, size int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	t.packets = append(t.packets, &PacketInfo{
		SequenceNumber: seqNum,
		ArrivalTime:    time.Now(),
		Size:           size,
	})
}

// Start starts the feedback loop
func (t *TWCCSender) Start() {
	go t.feedbackLoop()
}

// feedbackLoop periodically sends TWCC feedback
func (t *TWCCSender) feedbackLoop() {
	ticker := time.NewTicker(t.config.FeedbackInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.closeCh:
			return
		case <-ticker.C:
			t.sendFeedback()
		}
	}
}

// sendFeedback generates and sends TWCC feedback
func (t *TWCCSender) sendFeedback() {
	t.mu.Lock()
	if t.closed || len(t.packets) == 0 {
		t.mu.Unlock()
		return
	}

	packets := t.packets
	t.packets = make([]*PacketInfo, 0, 256)
	callback := t.onFeedback
	t.feedbackCount++
	t.mu.Unlock()

	if callback == nil {
		return
	}

	// Build TWCC feedback packet
	feedback := t.buildFeedback(packets)
	if feedback != nil {
		callback([]rtcp.Packet{feedback})
	}
}

// buildFeedback creates a TWCC feedback packet
func (t *TWCCSender) buildFeedback(packets []*PacketInfo) rtcp.Packet {
	if len(packets) == 0 {
		return nil
	}

	// Find base sequence number
	baseSeq := packets[0].SequenceNumber
	for _, p := range packets {
		if p.SequenceNumber < baseSeq {
			baseSeq = p.SequenceNumber
		}
	}

	// Build packet status chunks
	recvDeltas := make([]*rtcp.RecvDelta, 0, len(packets))
	for _, p := range packets {
		delta := p.ArrivalTime.Sub(t.referenceTime)
		recvDeltas = append(recvDeltas, &rtcp.RecvDelta{
			Type:  rtcp.TypeTCCPacketReceivedSmallDelta,
			Delta: delta.Microseconds() * 250, // 250us units
		})
	}

	return &rtcp.TransportLayerCC{
		Header: rtcp.Header{
			Count:  rtcp.FormatTCC,
			Type:   rtcp.TypeTransportSpecificFeedback,
			Length: 0, // Will be calculated
		},
		MediaSSRC:          0, // Set by caller
		BaseSequenceNumber: baseSeq,
		PacketStatusCount:  uint16(len(packets)),
		ReferenceTime:      uint32(t.referenceTime.UnixNano() / int64(64*time.Millisecond)), // 64ms units
		FbPktCount:         t.feedbackCount,
		RecvDeltas:         recvDeltas,
	}
}

// Close closes the TWCC sender
func (t *TWCCSender) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	close(t.closeCh)
}

// CongestionController drives a gcc.NetworkController off TWCC feedback and
// republishes its decisions through a GCCBandwidthEstimator, the shape
// pion's interceptor chain expects of a bandwidth estimator.
type CongestionController struct {
	config    TWCCConfig
	log       *slog.Logger
	nc        *gcc.NetworkController
	estimator *GCCBandwidthEstimator
}

// NewCongestionController creates a congestion controller seeded from the
// TWCC config's initial/min/max bitrates.
func NewCongestionController(config TWCCConfig, log *slog.Logger) (*CongestionController, error) {
	start := gcc.BitsPerSec(int64(config.InitialBitrate))
	min := gcc.BitsPerSec(int64(config.MinBitrate))
	max := gcc.BitsPerSec(int64(config.MaxBitrate))

	nc, err := gcc.NewNetworkController(nil, gcc.TargetRateConstraints{
		AtTime:   gcc.MillisTimestamp(time.Now().UnixMilli()),
		Starting: &start,
		Min:      &min,
		Max:      &max,
	}, nil, nil, log)
	if err != nil {
		return nil, err
	}

	return &CongestionController{
		config:    config,
		log:       log,
		nc:        nc,
		estimator: NewGCCBandwidthEstimator(nc),
	}, nil
}

// OnTransportPacketsFeedback feeds one parsed TWCC report through the
// underlying NetworkController and republishes any resulting target rate.
func (c *CongestionController) OnTransportPacketsFeedback(report gcc.TransportPacketsFeedback) {
	update := c.nc.OnTransportPacketsFeedback(report)
	c.estimator.applyUpdate(update)
}

// Tick drives the controller's periodic logic (probe cooldowns, loss-based
// timers); callers should invoke this on a steady interval, e.g. every
// TWCCConfig.FeedbackInterval.
func (c *CongestionController) Tick(atMs int64) {
	update := c.nc.OnProcessInterval(gcc.ProcessInterval{AtTime: gcc.MillisTimestamp(atMs)})
	c.estimator.applyUpdate(update)
}

// Estimator returns the pion-interceptor-shaped bandwidth estimator bridge.
func (c *CongestionController) Estimator() *GCCBandwidthEstimator {
	return c.estimator
}

// GetTargetBitrate returns the target bitrate from the congestion controller.
func (c *CongestionController) GetTargetBitrate() int {
	return c.estimator.GetTargetBitrate()
}
