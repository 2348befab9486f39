package gcc

// NotAProbe marks a sent packet as not belonging to any probe cluster.
const NotAProbe = -1

// PacingInfo carries the probe-cluster tag a pacer attached to a sent
// packet, if any.
type PacingInfo struct {
	ProbeClusterID int
}

// SentPacketInfo describes a packet at the moment it was handed to the
// pacer/transport.
type SentPacketInfo struct {
	SendTime   Timestamp
	Size       DataSize
	PacingInfo PacingInfo
}

// PacketResult pairs a sent packet with what happened to it. ReceiveTime
// set to PlusInfinityTimestamp encodes "lost".
type PacketResult struct {
	SentPacket  SentPacketInfo
	ReceiveTime Timestamp
}

// IsReceived reports whether the packet has a finite receive time.
func (p PacketResult) IsReceived() bool { return p.ReceiveTime.IsFinite() }

// TransportPacketsFeedback is a batch of packet-level feedback delivered
// together, e.g. from a single TWCC RTCP packet.
type TransportPacketsFeedback struct {
	FeedbackTime    Timestamp
	DataInFlight    DataSize
	PacketFeedbacks []PacketResult
}

// ReceivedWithSendInfo returns the subset of feedbacks that were received,
// in their original order. It never mutates the receiver.
func (f TransportPacketsFeedback) ReceivedWithSendInfo() []PacketResult {
	out := make([]PacketResult, 0, len(f.PacketFeedbacks))
	for _, pr := range f.PacketFeedbacks {
		if pr.IsReceived() {
			out = append(out, pr)
		}
	}
	return out
}

// SortedByReceiveTime returns a copy of the feedbacks ordered by receive
// time, with lost packets (ReceiveTime = +inf) sorted last and in their
// original relative order.
func (f TransportPacketsFeedback) SortedByReceiveTime() []PacketResult {
	out := make([]PacketResult, len(f.PacketFeedbacks))
	copy(out, f.PacketFeedbacks)
	stableSortByReceiveTime(out)
	return out
}

func stableSortByReceiveTime(pr []PacketResult) {
	// Insertion sort: batches are small (a single feedback round) and this
	// keeps the sort stable without pulling in sort.SliceStable for a
	// handful of elements.
	for i := 1; i < len(pr); i++ {
		for j := i; j > 0 && pr[j].ReceiveTime.ms < pr[j-1].ReceiveTime.ms; j-- {
			pr[j], pr[j-1] = pr[j-1], pr[j]
		}
	}
}

// TargetRateConstraints bounds the bitrates the controller may emit.
type TargetRateConstraints struct {
	AtTime   Timestamp
	Min      *DataRate
	Max      *DataRate
	Starting *DataRate
}

// ProbeClusterConfig describes an active probe burst the pacer should
// emit. ID correlates future TransportPacketsFeedback carrying
// PacingInfo.ProbeClusterID back to this cluster.
type ProbeClusterConfig struct {
	AtTime            Timestamp
	TargetRate        DataRate
	TargetDuration    TimeDelta
	TargetProbeCount  int
	ID                int
}

// PacerConfig tells the pacer "send at most DataWindow bytes per
// TimeWindow, plus up to PadWindow bytes of padding".
type PacerConfig struct {
	AtTime     Timestamp
	DataWindow DataSize
	PadWindow  DataSize
	TimeWindow TimeDelta
}

// NetworkEstimate is the per-update snapshot of the controller's view of
// the network, embedded in TargetTransferRate.
type NetworkEstimate struct {
	AtTime         Timestamp
	Bandwidth      DataRate
	RoundTripTime  TimeDelta
	LossRateRatio  float64
	BWEPeriod      TimeDelta
}

// TargetTransferRate is the target-bitrate half of a NetworkControlUpdate.
type TargetTransferRate struct {
	AtTime          Timestamp
	TargetRate      DataRate
	NetworkEstimate NetworkEstimate
}

// NetworkControlUpdate is what every NetworkController event method
// returns. Any field may be nil/empty, meaning "no change this tick".
type NetworkControlUpdate struct {
	TargetRate          *TargetTransferRate
	PacerConfig         *PacerConfig
	CongestionWindow    *DataSize
	ProbeClusterConfigs []ProbeClusterConfig
}

func (u NetworkControlUpdate) merge(other NetworkControlUpdate) NetworkControlUpdate {
	if other.TargetRate != nil {
		u.TargetRate = other.TargetRate
	}
	if other.PacerConfig != nil {
		u.PacerConfig = other.PacerConfig
	}
	if other.CongestionWindow != nil {
		u.CongestionWindow = other.CongestionWindow
	}
	u.ProbeClusterConfigs = append(u.ProbeClusterConfigs, other.ProbeClusterConfigs...)
	return u
}

// --- inbound events ---

// NetworkAvailability signals whether the underlying network path is up.
type NetworkAvailability struct {
	AtTime    Timestamp
	Available bool
}

// NetworkRouteChange signals the sender switched network paths; estimators
// tied to the old path's statistics must be reset.
type NetworkRouteChange struct {
	AtTime      Timestamp
	Constraints TargetRateConstraints
}

// ProcessInterval is a periodic host-scheduled tick, typically every
// ~25ms, that drives timer-based logic with no other event of its own.
type ProcessInterval struct {
	AtTime           Timestamp
	PacerQueueBytes  *DataSize
}

// RemoteBitrateReport carries a receiver-estimated cap (REMB).
type RemoteBitrateReport struct {
	ReceiveTime Timestamp
	Bandwidth   DataRate
}

// RoundTripTimeUpdate carries an RTT sample, e.g. from RTCP SR/RR.
type RoundTripTimeUpdate struct {
	ReceiveTime    Timestamp
	RoundTripTime  TimeDelta
	Smoothed       bool
}

// SentPacket notifies the controller a packet was just handed to the
// transport.
type SentPacket struct {
	SendTime     Timestamp
	Size         DataSize
	DataInFlight DataSize
	PacingInfo   PacingInfo
}

// StreamsConfig carries allocation-layer policy inputs: pacing factor,
// padding caps, and the total bitrate the encoder stack may ask for.
type StreamsConfig struct {
	AtTime                    Timestamp
	RequestsALRProbing        *bool
	MinTotalAllocatedBitrate  *DataRate
	MaxPaddingRate            *DataRate
	MaxTotalAllocatedBitrate  *DataRate
	PacingFactor              *float64
}

// TransportLossReport carries aggregate packet-loss counters, e.g. from
// RTCP receiver reports, used as a loss signal alternative to
// per-packet feedback.
type TransportLossReport struct {
	ReceiveTime          Timestamp
	PacketsLostDelta     int64
	PacketsReceivedDelta int64
}

// NetworkStateEstimate is a third-party network-state prediction the
// delay-based estimator may fuse in, if one is injected.
type NetworkStateEstimate struct {
	AtTime    Timestamp
	Bandwidth DataRate
}

// NetworkStateEstimator is an injected, borrowed collaborator: the
// controller consumes it through this contract and never owns or
// destroys it.
type NetworkStateEstimator interface {
	OnTransportPacketsFeedback(TransportPacketsFeedback)
	OnRouteChange(NetworkRouteChange)
	GetCurrentEstimate() *NetworkStateEstimate
}

// NetworkStatePredictor optionally reshapes the delay estimator's raw
// delay-gradient signal before it reaches the overuse detector.
type NetworkStatePredictor interface {
	Update(sendTimeMs, arrivalTimeMs int64, networkStateMs int64) int64
}
