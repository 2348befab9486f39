package gcc

// maxTrackedProbeClusters bounds how many in-flight probe clusters are
// tracked at once; older ones are pruned as new cluster IDs arrive since
// IDs are assigned monotonically by ProbeController.
const maxTrackedProbeClusters = 8

// minProbePacketsForEstimate is the minimum number of received packets in
// a cluster before a capacity estimate is trusted.
const minProbePacketsForEstimate = 2

type probeCluster struct {
	id               int
	firstSend        Timestamp
	lastSend         Timestamp
	firstRecv        Timestamp
	lastRecv         Timestamp
	sizeExcludingFirst DataSize
	numReceived      int
}

// ProbeBitrateEstimator turns feedback on probe-cluster-tagged packets
// into a capacity estimate by comparing the send span against the receive
// span of the cluster: if the link were the bottleneck,
// packets that were sent back-to-back arrive spread out over a longer
// span, and the ratio of bytes to that wider span is the link's capacity.
type ProbeBitrateEstimator struct {
	clusters     map[int]*probeCluster
	clusterOrder []int
	lastEstimate *DataRate
}

// NewProbeBitrateEstimator creates an empty estimator.
func NewProbeBitrateEstimator() *ProbeBitrateEstimator {
	return &ProbeBitrateEstimator{clusters: make(map[int]*probeCluster)}
}

// HandleProbeAndEstimateBitrate folds one received, probe-tagged packet
// into its cluster's running span/size tally and updates the last
// estimate if the cluster now has enough data to trust.
func (p *ProbeBitrateEstimator) HandleProbeAndEstimateBitrate(pr PacketResult) {
	id := pr.SentPacket.PacingInfo.ProbeClusterID
	if id == NotAProbe || !pr.IsReceived() {
		return
	}

	c, ok := p.clusters[id]
	if !ok {
		c = &probeCluster{id: id, firstSend: pr.SentPacket.SendTime, firstRecv: pr.ReceiveTime}
		p.clusters[id] = c
		p.clusterOrder = append(p.clusterOrder, id)
		p.evictOldClusters()
	} else {
		// Every packet after the cluster's first contributes its size to
		// the span-filling byte count; the first packet's own bytes were
		// already "in flight" before the interval we're measuring starts.
		c.sizeExcludingFirst = AddSize(c.sizeExcludingFirst, pr.SentPacket.Size)
	}
	c.numReceived++
	if pr.SentPacket.SendTime.After(c.lastSend) {
		c.lastSend = pr.SentPacket.SendTime
	}
	if pr.ReceiveTime.After(c.lastRecv) {
		c.lastRecv = pr.ReceiveTime
	}

	if c.numReceived < minProbePacketsForEstimate {
		return
	}
	sendSpan := c.lastSend.Sub(c.firstSend)
	recvSpan := c.lastRecv.Sub(c.firstRecv)
	if sendSpan.MS() <= 0 || recvSpan.MS() <= 0 {
		return
	}

	sendRate := c.sizeExcludingFirst.Over(sendSpan)
	recvRate := c.sizeExcludingFirst.Over(recvSpan)
	estimate := MinRate(sendRate, recvRate)
	p.lastEstimate = &estimate
}

func (p *ProbeBitrateEstimator) evictOldClusters() {
	for len(p.clusterOrder) > maxTrackedProbeClusters {
		oldest := p.clusterOrder[0]
		p.clusterOrder = p.clusterOrder[1:]
		delete(p.clusters, oldest)
	}
}

// FetchAndResetLastEstimatedBitrate consumes the latest estimate: the
// caller gets it once, and a subsequent call returns nil until a new
// probe produces a fresh one.
func (p *ProbeBitrateEstimator) FetchAndResetLastEstimatedBitrate() *DataRate {
	estimate := p.lastEstimate
	p.lastEstimate = nil
	return estimate
}

// LastEstimate peeks at the latest estimate without consuming it.
func (p *ProbeBitrateEstimator) LastEstimate() *DataRate {
	return p.lastEstimate
}
