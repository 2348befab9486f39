package gcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probePacket(clusterID int, sendMs, recvMs, bytes int64) PacketResult {
	return PacketResult{
		SentPacket:  SentPacketInfo{SendTime: MillisTimestamp(sendMs), Size: Bytes(bytes), PacingInfo: PacingInfo{ProbeClusterID: clusterID}},
		ReceiveTime: MillisTimestamp(recvMs),
	}
}

func TestProbeBitrateEstimator(t *testing.T) {
	t.Run("非プローブパケットは無視される", func(t *testing.T) {
		p := NewProbeBitrateEstimator()
		p.HandleProbeAndEstimateBitrate(received(0, 0, 1500))
		assert.Nil(t, p.LastEstimate())
	})

	t.Run("送信より受信の間隔が広い場合は受信側の帯域で頭打ちになる", func(t *testing.T) {
		p := NewProbeBitrateEstimator()
		// Sent back-to-back over 10ms, arrived spread over 100ms: the link
		// is the bottleneck, so capacity should track the receive span.
		p.HandleProbeAndEstimateBitrate(probePacket(1, 0, 0, 1000))
		p.HandleProbeAndEstimateBitrate(probePacket(1, 5, 50, 1000))
		p.HandleProbeAndEstimateBitrate(probePacket(1, 10, 100, 1000))

		require.NotNil(t, p.LastEstimate())
		// sizeExcludingFirst = 2000 bytes over a 100ms receive span = 160kbps,
		// versus 2000 bytes over a 10ms send span = 1.6Mbps; Min wins.
		assert.Less(t, p.LastEstimate().BPS(), int64(200_000))
	})

	t.Run("FetchAndResetLastEstimatedBitrateは一度だけ値を返す", func(t *testing.T) {
		p := NewProbeBitrateEstimator()
		p.HandleProbeAndEstimateBitrate(probePacket(1, 0, 0, 1000))
		p.HandleProbeAndEstimateBitrate(probePacket(1, 5, 50, 1000))

		first := p.FetchAndResetLastEstimatedBitrate()
		require.NotNil(t, first)
		assert.Nil(t, p.FetchAndResetLastEstimatedBitrate())
	})

	t.Run("古いクラスタはmaxTrackedProbeClustersを超えると破棄される", func(t *testing.T) {
		p := NewProbeBitrateEstimator()
		for id := 0; id < maxTrackedProbeClusters+2; id++ {
			p.HandleProbeAndEstimateBitrate(probePacket(id, int64(id), int64(id), 100))
		}
		assert.Len(t, p.clusters, maxTrackedProbeClusters)
		_, ok := p.clusters[0]
		assert.False(t, ok)
	})
}
