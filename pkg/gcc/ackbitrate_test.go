package gcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func received(sendMs, recvMs, bytes int64) PacketResult {
	return PacketResult{
		SentPacket:  SentPacketInfo{SendTime: MillisTimestamp(sendMs), Size: Bytes(bytes), PacingInfo: PacingInfo{ProbeClusterID: NotAProbe}},
		ReceiveTime: MillisTimestamp(recvMs),
	}
}

func lost(sendMs int64) PacketResult {
	return PacketResult{
		SentPacket:  SentPacketInfo{SendTime: MillisTimestamp(sendMs), PacingInfo: PacingInfo{ProbeClusterID: NotAProbe}},
		ReceiveTime: PlusInfinityTimestamp(),
	}
}

func TestAcknowledgedBitrateEstimator(t *testing.T) {
	t.Run("十分な期間のサンプルからビットレートを推定する", func(t *testing.T) {
		e := NewAcknowledgedBitrateEstimator()
		feedbacks := []PacketResult{
			received(0, 0, 1500),
			received(50, 50, 1500),
			received(100, 100, 1500),
			received(150, 150, 1500),
			received(200, 200, 1500),
		}
		e.IncomingPacketFeedbackVector(feedbacks)
		require.NotNil(t, e.Bitrate())
		assert.Greater(t, e.Bitrate().BPS(), int64(0))
	})

	t.Run("ロストパケットは無視される", func(t *testing.T) {
		e := NewAcknowledgedBitrateEstimator()
		e.IncomingPacketFeedbackVector([]PacketResult{lost(0), lost(50), lost(100)})
		assert.Nil(t, e.Bitrate())
	})

	t.Run("ALR中はサンプルを取り込まない", func(t *testing.T) {
		e := NewAcknowledgedBitrateEstimator()
		e.SetAlr(true)
		e.IncomingPacketFeedbackVector([]PacketResult{received(0, 0, 1500), received(200, 200, 1500)})
		assert.Nil(t, e.Bitrate())
	})

	t.Run("ALR終了前に送られたサンプルは除外される", func(t *testing.T) {
		e := NewAcknowledgedBitrateEstimator()
		e.SetAlrEndedTime(MillisTimestamp(100))
		feedbacks := []PacketResult{
			received(0, 0, 1500), // sent before ALR ended, dropped
			received(100, 100, 1500),
			received(300, 300, 1500),
		}
		e.IncomingPacketFeedbackVector(feedbacks)
		// The two surviving samples span 200ms, already past the 150ms min window.
		require.NotNil(t, e.Bitrate())
		assert.Greater(t, e.Bitrate().BPS(), int64(0))
	})

	t.Run("PeekRateはBitrateが確定する前でも値を返す", func(t *testing.T) {
		e := NewAcknowledgedBitrateEstimator()
		e.IncomingPacketFeedbackVector([]PacketResult{received(0, 0, 1000), received(10, 10, 1000)})
		assert.Nil(t, e.Bitrate())
		assert.NotNil(t, e.PeekRate())
	})
}
