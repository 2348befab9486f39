package gcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampArithmetic(t *testing.T) {
	t.Run("有限なTimestamp同士の減算", func(t *testing.T) {
		a := MillisTimestamp(1000)
		b := MillisTimestamp(400)
		assert.Equal(t, int64(600), a.Sub(b).MS())
	})

	t.Run("加算で無限大が伝播する", func(t *testing.T) {
		a := MillisTimestamp(1000)
		assert.True(t, a.Add(PlusInfinityDelta()).IsPlusInfinity())
	})

	t.Run("非有限オペランドでのSubはpanicする", func(t *testing.T) {
		assert.Panics(t, func() {
			PlusInfinityTimestamp().Sub(MillisTimestamp(0))
		})
	})

	t.Run("Before/After/Equal", func(t *testing.T) {
		a := MillisTimestamp(10)
		b := MillisTimestamp(20)
		assert.True(t, a.Before(b))
		assert.True(t, b.After(a))
		assert.True(t, a.Equal(MillisTimestamp(10)))
	})
}

func TestDataRateAndSize(t *testing.T) {
	t.Run("DataRate.Timesで送信可能バイト数を得る", func(t *testing.T) {
		rate := BitsPerSec(8000)
		size := rate.Times(MillisDelta(1000))
		assert.Equal(t, int64(1000), size.Bytes())
	})

	t.Run("DataSize.Overで平均レートを得る", func(t *testing.T) {
		size := Bytes(1000)
		rate := size.Over(MillisDelta(1000))
		assert.Equal(t, int64(8000), rate.BPS())
	})

	t.Run("ゼロ継続時間でのOverはpanicする", func(t *testing.T) {
		require.Panics(t, func() {
			Bytes(1000).Over(ZeroDelta())
		})
	})

	t.Run("MinRate/MaxRate", func(t *testing.T) {
		a := BitsPerSec(1000)
		b := BitsPerSec(2000)
		assert.Equal(t, a, MinRate(a, b))
		assert.Equal(t, b, MaxRate(a, b))
	})

	t.Run("ScaleRateは負に振れない", func(t *testing.T) {
		rate := ScaleRate(BitsPerSec(100), -5)
		assert.Equal(t, int64(0), rate.BPS())
	})

	t.Run("PlusInfinityRate.Timesは常に+inf", func(t *testing.T) {
		assert.True(t, PlusInfinityRate().Times(MillisDelta(1)).IsPlusInfinity())
	})
}

func TestNetworkControlUpdateMerge(t *testing.T) {
	t.Run("後勝ちでフィールドが上書きされる", func(t *testing.T) {
		rate1 := TargetTransferRate{TargetRate: BitsPerSec(100)}
		rate2 := TargetTransferRate{TargetRate: BitsPerSec(200)}
		a := NetworkControlUpdate{TargetRate: &rate1}
		b := NetworkControlUpdate{TargetRate: &rate2}
		merged := a.merge(b)
		require.NotNil(t, merged.TargetRate)
		assert.Equal(t, int64(200), merged.TargetRate.TargetRate.BPS())
	})

	t.Run("ProbeClusterConfigsは連結される", func(t *testing.T) {
		a := NetworkControlUpdate{ProbeClusterConfigs: []ProbeClusterConfig{{ID: 1}}}
		b := NetworkControlUpdate{ProbeClusterConfigs: []ProbeClusterConfig{{ID: 2}}}
		merged := a.merge(b)
		assert.Len(t, merged.ProbeClusterConfigs, 2)
	})
}

func TestTransportPacketsFeedbackSorting(t *testing.T) {
	t.Run("ReceiveTime順に並べ替え未受信は末尾に残し受信済みのみはReceivedWithSendInfoで得る", func(t *testing.T) {
		feedback := TransportPacketsFeedback{
			PacketFeedbacks: []PacketResult{
				{ReceiveTime: MillisTimestamp(300)},
				{ReceiveTime: PlusInfinityTimestamp()},
				{ReceiveTime: MillisTimestamp(100)},
			},
		}
		sorted := feedback.SortedByReceiveTime()
		require.Len(t, sorted, 3)
		assert.Equal(t, int64(100), sorted[0].ReceiveTime.MS())
		assert.Equal(t, int64(300), sorted[1].ReceiveTime.MS())
		assert.True(t, sorted[2].ReceiveTime.IsPlusInfinity())

		received := feedback.ReceivedWithSendInfo()
		assert.Len(t, received, 2)
	})
}
