package gcc

// Floor below which no caller may push the minimum bitrate, regardless of
// constraints supplied at runtime: a compile-time minimum, e.g. ~5 kbit/s.
const minBitrateFloorBPS = 5_000

// defaultCongestionWindowAdditionalTimeMs is the tunable "additional_time"
// added to the minimum feedback RTT when sizing the congestion window.
const defaultCongestionWindowAdditionalTimeMs = 100

// RateControlSettings parses the handful of controller-wide tunables that
// are not per-component field trials but still come from the same
// KeyValueConfig the rest of the controller reads.
type RateControlSettings struct {
	useCongestionWindow                 bool
	useCongestionWindowPushback         bool
	congestionWindowAdditionalTimeMs    int64
	triggerProbeOnMaxAllocatedBitrate   bool
}

// ParseRateControlSettingsFromKeyValueConfig builds a RateControlSettings
// from config. Every field defaults to the GoogCC upstream default when the
// corresponding key is absent.
func ParseRateControlSettingsFromKeyValueConfig(config KeyValueConfig) RateControlSettings {
	return RateControlSettings{
		useCongestionWindow:               isNotDisabled(config, "WebRTC-Bwe-CongestionWindow"),
		useCongestionWindowPushback:       isEnabled(config, "WebRTC-Bwe-CongestionWindowPushback"),
		congestionWindowAdditionalTimeMs:  defaultCongestionWindowAdditionalTimeMs,
		triggerProbeOnMaxAllocatedBitrate: isNotDisabled(config, "WebRTC-Bwe-ProbeOnMaxAllocatedBitrateChange"),
	}
}

func (s RateControlSettings) UseCongestionWindow() bool { return s.useCongestionWindow }
func (s RateControlSettings) UseCongestionWindowPushback() bool {
	return s.useCongestionWindowPushback
}
func (s RateControlSettings) GetCongestionWindowAdditionalTimeMs() int64 {
	return s.congestionWindowAdditionalTimeMs
}
func (s RateControlSettings) TriggerProbeOnMaxAllocatedBitrateChange() bool {
	return s.triggerProbeOnMaxAllocatedBitrate
}

func minBitrateFloor() DataRate { return BitsPerSec(minBitrateFloorBPS) }
