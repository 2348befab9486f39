package gcc

import (
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// BWETrialsConfig is the `[bwe]` table shape in the SFU's TOML config file,
// one field per field-trial key that TomlKeyValueConfig.Lookup answers, so
// operators can flip a tunable the same way they already edit
// `pkg/sfu/config.go`'s `Config`. Other keys the package reads
// (WebRTC-Bwe-PacketFeedbackOnly, WebRTC-Bwe-CongestionWindow,
// WebRTC-Bwe-CongestionWindowPushback,
// WebRTC-Bwe-ProbeOnMaxAllocatedBitrateChange) have no field here and look
// up as the empty string.
type BWETrialsConfig struct {
	StableBandwidthEstimate       string `toml:"stable_bandwidth_estimate"`
	CongestionWindowDownlinkDelay string `toml:"congestion_window_downlink_delay"`
	ProbeRateFallback             string `toml:"probe_rate_fallback"`
	MinAllocAsLowerBound          string `toml:"min_alloc_as_lower_bound"`
	SafeResetOnRouteChange        string `toml:"safe_reset_on_route_change"`
}

// TomlKeyValueConfig adapts a parsed BWETrialsConfig to KeyValueConfig.
type TomlKeyValueConfig struct {
	trials BWETrialsConfig
}

// NewTomlKeyValueConfig parses raw TOML bytes (normally a `[bwe]` table
// sliced out of the SFU's main config file) into a KeyValueConfig.
func NewTomlKeyValueConfig(raw []byte) (*TomlKeyValueConfig, error) {
	var trials BWETrialsConfig
	if err := toml.Unmarshal(raw, &trials); err != nil {
		return nil, fmt.Errorf("gcc: parse bwe toml config: %w", err)
	}
	return &TomlKeyValueConfig{trials: trials}, nil
}

// Lookup implements KeyValueConfig.
func (c *TomlKeyValueConfig) Lookup(key string) string {
	switch key {
	case "WebRTC-Bwe-StableBandwidthEstimate":
		return c.trials.StableBandwidthEstimate
	case "WebRTC-Bwe-CongestionWindowDownlinkDelay":
		return c.trials.CongestionWindowDownlinkDelay
	case "WebRTC-Bwe-ProbeRateFallback":
		return c.trials.ProbeRateFallback
	case "WebRTC-Bwe-MinAllocAsLowerBound":
		return c.trials.MinAllocAsLowerBound
	case "WebRTC-Bwe-SafeResetOnRouteChange":
		return c.trials.SafeResetOnRouteChange
	default:
		return ""
	}
}
