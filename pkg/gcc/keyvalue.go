package gcc

import "strings"

// KeyValueConfig is the trait the controller uses to read field-trial-style
// tunables. Lookup returns the empty string for unknown keys, which
// matches neither the Enabled nor the Disabled prefix convention below.
type KeyValueConfig interface {
	Lookup(key string) string
}

// MapKeyValueConfig is the simplest KeyValueConfig: a plain map.
type MapKeyValueConfig map[string]string

func (m MapKeyValueConfig) Lookup(key string) string { return m[key] }

// EmptyKeyValueConfig answers every lookup with "", i.e. every feature
// defaults to off (for Enabled-gated features) or on (for Disabled-gated
// ones), matching the upstream "trial based config with no overrides"
// default.
type EmptyKeyValueConfig struct{}

func (EmptyKeyValueConfig) Lookup(string) string { return "" }

// isEnabled reports whether config's value for key is prefixed "Enabled".
func isEnabled(config KeyValueConfig, key string) bool {
	return strings.HasPrefix(config.Lookup(key), "Enabled")
}

// isNotDisabled reports whether config's value for key is NOT prefixed
// "Disabled" (i.e. the feature defaults to on unless explicitly disabled).
func isNotDisabled(config KeyValueConfig, key string) bool {
	return !strings.HasPrefix(config.Lookup(key), "Disabled")
}

// safeResetOnRouteChange is the parsed form of the
// "WebRTC-Bwe-SafeResetOnRouteChange" field trial: {enabled, use_acked}.
type safeResetOnRouteChange struct {
	enabled  bool
	useAcked bool
}

// parseSafeResetOnRouteChange parses the "WebRTC-Bwe-SafeResetOnRouteChange"
// key. The trial's textual grammar is a comma-separated list of flags; the
// two recognized tokens are "Enabled" and "ack" (meaning "use the
// acknowledged rate rather than the raw estimate as the reseed source").
func parseSafeResetOnRouteChange(config KeyValueConfig) safeResetOnRouteChange {
	value := config.Lookup("WebRTC-Bwe-SafeResetOnRouteChange")
	result := safeResetOnRouteChange{}
	for _, tok := range strings.Split(value, ",") {
		switch strings.TrimSpace(tok) {
		case "Enabled":
			result.enabled = true
		case "ack":
			result.useAcked = true
		}
	}
	return result
}

// probeRateFallbackEnabled reports the "WebRTC-Bwe-ProbeRateFallback" field
// trial: when on, a missing acknowledged rate falls back to the probe
// estimator's last estimate rather than leaving the increase anchor unset.
func probeRateFallbackEnabled(config KeyValueConfig) bool {
	return isEnabled(config, "WebRTC-Bwe-ProbeRateFallback")
}

// packetFeedbackOnlyEnabled reports the "WebRTC-Bwe-PacketFeedbackOnly"
// field trial: when on, RTT and loss figures are derived purely from
// transport-wide packet feedback (mean feedback RTT, per-batch minimum RTT,
// periodic loss-ratio flushes) instead of relying on separate
// RoundTripTimeUpdate/TransportLossReport/REMB events.
func packetFeedbackOnlyEnabled(config KeyValueConfig) bool {
	return isEnabled(config, "WebRTC-Bwe-PacketFeedbackOnly")
}
