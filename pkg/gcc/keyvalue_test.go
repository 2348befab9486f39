package gcc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyValueConfig(t *testing.T) {
	t.Run("MapKeyValueConfigはキーをそのまま返す", func(t *testing.T) {
		cfg := MapKeyValueConfig{"WebRTC-Bwe-CongestionWindow": "Enabled"}
		assert.Equal(t, "Enabled", cfg.Lookup("WebRTC-Bwe-CongestionWindow"))
		assert.Equal(t, "", cfg.Lookup("missing"))
	})

	t.Run("EmptyKeyValueConfigは常に空文字を返す", func(t *testing.T) {
		assert.Equal(t, "", EmptyKeyValueConfig{}.Lookup("anything"))
	})

	t.Run("isEnabledはEnabledプレフィックスのみtrue", func(t *testing.T) {
		cfg := MapKeyValueConfig{"a": "Enabled-100", "b": "Disabled", "c": ""}
		assert.True(t, isEnabled(cfg, "a"))
		assert.False(t, isEnabled(cfg, "b"))
		assert.False(t, isEnabled(cfg, "c"))
	})

	t.Run("isNotDisabledはDisabled以外すべてtrue", func(t *testing.T) {
		cfg := MapKeyValueConfig{"a": "Enabled", "b": "Disabled", "c": ""}
		assert.True(t, isNotDisabled(cfg, "a"))
		assert.False(t, isNotDisabled(cfg, "b"))
		assert.True(t, isNotDisabled(cfg, "c"))
	})

	t.Run("SafeResetOnRouteChangeのパース", func(t *testing.T) {
		cfg := MapKeyValueConfig{"WebRTC-Bwe-SafeResetOnRouteChange": "Enabled,ack"}
		parsed := parseSafeResetOnRouteChange(cfg)
		assert.True(t, parsed.enabled)
		assert.True(t, parsed.useAcked)
	})
}
