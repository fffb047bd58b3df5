package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/kadtransport/config"
)

func TestDefaultSenderConfig_Validates(t *testing.T) {
	require.NoError(t, config.DefaultSenderConfig().Validate())
}

func TestSenderConfig_Validate_ReportsEveryBadField(t *testing.T) {
	var cfg config.SenderConfig
	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"idle_tcp_timeout",
		"idle_udp_timeout",
		"connect_timeout",
		"hole_punch_candidates",
		"rcon_cache_size",
		"channel_pool_size",
	} {
		assert.Contains(t, msg, want)
	}
}

func TestSenderConfig_Validate_SingleBadField(t *testing.T) {
	cfg := config.DefaultSenderConfig()
	cfg.ChannelPoolSize = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "channel_pool_size")
}
