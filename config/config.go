// Package config defines the transport core's tunables as plain structs
// with JSON tags and Default*() constructors.
package config

import (
	"time"

	"go.uber.org/multierr"
)

// SenderConfig configures the transport core's timeouts and pool sizes.
type SenderConfig struct {
	// IdleTCPTimeout is the idle watchdog budget for TCP channels.
	IdleTCPTimeout time.Duration `json:"idle_tcp_timeout"`

	// IdleUDPTimeout is the idle watchdog budget for UDP channels.
	IdleUDPTimeout time.Duration `json:"idle_udp_timeout"`

	// ConnectTimeout bounds how long a TCP connect attempt may take.
	ConnectTimeout time.Duration `json:"connect_timeout"`

	// HolePunchCandidates is N, the number of local UDP candidate ports
	// offered in a hole-punch hint message.
	HolePunchCandidates int `json:"hole_punch_candidates"`

	// RCONCacheSize bounds the LRU cache of messages awaiting delivery
	// over a reverse connection.
	RCONCacheSize int `json:"rcon_cache_size"`

	// ChannelPoolSize bounds how many concurrently open channels the
	// sender may hold.
	ChannelPoolSize int `json:"channel_pool_size"`
}

// DefaultSenderConfig returns sane defaults for a transport core running
// on a typical residential or cloud network path.
func DefaultSenderConfig() SenderConfig {
	return SenderConfig{
		IdleTCPTimeout:      5 * time.Second,
		IdleUDPTimeout:      2 * time.Second,
		ConnectTimeout:      5 * time.Second,
		HolePunchCandidates: 3,
		RCONCacheSize:       1024,
		ChannelPoolSize:     64,
	}
}

// Validate reports every field that fails to hold a sane value, combined
// into a single error via multierr so a misconfigured deployment sees the
// full list at once instead of fixing one field per restart.
func (c SenderConfig) Validate() error {
	var err error
	if c.IdleTCPTimeout <= 0 {
		err = multierr.Append(err, errInvalid("idle_tcp_timeout must be positive"))
	}
	if c.IdleUDPTimeout <= 0 {
		err = multierr.Append(err, errInvalid("idle_udp_timeout must be positive"))
	}
	if c.ConnectTimeout <= 0 {
		err = multierr.Append(err, errInvalid("connect_timeout must be positive"))
	}
	if c.HolePunchCandidates <= 0 {
		err = multierr.Append(err, errInvalid("hole_punch_candidates must be positive"))
	}
	if c.RCONCacheSize <= 0 {
		err = multierr.Append(err, errInvalid("rcon_cache_size must be positive"))
	}
	if c.ChannelPoolSize <= 0 {
		err = multierr.Append(err, errInvalid("channel_pool_size must be positive"))
	}
	return err
}
