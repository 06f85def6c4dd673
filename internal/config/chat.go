package config

import "time"

const (
	// Socket
	WriteWait       = 10 * time.Second
	PongWait        = 60 * time.Second
	PingPeriod      = (PongWait * 9) / 10
	MaxFrameSize    = 64 * 1024
	SendBufferSize  = 256
	MaxInFlight     = 16 // concurrent handlers per socket
	TokenQueryParam = "token"

	// Messages
	DefaultPage      = 1
	DefaultPageLimit = 20
	MaxPageLimit     = 100

	// Fan-out
	FanoutChannel      = "fanout"
	PresenceKeyTTL     = 24 * time.Hour
	PresenceRefresh    = PresenceKeyTTL / 8
	FanoutBufferSize   = 1024
	ParticipantCacheSz = 4096
)
