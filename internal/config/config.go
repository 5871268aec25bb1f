package config

import "time"

const (
	// Telegram
	LongPollTimeoutSeconds = 60

	// Ops API
	JWTIssuer     = "helpline-service"
	AdminTokenTTL = 72 * time.Hour
	ServerAddr    = ":8080"

	// HTTP server
	ReadTimeout    = 10 * time.Second
	WriteTimeout   = 10 * time.Second
	MaxHeaderBytes = 1 << 20
)
