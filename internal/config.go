package internal

import (
	"fmt"
	"time"
)

type Config struct {
	APIBaseURL  string `env:"API_BASE_URL,required=true"`
	PushBaseURL string `env:"PUSH_BASE_URL,required=true"`
	AuthToken   string `env:"AUTH_TOKEN,required=true"`
	LogLevel    string `env:"LOG_LEVEL,required=true"`

	BufferSize      int           `env:"BUFFER_SIZE,required=true"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT,required=true"`
	ReconnectMin    time.Duration `env:"RECONNECT_MIN,required=true"`
	ReconnectMax    time.Duration `env:"RECONNECT_MAX,required=true"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`

	DefaultRoomID int64 `env:"CHAT_ROOM_ID,default=0"`
	DebugPort     int   `env:"DEBUG_PORT,default=0"`
}

// ValidateBackoff rejects reconnect windows that would spin or never grow.
func (c Config) ValidateBackoff() error {
	if c.ReconnectMin <= 0 {
		return fmt.Errorf("RECONNECT_MIN must be positive, got %s", c.ReconnectMin)
	}
	if c.ReconnectMax < c.ReconnectMin {
		return fmt.Errorf("RECONNECT_MAX (%s) must not be below RECONNECT_MIN (%s)",
			c.ReconnectMax, c.ReconnectMin)
	}
	return nil
}
