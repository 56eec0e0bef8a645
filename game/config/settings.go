package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "GEMTABLE_"

var ErrInvalidConfig = errors.New("invalid configuration")

// Settings are the server's runtime settings.
type Settings struct {
	Addr                 string
	HeartbeatInterval    time.Duration
	HealthCheckInterval  time.Duration
	WarnThreshold        time.Duration
	TerminationThreshold time.Duration
	MaxMessageSize       int64
	SendBufferSize       int
	RateLimit            float64
	RateBurst            int
	RoomReapAfter        time.Duration
	LogLevel             string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Addr:                 ":8080",
		HeartbeatInterval:    10 * time.Second,
		HealthCheckInterval:  5 * time.Second,
		WarnThreshold:        20 * time.Second,
		TerminationThreshold: 30 * time.Second,
		MaxMessageSize:       8192,
		SendBufferSize:       256,
		RateLimit:            20,
		RateBurst:            40,
		RoomReapAfter:        5 * time.Minute,
		LogLevel:             "info",
	}
}

// fileSettings is the on-disk form. Pointers distinguish absent keys.
type fileSettings struct {
	Addr                   *string  `json:"addr"`
	HeartbeatIntervalMs    *int64   `json:"heartbeat_interval_ms"`
	HealthCheckIntervalMs  *int64   `json:"health_check_interval_ms"`
	WarnThresholdMs        *int64   `json:"warn_threshold_ms"`
	TerminationThresholdMs *int64   `json:"termination_threshold_ms"`
	MaxMessageSize         *int64   `json:"max_message_size"`
	SendBufferSize         *int     `json:"send_buffer_size"`
	RateLimit              *float64 `json:"rate_limit"`
	RateBurst              *int     `json:"rate_burst"`
	RoomReapAfterMs        *int64   `json:"room_reap_after_ms"`
	LogLevel               *string  `json:"log_level"`
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

func (f fileSettings) apply(s *Settings) {
	if f.Addr != nil {
		s.Addr = *f.Addr
	}
	if f.HeartbeatIntervalMs != nil {
		s.HeartbeatInterval = ms(*f.HeartbeatIntervalMs)
	}
	if f.HealthCheckIntervalMs != nil {
		s.HealthCheckInterval = ms(*f.HealthCheckIntervalMs)
	}
	if f.WarnThresholdMs != nil {
		s.WarnThreshold = ms(*f.WarnThresholdMs)
	}
	if f.TerminationThresholdMs != nil {
		s.TerminationThreshold = ms(*f.TerminationThresholdMs)
	}
	if f.MaxMessageSize != nil {
		s.MaxMessageSize = *f.MaxMessageSize
	}
	if f.SendBufferSize != nil {
		s.SendBufferSize = *f.SendBufferSize
	}
	if f.RateLimit != nil {
		s.RateLimit = *f.RateLimit
	}
	if f.RateBurst != nil {
		s.RateBurst = *f.RateBurst
	}
	if f.RoomReapAfterMs != nil {
		s.RoomReapAfter = ms(*f.RoomReapAfterMs)
	}
	if f.LogLevel != nil {
		s.LogLevel = *f.LogLevel
	}
}

func toFile(s Settings) fileSettings {
	hb := s.HeartbeatInterval.Milliseconds()
	hc := s.HealthCheckInterval.Milliseconds()
	warn := s.WarnThreshold.Milliseconds()
	term := s.TerminationThreshold.Milliseconds()
	reap := s.RoomReapAfter.Milliseconds()
	return fileSettings{
		Addr:                   &s.Addr,
		HeartbeatIntervalMs:    &hb,
		HealthCheckIntervalMs:  &hc,
		WarnThresholdMs:        &warn,
		TerminationThresholdMs: &term,
		MaxMessageSize:         &s.MaxMessageSize,
		SendBufferSize:         &s.SendBufferSize,
		RateLimit:              &s.RateLimit,
		RateBurst:              &s.RateBurst,
		RoomReapAfterMs:        &reap,
		LogLevel:               &s.LogLevel,
	}
}

// Load builds settings from defaults, the optional file at path and the
// environment, then validates them. An empty path skips the file.
func Load(path string) (Settings, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Settings, error) {
	s := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("failed to read config file: %w", err)
		}
		var f fileSettings
		if err := json.Unmarshal(data, &f); err != nil {
			return Settings{}, fmt.Errorf("failed to parse config: %w", err)
		}
		f.apply(&s)
	}

	if err := applyEnv(&s, lookup); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) error {
	var problems []string

	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	millis := func(key string, dst *time.Duration) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s%s: %q is not an integer", EnvPrefix, key, v))
			return
		}
		*dst = ms(n)
	}
	integer := func(key string, set func(int64)) {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s%s: %q is not an integer", EnvPrefix, key, v))
			return
		}
		set(n)
	}

	str("ADDR", &s.Addr)
	millis("HEARTBEAT_INTERVAL_MS", &s.HeartbeatInterval)
	millis("HEALTH_CHECK_INTERVAL_MS", &s.HealthCheckInterval)
	millis("WARN_THRESHOLD_MS", &s.WarnThreshold)
	millis("TERMINATION_THRESHOLD_MS", &s.TerminationThreshold)
	integer("MAX_MESSAGE_SIZE", func(n int64) { s.MaxMessageSize = n })
	integer("SEND_BUFFER_SIZE", func(n int64) { s.SendBufferSize = int(n) })
	integer("RATE_BURST", func(n int64) { s.RateBurst = int(n) })
	millis("ROOM_REAP_AFTER_MS", &s.RoomReapAfter)
	str("LOG_LEVEL", &s.LogLevel)

	if v, ok := lookup(EnvPrefix + "RATE_LIMIT"); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%sRATE_LIMIT: %q is not a number", EnvPrefix, v))
		} else {
			s.RateLimit = f
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Validate reports every out-of-range setting at once.
func (s Settings) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(s.Addr) == "" {
		add("addr is required")
	}
	if s.HeartbeatInterval <= 0 {
		add("heartbeat interval must be positive")
	}
	if s.HealthCheckInterval <= 0 {
		add("health check interval must be positive")
	}
	if s.TerminationThreshold <= 0 {
		add("termination threshold must be positive")
	}
	if s.WarnThreshold < 0 || s.WarnThreshold >= s.TerminationThreshold {
		add("warn threshold must be between 0 and the termination threshold")
	}
	if s.HeartbeatInterval > 0 && s.TerminationThreshold > 0 && s.HeartbeatInterval >= s.TerminationThreshold {
		add("heartbeat interval must be shorter than the termination threshold")
	}
	if s.MaxMessageSize <= 0 {
		add("max message size must be positive")
	}
	if s.SendBufferSize <= 0 {
		add("send buffer size must be positive")
	}
	if s.RateLimit < 0 {
		add("rate limit must not be negative")
	}
	if s.RateLimit > 0 && s.RateBurst <= 0 {
		add("rate burst must be positive when rate limiting is enabled")
	}
	if s.RoomReapAfter <= 0 {
		add("room reap delay must be positive")
	}
	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		add("log level %q is not recognized", s.LogLevel)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// Level returns the parsed log level, falling back to info.
func (s Settings) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(s.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
