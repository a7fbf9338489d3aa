// Package tunables loads the core's tunable constants (segment size, window
// size, retransmission timeout) from an optional INI file, the same format
// this codebase otherwise uses for its structured object-dictionary files,
// falling back to the design defaults when no file is supplied.
package tunables

import (
	"time"

	"gopkg.in/ini.v1"
)

const (
	// DefaultSegmentSize bounds the total size of one wire segment
	// (header + payload), on the order of a typical UDP MTU.
	DefaultSegmentSize = 32 * 1024
	// DefaultWindowSize is the static go-back-N window, in segments.
	DefaultWindowSize = 4
	// DefaultTimeout is the retransmission timer used for every
	// finite-timeout wait in the protocol.
	DefaultTimeout = time.Second
)

// Blocking is the sentinel recv timeout meaning "wait forever".
const Blocking time.Duration = 0

// Config carries the protocol's tunable constants.
type Config struct {
	SegmentSize int
	WindowSize  int
	Timeout     time.Duration
}

// PayloadSize is the maximum payload carried by one segment, given this
// config's SegmentSize.
func (c Config) PayloadSize() int {
	return c.SegmentSize - headerSize
}

const headerSize = 12

// Default returns the design-default tunables.
func Default() Config {
	return Config{
		SegmentSize: DefaultSegmentSize,
		WindowSize:  DefaultWindowSize,
		Timeout:     DefaultTimeout,
	}
}

// Load reads tunables from an INI file at path, overriding only the keys
// present in the file's default section ("segment_size", "window_size",
// "timeout_ms"); any key absent from the file keeps its design default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	file, err := ini.Load(path)
	if err != nil {
		return Config{}, err
	}
	section := file.Section("")
	if key, err := section.GetKey("segment_size"); err == nil {
		if v, err := key.Int(); err == nil {
			cfg.SegmentSize = v
		}
	}
	if key, err := section.GetKey("window_size"); err == nil {
		if v, err := key.Int(); err == nil {
			cfg.WindowSize = v
		}
	}
	if key, err := section.GetKey("timeout_ms"); err == nil {
		if v, err := key.Int(); err == nil {
			cfg.Timeout = time.Duration(v) * time.Millisecond
		}
	}
	return cfg, nil
}
