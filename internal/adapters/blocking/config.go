package blocking

import (
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/jobgraph/internal/domain"
)

const (
	OptionBlockingExecution = "blockingExecution"
	OptionPollingInterval   = "blockingPollingIntervalMs"
	OptionInterruptGrace    = "interruptGraceMs"
)

// Config is the string keyed option set of a blocking entry. Values may
// reference variables and are resolved before every execution.
type Config map[string]string

func DefaultConfig() Config {
	return Config{
		OptionBlockingExecution: "true",
		OptionPollingInterval:   strconv.FormatInt(domain.DefaultPollingInterval.Milliseconds(), 10),
		OptionInterruptGrace:    strconv.FormatInt(domain.DefaultInterruptGrace.Milliseconds(), 10),
	}
}

func (c Config) Get(key string) string {
	return c[key]
}

func (c Config) Set(key, value string) Config {
	c[key] = value
	return c
}

func (c Config) Clone() Config {
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Config) Resolve(vars domain.Variables) Config {
	out := c.Clone()
	if vars == nil {
		return out
	}
	for k, v := range out {
		out[k] = vars.Substitute(v)
	}
	return out
}

// References reports whether any value still refers to a variable.
func (c Config) References() bool {
	for _, v := range c {
		if strings.Contains(v, "${") || strings.Contains(v, "%%") {
			return true
		}
	}
	return false
}

func (c Config) Bool(key string, fallback bool) bool {
	raw := strings.TrimSpace(c[key])
	switch strings.ToUpper(raw) {
	case "Y", "YES":
		return true
	case "N", "NO":
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return value
}

func (c Config) Int(key string, fallback int64) int64 {
	value, err := strconv.ParseInt(strings.TrimSpace(c[key]), 10, 64)
	if err != nil {
		return fallback
	}
	return value
}

// Millis reads a millisecond option, falling back when it is missing or not
// positive.
func (c Config) Millis(key string, fallback time.Duration) time.Duration {
	ms := c.Int(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func (c Config) Blocking() bool {
	return c.Bool(OptionBlockingExecution, true)
}

func (c Config) PollingInterval() time.Duration {
	return c.Millis(OptionPollingInterval, domain.DefaultPollingInterval)
}

func (c Config) InterruptGrace() time.Duration {
	return c.Millis(OptionInterruptGrace, domain.DefaultInterruptGrace)
}
