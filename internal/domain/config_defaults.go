package domain

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxDepth        = 512
	DefaultPollingInterval = 300 * time.Millisecond
	DefaultInterruptGrace  = 10 * time.Second
)

func DefaultConfig() *Config {
	return &Config{
		Logger:   slog.Default(),
		Engine:   DefaultEngineConfig(),
		Blocking: DefaultBlockingConfig(),
		History:  DefaultHistoryConfig(),
		Storage:  DefaultStorageConfig(),
		Metrics:  DefaultMetricsConfig(),
		Tracing:  DefaultTracingConfig(),
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxDepth: DefaultMaxDepth,
	}
}

func DefaultBlockingConfig() BlockingConfig {
	return BlockingConfig{
		PollingInterval: DefaultPollingInterval,
		InterruptGrace:  DefaultInterruptGrace,
	}
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{}
}

func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		InMemory: true,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   true,
		Namespace: "jobgraph",
	}
}

func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:    true,
		TracerName: "github.com/eleven-am/jobgraph",
	}
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewConfigurationError("failed to read config file", err, WithDetail("path", path))
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*Config, error) {
	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, NewConfigurationError("invalid config document", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) WithLogger(logger *slog.Logger) *Config {
	c.Logger = logger
	return c
}

func (c *Config) WithMaxDepth(depth int) *Config {
	c.Engine.MaxDepth = depth
	return c
}

func (c *Config) WithMaxParallelEntries(limit int) *Config {
	c.Engine.MaxParallelEntries = limit
	return c
}

func (c *Config) WithMaxRepeats(repeats int) *Config {
	c.Engine.MaxRepeats = repeats
	return c
}

func (c *Config) WithHeartbeat(interval time.Duration) *Config {
	c.Engine.HeartbeatInterval = interval
	return c
}

func (c *Config) WithHistoryLimit(maxEntries int) *Config {
	c.History.MaxEntriesLogged = maxEntries
	return c
}

func (c *Config) WithPersistentHistory(dataDir string) *Config {
	c.History.Persist = true
	c.Storage.DataDir = dataDir
	c.Storage.InMemory = dataDir == ""
	return c
}

func (c *Config) WithBlockingPolling(interval, grace time.Duration) *Config {
	c.Blocking.PollingInterval = interval
	c.Blocking.InterruptGrace = grace
	return c
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return NewConfigError("logger", ErrInvalidInput)
	}
	if c.Engine.MaxDepth <= 0 {
		return NewConfigError("engine.max_depth", ErrInvalidInput)
	}
	if c.Engine.MaxParallelEntries < 0 {
		return NewConfigError("engine.max_parallel_entries", ErrInvalidInput)
	}
	if c.Engine.MaxRepeats < 0 {
		return NewConfigError("engine.max_repeats", ErrInvalidInput)
	}
	if c.Engine.HeartbeatInterval < 0 {
		return NewConfigError("engine.heartbeat_interval", ErrInvalidInput)
	}
	if c.Blocking.PollingInterval <= 0 {
		return NewConfigError("blocking.polling_interval", ErrInvalidInput)
	}
	if c.Blocking.InterruptGrace <= 0 {
		return NewConfigError("blocking.interrupt_grace", ErrInvalidInput)
	}
	if c.History.MaxEntriesLogged < 0 {
		return NewConfigError("history.max_entries_logged", ErrInvalidInput)
	}
	if c.History.Persist && !c.Storage.InMemory && c.Storage.DataDir == "" {
		return NewConfigError("storage.data_dir", ErrInvalidInput)
	}
	return nil
}
