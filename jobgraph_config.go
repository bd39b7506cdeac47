package jobgraph

import (
	"github.com/eleven-am/jobgraph/internal/domain"
)

type Config = domain.Config

type EngineConfig = domain.EngineConfig

type BlockingExecutionConfig = domain.BlockingConfig

type HistoryConfig = domain.HistoryConfig

type StorageConfig = domain.StorageConfig

type MetricsConfig = domain.MetricsConfig

type TracingConfig = domain.TracingConfig

func DefaultConfig() *Config {
	return domain.DefaultConfig()
}

func DefaultEngineConfig() EngineConfig {
	return domain.DefaultEngineConfig()
}

func DefaultBlockingConfig() BlockingExecutionConfig {
	return domain.DefaultBlockingConfig()
}

func DefaultHistoryConfig() HistoryConfig {
	return domain.DefaultHistoryConfig()
}

func DefaultStorageConfig() StorageConfig {
	return domain.DefaultStorageConfig()
}

// LoadConfig reads a YAML configuration file over the defaults.
func LoadConfig(path string) (*Config, error) {
	return domain.LoadConfig(path)
}

func ParseConfig(data []byte) (*Config, error) {
	return domain.ParseConfig(data)
}
