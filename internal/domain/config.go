package domain

import (
	"log/slog"
	"time"
)

type Config struct {
	Logger *slog.Logger `json:"-" yaml:"-"`

	Engine   EngineConfig   `json:"engine" yaml:"engine"`
	Blocking BlockingConfig `json:"blocking" yaml:"blocking"`
	History  HistoryConfig  `json:"history" yaml:"history"`
	Storage  StorageConfig  `json:"storage" yaml:"storage"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
	Tracing  TracingConfig  `json:"tracing" yaml:"tracing"`
}

type EngineConfig struct {
	// MaxDepth bounds the recursion of a single walk; graphs may contain cycles.
	MaxDepth int `json:"max_depth" yaml:"max_depth"`
	// MaxParallelEntries bounds concurrently executing entries across
	// parallel branches. Zero means unbounded.
	MaxParallelEntries int `json:"max_parallel_entries" yaml:"max_parallel_entries"`
	// MaxRepeats bounds start entry repetitions. Zero repeats until stopped.
	MaxRepeats        int           `json:"max_repeats" yaml:"max_repeats"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval" yaml:"heartbeat_interval"`
}

type BlockingConfig struct {
	PollingInterval time.Duration `json:"polling_interval" yaml:"polling_interval"`
	InterruptGrace  time.Duration `json:"interrupt_grace" yaml:"interrupt_grace"`
}

type HistoryConfig struct {
	// MaxEntriesLogged caps retained entry outcomes, dropping the oldest.
	// Zero keeps everything.
	MaxEntriesLogged int  `json:"max_entries_logged" yaml:"max_entries_logged"`
	Persist          bool `json:"persist" yaml:"persist"`
}

type StorageConfig struct {
	DataDir    string `json:"data_dir" yaml:"data_dir"`
	InMemory   bool   `json:"in_memory" yaml:"in_memory"`
	SyncWrites bool   `json:"sync_writes" yaml:"sync_writes"`
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

type TracingConfig struct {
	Enabled    bool   `json:"enabled" yaml:"enabled"`
	TracerName string `json:"tracer_name" yaml:"tracer_name"`
}
