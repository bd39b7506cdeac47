package blocking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eleven-am/jobgraph/internal/adapters/variables"
	"github.com/eleven-am/jobgraph/internal/domain"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.True(t, config.Blocking())
	assert.Equal(t, domain.DefaultPollingInterval, config.PollingInterval())
	assert.Equal(t, domain.DefaultInterruptGrace, config.InterruptGrace())
}

func TestConfig_Bool(t *testing.T) {
	tests := []struct {
		raw      string
		expected bool
	}{
		{"true", true},
		{"false", false},
		{"Y", true},
		{"n", false},
		{"yes", true},
		{"0", false},
		{"", true},
		{"garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			config := Config{OptionBlockingExecution: tt.raw}
			assert.Equal(t, tt.expected, config.Blocking())
		})
	}
}

func TestConfig_MillisFallback(t *testing.T) {
	config := Config{
		OptionPollingInterval: "25",
		OptionInterruptGrace:  "-4",
	}

	assert.Equal(t, 25*time.Millisecond, config.PollingInterval())
	assert.Equal(t, domain.DefaultInterruptGrace, config.InterruptGrace())

	config.Set(OptionInterruptGrace, "not-a-number")
	assert.Equal(t, domain.DefaultInterruptGrace, config.InterruptGrace())
}

func TestConfig_Resolve(t *testing.T) {
	vars := variables.FromMap(map[string]string{"POLL": "50", "TARGET": "/tmp/out"})
	config := Config{
		OptionPollingInterval: "${POLL}",
		"target":              "%%TARGET%%/file.txt",
	}

	resolved := config.Resolve(vars)

	assert.Equal(t, 50*time.Millisecond, resolved.PollingInterval())
	assert.Equal(t, "/tmp/out/file.txt", resolved.Get("target"))
	assert.Equal(t, "${POLL}", config.Get(OptionPollingInterval))
}

func TestConfig_ResolveWithoutVariables(t *testing.T) {
	config := Config{"target": "${MISSING}"}
	assert.Equal(t, "${MISSING}", config.Resolve(nil).Get("target"))
}

func TestConfig_References(t *testing.T) {
	assert.True(t, Config{"a": "${X}"}.References())
	assert.True(t, Config{"a": "%%X%%"}.References())
	assert.False(t, Config{"a": "plain"}.References())
}
