package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	tests := map[string]zap.AtomicLevel{
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"warn":    zap.NewAtomicLevelAt(zap.WarnLevel),
		"verbose": zap.NewAtomicLevelAt(zap.InfoLevel),
	}
	for level, want := range tests {
		t.Run(level, func(t *testing.T) {
			log, err := New(level, "console")
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(want.Level()))
			assert.False(t, log.Core().Enabled(want.Level()-1))
		})
	}
}
