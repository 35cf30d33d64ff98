package logger

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptions_Flags(t *testing.T) {
	o := NewOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	o.AddFlags(fs, "log.")

	require.NoError(t, fs.Parse([]string{"--log.level=debug", "--log.format=JSON"}))
	require.NoError(t, o.Complete())

	assert.Equal(t, "DEBUG", o.Level)
	assert.Equal(t, "json", o.Format)
	assert.NoError(t, o.Validate())
}

func TestOptions_ValidateRejectsUnknownEngine(t *testing.T) {
	o := NewOptions()
	o.Engine = "logrus"

	assert.ErrorContains(t, o.Validate(), "unsupported log engine")
}

func TestOptions_ValidateRejectsBadLevel(t *testing.T) {
	o := NewOptions()
	o.Level = "LOUD"

	assert.ErrorContains(t, o.Validate(), "invalid log level")
}
