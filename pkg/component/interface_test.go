package component_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legalstudy/pkg/component"
	"github.com/kart-io/legalstudy/pkg/validator"
)

type testOptions struct {
	Host      string        `mapstructure:"host" validate:"required,host"`
	Port      int           `mapstructure:"port" validate:"min=1,max=65535"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Endpoints []string      `mapstructure:"endpoints"`
	Primary   bool          `mapstructure:"primary"`
	Replica   bool          `mapstructure:"replica"`
}

func (o *testOptions) Complete() error {
	if o.Timeout == 0 {
		o.Timeout = time.Second
	}
	return nil
}

func (o *testOptions) Validate() error {
	if o.Primary && o.Replica {
		return errors.New("primary and replica are mutually exclusive")
	}
	return nil
}

var _ component.ConfigOptions = (*testOptions)(nil)

func TestLoad_DecodesOverDefaults(t *testing.T) {
	opts := &testOptions{Host: "localhost", Port: 6379}

	err := component.Load(map[string]any{
		"port":      "6380",
		"endpoints": "a:1,b:2",
	}, opts)
	require.NoError(t, err)

	assert.Equal(t, "localhost", opts.Host)
	assert.Equal(t, 6380, opts.Port)
	assert.Equal(t, time.Second, opts.Timeout)
	assert.Equal(t, []string{"a:1", "b:2"}, opts.Endpoints)
}

func TestLoad_TagValidation(t *testing.T) {
	err := component.Load(map[string]any{"port": 0}, &testOptions{})
	require.Error(t, err)

	var verrs *validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.NotEmpty(t, verrs.ForField("host"))
	assert.NotEmpty(t, verrs.ForField("port"))
}

func TestLoad_CrossFieldValidation(t *testing.T) {
	err := component.Load(map[string]any{
		"host": "db", "port": 1, "primary": true, "replica": "true",
	}, &testOptions{})
	assert.EqualError(t, err, "primary and replica are mutually exclusive")
}

func TestDecode_Error(t *testing.T) {
	var out testOptions
	err := component.Decode(map[string]any{"port": "x"}, &out)
	assert.ErrorContains(t, err, "decode config")
}
