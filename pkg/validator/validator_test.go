package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/kart-io/legalstudy/pkg/errors"
)

type sample struct {
	Host string `mapstructure:"host" validate:"required,host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"ssl-mode" validate:"omitempty,oneof=disable require"`
}

func TestStruct_Valid(t *testing.T) {
	assert.NoError(t, Struct(&sample{Host: "db.internal", Port: 5432}))
	assert.NoError(t, Struct(&sample{Host: "10.0.0.1", Port: 1, Mode: "require"}))
}

func TestStruct_UsesConfigKeys(t *testing.T) {
	err := Struct(&sample{Host: "", Port: 70000, Mode: "bogus"})
	require.Error(t, err)

	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, 3, verrs.Count())
	assert.NotEmpty(t, verrs.ForField("host"))
	assert.NotEmpty(t, verrs.ForField("port"))
	assert.NotEmpty(t, verrs.ForField("ssl-mode"))
	assert.Contains(t, err.Error(), "validation failed: ")
}

func TestStruct_HostRule(t *testing.T) {
	err := Struct(&sample{Host: "not a host!", Port: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host must be a valid hostname or IP address")
}

func TestStructWithLang_Chinese(t *testing.T) {
	err := Global().StructWithLang(&sample{Host: "bad host", Port: 1}, LangZH)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "必须是有效的主机名或IP地址")
}

type tlsSample struct {
	CAFile string `mapstructure:"ca-file" validate:"required"`
}

type nestedSample struct {
	Host string    `mapstructure:"host" validate:"required,host"`
	TLS  tlsSample `mapstructure:"tls"`
}

func TestStruct_NestedKeys(t *testing.T) {
	err := Struct(&nestedSample{})
	require.Error(t, err)

	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, []string{"host", "tls.ca-file"}, verrs.Keys())
	assert.NotEmpty(t, verrs.ForField("tls.ca-file"))
	assert.NotEmpty(t, verrs.ForField("ca-file"))
	assert.True(t, errors.Is(err, pkgerrors.ErrConfigInvalid))
}

func TestStruct_NotAStruct(t *testing.T) {
	err := Struct(42)
	require.Error(t, err)

	var verrs *ValidationErrors
	assert.False(t, errors.As(err, &verrs))
}
