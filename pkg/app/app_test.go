package app

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testOptions struct {
	Name      string        `mapstructure:"name"`
	Workers   int           `mapstructure:"workers"`
	Timeout   time.Duration `mapstructure:"timeout"`
	completed bool
}

func (o *testOptions) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Name, "name", o.Name, "name")
	fs.IntVar(&o.Workers, "workers", o.Workers, "workers")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "timeout")
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error {
	if o.Workers <= 0 {
		return errors.New("workers must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, opts *testOptions, args ...string) (bool, error) {
	t.Helper()
	ran := false
	a := NewApp(
		WithName("apptest"),
		WithOptions(opts),
		WithSilence(),
		WithRunFunc(func() error { ran = true; return nil }),
	)
	if args == nil {
		args = []string{}
	}
	a.Command().SetArgs(args)
	err := a.Command().Execute()
	return ran, err
}

func TestApp_FileThenFlags(t *testing.T) {
	path := writeFile(t, "name: from-file\nworkers: 3\ntimeout: 5s\n")
	opts := &testOptions{Workers: 1}

	ran, err := execute(t, opts, "-c", path, "--workers=8")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, "from-file", opts.Name)
	assert.Equal(t, 8, opts.Workers, "explicit flags win over the file")
	assert.Equal(t, 5*time.Second, opts.Timeout)
}

func TestApp_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, "name: from-file\nworkers: 2\n")
	t.Setenv("APPTEST_NAME", "from-env")
	opts := &testOptions{}

	_, err := execute(t, opts, "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", opts.Name)
	assert.Equal(t, 2, opts.Workers)
}

func TestApp_ExpandsEnvReferences(t *testing.T) {
	t.Setenv("APPTEST_SECRET", "s3cret")
	path := writeFile(t, "name: \"${APPTEST_SECRET}-$APPTEST_UNSET\"\nworkers: 1\n")
	opts := &testOptions{}

	_, err := execute(t, opts, "-c", path)
	require.NoError(t, err)
	assert.Equal(t, "s3cret-$APPTEST_UNSET", opts.Name)
}

func TestApp_ValidationErrorStopsRun(t *testing.T) {
	path := writeFile(t, "workers: 0\n")
	opts := &testOptions{}

	ran, err := execute(t, opts, "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be positive")
	assert.False(t, ran)
}

func TestApp_BadConfigFile(t *testing.T) {
	path := writeFile(t, "name: [unterminated\n")
	ran, err := execute(t, &testOptions{Workers: 1}, "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
	assert.False(t, ran)
}

func TestApp_MissingSearchedConfigIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	ran, err := execute(t, &testOptions{Workers: 1})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "LEGALSTUDY_BOOTSTRAP", EnvPrefix("legalstudy-bootstrap"))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("APPTEST_HOST", "db.internal")
	assert.Equal(t, "db.internal:5432", ExpandEnv("${APPTEST_HOST}:5432"))
	assert.Equal(t, "db.internal", ExpandEnv("$APPTEST_HOST"))
	assert.Equal(t, "${APPTEST_NOPE}", ExpandEnv("${APPTEST_NOPE}"))
}
