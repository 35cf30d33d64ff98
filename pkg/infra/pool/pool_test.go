package pool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// ants starts its default pool on import; its workers live for the process.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).purgeStaleWorkers"),
		goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*poolCommon).ticktock"),
	)
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	_, err := New("bad", &Config{Capacity: 0})
	require.Error(t, err)
}

func TestSubmit(t *testing.T) {
	p, err := New("test", &Config{Capacity: 4})
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 4, p.Cap())

	var n atomic.Int32
	tasks := make([]func(), 20)
	for i := range tasks {
		tasks[i] = func() { n.Add(1) }
	}
	p.Go(context.Background(), tasks, func(int, error) { t.Error("no task should be skipped") })

	assert.Equal(t, int32(20), n.Load())
	st := p.Stats()
	assert.Equal(t, int64(20), st.Submitted)
	assert.Equal(t, int64(20), st.Completed)
}

func TestGoSkipsAfterCancel(t *testing.T) {
	p, err := New("cancel", nil)
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var skipped []int
	p.Go(ctx, []func(){func() {}, func() {}}, func(i int, err error) {
		assert.ErrorIs(t, err, context.Canceled)
		skipped = append(skipped, i)
	})
	assert.Equal(t, []int{0, 1}, skipped)
}

func TestPanicRecovered(t *testing.T) {
	var handled atomic.Bool
	p, err := New("panic", &Config{Capacity: 1, PanicHandler: func(any) { handled.Store(true) }})
	require.NoError(t, err)
	defer p.Release()

	p.Go(context.Background(), []func(){func() { panic("boom") }}, func(int, error) {})

	assert.True(t, handled.Load())
	assert.Equal(t, int64(1), p.Stats().Panics)
	assert.Equal(t, int64(0), p.Stats().Completed)
}

func TestSubmitAfterRelease(t *testing.T) {
	p, err := New("closed", nil)
	require.NoError(t, err)
	p.Release()
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}
