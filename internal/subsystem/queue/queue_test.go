package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legalstudy/internal/bootstrap"
	"github.com/kart-io/legalstudy/internal/subsystem/client"
)

// fakeJS records calls and returns preconfigured responses.
type fakeJS struct {
	// streamInfoErr is keyed by stream name; a missing entry means "exists".
	streamInfoErr map[string]error
	addStreamErr  error

	added   []*nats.StreamConfig
	updated []string
}

func (f *fakeJS) StreamInfo(stream string, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	if err := f.streamInfoErr[stream]; err != nil {
		return nil, err
	}
	return &nats.StreamInfo{}, nil
}

func (f *fakeJS) AddStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.added = append(f.added, cfg)
	return &nats.StreamInfo{}, f.addStreamErr
}

func (f *fakeJS) UpdateStream(cfg *nats.StreamConfig, _ ...nats.JSOpt) (*nats.StreamInfo, error) {
	f.updated = append(f.updated, cfg.Name)
	return &nats.StreamInfo{}, nil
}

func hooksWith(js jsContext, connErr error) *Hooks {
	h := NewHooks("queue")
	h.connect = func(*Options) (jsContext, func(), error) {
		if connErr != nil {
			return nil, func() {}, connErr
		}
		return js, func() {}, nil
	}
	return h
}

func streamsConfig() bootstrap.Config {
	return bootstrap.Config{
		"url": "nats://queue:4222",
		"streams": []map[string]any{
			{"name": "CASE_EVENTS", "subjects": "case.*.event", "retention": "Interest", "max-age": "168h"},
			{"name": "STUDY_JOBS", "subjects": []string{"study.jobs.>"}},
		},
	}
}

func TestLoad(t *testing.T) {
	opts, err := Load(streamsConfig())
	require.NoError(t, err)
	require.Len(t, opts.Streams, 2)
	assert.Equal(t, []string{"case.*.event"}, opts.Streams[0].Subjects)
	assert.Equal(t, "interest", opts.Streams[0].Retention)
	assert.Equal(t, 168*time.Hour, opts.Streams[0].MaxAge)
	assert.Equal(t, "limits", opts.Streams[1].Retention)
	assert.Equal(t, "CASE_EVENTS", opts.ProbeStream)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  bootstrap.Config
	}{
		{"http url", bootstrap.Config{"url": "http://queue:4222"}},
		{"stream without subjects", bootstrap.Config{"streams": []map[string]any{{"name": "A"}}}},
		{"dotted name", bootstrap.Config{"streams": []map[string]any{{"name": "a.b", "subjects": "x"}}}},
		{"duplicate", bootstrap.Config{"streams": []map[string]any{
			{"name": "A", "subjects": "x"},
			{"name": "A", "subjects": "y"},
		}}},
		{"bad retention", bootstrap.Config{"streams": []map[string]any{{"name": "A", "subjects": "x", "retention": "forever"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestHooks_ProvisionCreatesAndUpdates(t *testing.T) {
	js := &fakeJS{streamInfoErr: map[string]error{"CASE_EVENTS": nats.ErrStreamNotFound}}
	l := bootstrap.New("queue", hooksWith(js, nil), bootstrap.WithConfig(streamsConfig()))

	require.NoError(t, l.Run(context.Background()))

	require.Len(t, js.added, 1)
	assert.Equal(t, "CASE_EVENTS", js.added[0].Name)
	assert.Equal(t, nats.InterestPolicy, js.added[0].Retention)
	assert.Equal(t, []string{"STUDY_JOBS"}, js.updated)

	streams, ok := l.Status().Data("queue.streams")
	require.True(t, ok)
	assert.Equal(t, []string{"CASE_EVENTS", "STUDY_JOBS"}, streams)
}

func TestHooks_MissingProbeStreamIsReachable(t *testing.T) {
	js := &fakeJS{streamInfoErr: map[string]error{"CASE_EVENTS": nats.ErrStreamNotFound}}
	h := hooksWith(js, nil)
	assert.NoError(t, h.TestConnection(context.Background(), streamsConfig()))
}

func TestHooks_StreamInfoErrorFailsConnection(t *testing.T) {
	js := &fakeJS{streamInfoErr: map[string]error{"CASE_EVENTS": errors.New("jetstream not enabled")}}
	h := hooksWith(js, nil)
	err := h.TestConnection(context.Background(), streamsConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jetstream not enabled")
}

func TestHooks_AddStreamFailureFailsInit(t *testing.T) {
	js := &fakeJS{
		streamInfoErr: map[string]error{"CASE_EVENTS": nats.ErrStreamNotFound},
		addStreamErr:  errors.New("insufficient resources"),
	}
	l := bootstrap.New("queue", hooksWith(js, nil), bootstrap.WithConfig(streamsConfig()))

	err := l.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, bootstrap.ErrInitialization)
	assert.True(t, l.Status().IsFailed())
}

func TestHooks_BreakerOpens(t *testing.T) {
	h := hooksWith(nil, errors.New("connection refused"))

	for range 3 {
		assert.Error(t, h.TestConnection(context.Background(), nil))
	}
	assert.ErrorIs(t, h.TestConnection(context.Background(), nil), client.ErrCircuitOpen)
}
