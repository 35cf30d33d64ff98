package id

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSorted(t *testing.T) {
	g := NewGenerator()
	fixed := time.UnixMilli(1_700_000_000_000)
	g.now = func() time.Time { return fixed }

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.Generate()
		require.Len(t, ids[i], 26)
	}
	assert.True(t, sort.StringsAreSorted(ids), "ids minted in the same millisecond must stay ordered")

	ts, err := Time(ids[0])
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), ts.UnixMilli())
}

func TestNewUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		s := New()
		_, dup := seen[s]
		require.False(t, dup)
		seen[s] = struct{}{}
	}
}

func TestTimeInvalid(t *testing.T) {
	_, err := Time("not-a-ulid")
	assert.Error(t, err)
}
