package uuid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsUUIDv7(t *testing.T) {
	u := New()
	assert.NotEqual(t, Nil, u)
	assert.True(t, IsUUIDv7(u))
}

func TestTimestampExtraction(t *testing.T) {
	before := time.Now().Add(-time.Second)
	u := New()
	after := time.Now().Add(time.Second)

	ts := GetTimestampFromUUID(u)
	assert.True(t, ts.After(before))
	assert.True(t, ts.Before(after))
}

func TestParseRoundTrip(t *testing.T) {
	u := New()
	parsed, err := Parse(u.String())
	require.NoError(t, err)
	assert.Equal(t, u, parsed)
}
