package rpc

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDown = errors.New("connection refused")

func TestParseAlgorithm(t *testing.T) {
	for in, want := range map[string]Algorithm{"": AlgorithmFastest, "fastest": AlgorithmFastest, "failover": AlgorithmFailover} {
		got, err := ParseAlgorithm(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAlgorithm("round-robin")
	assert.Error(t, err)
}

func TestPickFastest(t *testing.T) {
	endpoints := []Endpoint{
		{URL: "slow", Latency: 300 * time.Millisecond, BlockNumber: 100},
		{URL: "fast", Latency: 20 * time.Millisecond, BlockNumber: 99},
		{URL: "down", Err: errDown},
	}
	e, err := Pick(endpoints, AlgorithmFastest)
	require.NoError(t, err)
	assert.Equal(t, "fast", e.URL)
}

func TestPickFastestSkipsStale(t *testing.T) {
	endpoints := []Endpoint{
		{URL: "stale", Latency: 5 * time.Millisecond, BlockNumber: 90},
		{URL: "fresh", Latency: 80 * time.Millisecond, BlockNumber: 100},
	}
	e, err := Pick(endpoints, AlgorithmFastest)
	require.NoError(t, err)
	assert.Equal(t, "fresh", e.URL)
}

func TestPickFailoverKeepsOrder(t *testing.T) {
	endpoints := []Endpoint{
		{URL: "primary", Err: errDown},
		{URL: "secondary", Latency: 300 * time.Millisecond},
		{URL: "tertiary", Latency: time.Millisecond},
	}
	e, err := Pick(endpoints, AlgorithmFailover)
	require.NoError(t, err)
	assert.Equal(t, "secondary", e.URL)
}

func TestPickNoHealthy(t *testing.T) {
	for _, algo := range []Algorithm{AlgorithmFastest, AlgorithmFailover} {
		_, err := Pick([]Endpoint{{URL: "a", Err: errDown}}, algo)
		assert.ErrorIs(t, err, ErrNoHealthyRPC)

		_, err = Pick(nil, algo)
		assert.ErrorIs(t, err, ErrNoHealthyRPC)
	}
}
