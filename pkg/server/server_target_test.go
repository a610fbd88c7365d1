package server

import (
	"net/http/httptest"
	"testing"

	"github.com/rescache/rescache/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchTarget(t *testing.T) {
	targets, err := NewTargets(config.Upstreams{
		{Name: "upstream 1", Addr: "http://example.com", Path: "/bot"},
		{Name: "upstream 2", Addr: "http://example.com", Path: "/api/test"},
		{Name: "upstream 3", Addr: "http://example.com", Path: "/api"},
		{Name: "upstream 4", Addr: "http://example.com", Path: ""},
	})
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
	}{
		{"/bot", "upstream 1"},
		{"/bot/sub", "upstream 1"},
		{"/api/test", "upstream 2"},
		{"/api", "upstream 3"},
		{"/api/other", "upstream 3"},
		{"/", "upstream 4"},
		{"/anything", "upstream 4"},
	}

	for _, tc := range tests {
		t.Run(tc.path, func(t *testing.T) {
			req := httptest.NewRequest("GET", "http://proxy.local"+tc.path, nil)
			target, ok := targets.MatchTarget(req)
			require.True(t, ok)
			assert.Equal(t, tc.want, target.name)
		})
	}
}

func TestMatchTargetNoMatch(t *testing.T) {
	targets, err := NewTargets(config.Upstreams{
		{Name: "upstream 1", Addr: "http://example.com", Path: "/bot"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "http://proxy.local/other", nil)
	_, ok := targets.MatchTarget(req)
	assert.False(t, ok)
}

func TestNewTargetsInvalidAddr(t *testing.T) {
	_, err := NewTargets(config.Upstreams{
		{Name: "broken", Addr: "http://exa mple.com\x7f", Path: "/"},
	})
	assert.Error(t, err)
}
