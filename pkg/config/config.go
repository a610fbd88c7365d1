package config

import (
	"github.com/rescache/rescache/pkg/provider"
	"github.com/rescache/rescache/pkg/server/middleware"
	"github.com/rescache/rescache/pkg/utils/logger"
)

// Configuration is the root configuration.
type Configuration struct {
	Endpoints Endpoints `yaml:"listeners"`
	Upstreams Upstreams `yaml:"upstreams"`

	Cache    middleware.Config      `yaml:"cache"`
	Provider provider.BackendConfig `yaml:"provider"`

	API API           `yaml:"api"`
	Log logger.Config `yaml:"logging"`
}

// Endpoints holds the listeners by name.
type Endpoints map[string]*EndpointConfig

// EndpointConfig holds a single listener configuration.
type EndpointConfig struct {
	Addr string `yaml:"addr"`
}

// Upstreams holds the upstream targets.
type Upstreams []*UpstreamConfig

// UpstreamConfig holds a single upstream target: requests matching Path
// are proxied to Addr.
type UpstreamConfig struct {
	Name string `yaml:"name"`
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// API holds the admin API configuration.
type API struct {
	Port  int    `yaml:"port"`
	Path  string `yaml:"path,omitempty"`
	Debug bool   `yaml:"debug,omitempty"`

	// ACL is an optional list of client IPs allowed to use the API.
	// An empty list allows everyone.
	ACL []string `yaml:"acl,omitempty"`
}
