package config

const (
	defaultPolicy = "strict"

	defaultUpstream    = "http://localhost:3000"
	defaultProxyListen = ":8080"
	defaultAPIListen   = ":8081"

	defaultClientTarget = "http://localhost:8080/chat/endpoint"

	defaultKafkaTopic = "ssechat.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Session: SessionConfig{
			Policy: defaultPolicy,
		},
		Proxy: ProxyConfig{
			Upstream: defaultUpstream,
			Listen:   defaultProxyListen,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Client: ClientConfig{
			Target: defaultClientTarget,
		},
		Publisher: PublisherConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
