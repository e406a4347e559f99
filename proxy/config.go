package proxy

import (
	"github.com/papercomputeco/ssechat/pkg/eventstream"
	"github.com/papercomputeco/ssechat/pkg/session"
)

// Config is the proxy server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// UpstreamURL is the upstream chat server URL (e.g., "http://localhost:3000")
	UpstreamURL string

	// Session controls how strictly relayed streams are validated.
	Session session.Options

	// Publisher is an optional event stream that announces stored turns.
	// If nil, stored turns are not published.
	Publisher eventstream.Publisher

	// NumWorkers is the storage worker count. Zero uses the pool default.
	NumWorkers uint
}
