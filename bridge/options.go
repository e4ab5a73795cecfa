package bridge

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

type Options struct {
	URL             string        `short:"u" long:"url" env:"MCP_SSE_URL" description:"remote mcp url" default:"http://127.0.0.1:9680/mcp"`
	Timeout         time.Duration `short:"t" long:"timeout" env:"MCP_BRIDGE_TIMEOUT" description:"default request timeout" default:"60s"`
	ReconnectDelay  time.Duration `short:"r" long:"reconnect-delay" env:"MCP_BRIDGE_RECONNECT_DELAY" description:"delay between push channel reconnect attempts" default:"5s"`
	ProtocolVersion string        `short:"p" long:"protocol" env:"MCP_PROTOCOL_VERSION" description:"protocol version sent on initialize" default:"2024-11-05"`
	BearerToken     string        `long:"token" env:"MCP_BEARER_TOKEN" description:"bearer token for the remote server"`
	Headers         []string      `short:"H" long:"header" description:"extra HTTP header as Name:Value, repeatable"`
	LogLevel        string        `short:"v" long:"log-level" env:"MCP_BRIDGE_LOG_LEVEL" description:"log level (debug, info, warn, error)" default:"info"`
}

// HeaderMap parses Headers.
func (o *Options) HeaderMap() (map[string]string, error) {
	ret := map[string]string{}
	for _, header := range o.Headers {
		name, value, ok := strings.Cut(header, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, errors.Newf("invalid header %q, expected Name:Value", header)
		}
		ret[name] = strings.TrimSpace(value)
	}
	return ret, nil
}

// Validate checks option values.
func (o *Options) Validate() error {
	if o.URL == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(o.URL, "http://") && !strings.HasPrefix(o.URL, "https://") {
		return errors.Newf("unsupported url %q, expected http(s)", o.URL)
	}
	if o.Timeout <= 0 {
		return errors.Newf("invalid timeout %v", o.Timeout)
	}
	if o.ReconnectDelay <= 0 {
		return errors.Newf("invalid reconnect delay %v", o.ReconnectDelay)
	}
	_, err := o.HeaderMap()
	return err
}
