// Package httpclient provides an instrumented HTTP client with OTEL tracing and metrics.
package httpclient

import "time"

// ClientOptions holds configuration for the instrumented HTTP client.
type ClientOptions struct {
	providerName   string
	baseURL        string
	headers        map[string]string
	requestTimeout time.Duration
}

// ClientOption configures ClientOptions.
type ClientOption func(*ClientOptions)

// WithProviderName labels the request counter and spans, e.g. the exchange id.
func WithProviderName(name string) ClientOption {
	return func(o *ClientOptions) {
		o.providerName = name
	}
}

// WithBaseURL sets the URL prefix for relative paths.
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.baseURL = url
	}
}

// WithHeaders sets headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		o.headers = headers
	}
}

// WithRequestTimeout overrides the per-request timeout. Zero keeps the default.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		if timeout > 0 {
			o.requestTimeout = timeout
		}
	}
}
