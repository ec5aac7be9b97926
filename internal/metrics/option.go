package metrics

import "strings"

type Provider string

const (
	PrometheusProvider    Provider = "prometheus"
	OTLPCollectorProvider Provider = "otlp_collector"
)

// OTLPCollector exports to a gRPC collector. Plain http:// endpoints skip TLS.
func OTLPCollector(endpoint string, headers map[string]string) ProviderCfg {
	return ProviderCfg{
		Provider: OTLPCollectorProvider,
		Endpoint: endpoint,
		Headers:  headers,
		Insecure: strings.HasPrefix(endpoint, "http://"),
	}
}

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)
		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName
		return config
	}
}

type PromServerConfig struct {
	port string
}

type PromOptionFn func(config PromServerConfig) PromServerConfig

// WithPort sets the scrape port; empty keeps the default.
func WithPort(port string) PromOptionFn {
	return func(config PromServerConfig) PromServerConfig {
		if port != "" {
			config.port = port
		}
		return config
	}
}
