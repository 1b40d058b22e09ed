package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Env is the process environment read at startup.
type Env struct {
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string `envconfig:"LOG_FORMAT" default:"text"`
	MetricsBackend string `envconfig:"METRICS_BACKEND"`
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	DatadogAddr    string `envconfig:"DATADOG_ADDR"`

	// DataURL overrides source.http.url.
	DataURL string `envconfig:"GENRECHART_DATA_URL"`
}

// LoadEnv reads Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := envconfig.Process("", &e); err != nil {
		return Env{}, fmt.Errorf("config: env: %w", err)
	}
	return e, nil
}

// Apply copies environment overrides onto p.
func (e Env) Apply(p *Pipeline) {
	if e.DataURL != "" {
		p.Source.HTTP.URL = e.DataURL
	}
}
