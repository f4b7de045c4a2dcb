package config

import (
	"io/ioutil"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Environ returns the settings from the environment.
func Environ() (*Config, error) {
	cfg := Config{}
	err := envconfig.Process("", &cfg)
	defaults(&cfg)

	return &cfg, err
}

func defaults(c *Config) {
	if c.APIPort == "" {
		c.APIPort = "9000"
	}
	if c.ReportersConfig == "" {
		c.ReportersConfig = "reporters.yaml"
	}
}

// String returns the configuration in string format.
func (c *Config) String() string {
	out, _ := yaml.Marshal(c)
	return string(out)
}

type Config struct {
	Logging         Logging
	Host            string `envconfig:"HOST"`
	APIPort         string `envconfig:"API_PORT"`
	ReportersConfig string `envconfig:"REPORTERS_CONFIG"`
}

// Logging provides the logging configuration.
type Logging struct {
	Debug  bool `envconfig:"DEBUG"`
	Trace  bool `envconfig:"TRACE"`
	Color  bool `envconfig:"LOGS_COLOR"`
	Pretty bool `envconfig:"LOGS_PRETTY"`
	Text   bool `envconfig:"LOGS_TEXT"`
}

// ReporterSettings is one reporter block from the reporters file, kept
// loosely typed so shape validation stays in the reporter constructors.
type ReporterSettings map[string]interface{}

// Type returns the reporter kind of a block, e.g. "hipchat".
func (s ReporterSettings) Type() string {
	t, _ := s["type"].(string)
	return t
}

// LoadReporters parses the reporters file.
func LoadReporters(path string) ([]ReporterSettings, error) {
	body, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read reporters file")
	}

	var parsed struct {
		Reporters []map[interface{}]interface{} `yaml:"reporters"`
	}
	err = yaml.Unmarshal(body, &parsed)
	if err != nil {
		return nil, errors.Wrap(err, "cannot parse reporters file")
	}

	reporters := []ReporterSettings{}
	for _, block := range parsed.Reporters {
		settings := ReporterSettings{}
		for k, v := range block {
			key, ok := k.(string)
			if !ok {
				return nil, errors.Errorf("reporter setting keys must be strings, got %v", k)
			}
			settings[key] = v
		}
		reporters = append(reporters, settings)
	}
	return reporters, nil
}
