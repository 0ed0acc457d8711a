package core

import (
	"fmt"
	"strings"
)

type ProviderCredentials struct {
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
}

type Config struct {
	ServiceName string              `koanf:"service_name" mapstructure:"service_name"`
	Environment string              `koanf:"environment" mapstructure:"environment"`
	Uphold      ProviderCredentials `koanf:"uphold" mapstructure:"uphold"`
	Gemini      ProviderCredentials `koanf:"gemini" mapstructure:"gemini"`
	BitFlyer    ProviderCredentials `koanf:"bitflyer" mapstructure:"bitflyer"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "rewards",
		Environment: string(EnvironmentProduction),
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	return Environment(strings.TrimSpace(strings.ToLower(c.Environment))).Validate()
}

func (c Config) ResolvedEnvironment() Environment {
	return Environment(strings.TrimSpace(strings.ToLower(c.Environment)))
}
