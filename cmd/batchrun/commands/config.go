package commands

import (
	"errors"

	"github.com/spf13/viper"
)

// Config mirrors the CLI flags a .batchrun.yaml file may supply defaults
// for; explicit flags always win over config values.
type Config struct {
	Input          string          `mapstructure:"input"`
	InputFormat    string          `mapstructure:"input_format"`
	Evaluators     []string        `mapstructure:"evaluators"`
	Concurrency    int             `mapstructure:"concurrency"`
	Output         string          `mapstructure:"output"`
	ReportFormat   string          `mapstructure:"report_format"`
	StatePath      string          `mapstructure:"state_path"`
	StreamPath     string          `mapstructure:"stream_path"`
	StreamFormat   string          `mapstructure:"stream_format"`
	Anthropic      ProviderConfig  `mapstructure:"anthropic"`
	OpenAI         ProviderConfig  `mapstructure:"openai"`
	Gemini         ProviderConfig  `mapstructure:"gemini"`
}

type ProviderConfig struct {
	Model string `mapstructure:"model"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".batchrun")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return cfg, nil
		}
		return cfg, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
