// Package config loads the service's configuration via viper: env vars
// prefixed PODEBATERAP_, an optional config.yaml, and defaults, matching
// every key the debate orchestrator and its collaborators need.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved configuration for one process run.
type Config struct {
	HTTPAddr string

	LLMEndpoint   string
	LLMAPIKey     string
	LLMDeployment string

	TTSEndpoint string
	TTSAPIKey   string
	TTSRegion   string

	StoreConnection string

	VoicesMap           map[string]string
	VoicesDefaultMale   string
	VoicesDefaultFemale string

	PersonasSeed []string

	HeadlinesEndpoint string
	HeadlinesAPIKey   string

	KafkaBrokers []string

	SessionTTL time.Duration
}

// Load reads configuration from (in ascending priority) config.yaml in
// the working directory, then PODEBATERAP_-prefixed environment
// variables, falling back to the defaults set below.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PODEBATERAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	setDefaults(v)

	return Config{
		HTTPAddr: v.GetString("http.addr"),

		LLMEndpoint:   v.GetString("llm.endpoint"),
		LLMAPIKey:     v.GetString("llm.apiKey"),
		LLMDeployment: v.GetString("llm.deployment"),

		TTSEndpoint: v.GetString("tts.endpoint"),
		TTSAPIKey:   v.GetString("tts.apiKey"),
		TTSRegion:   v.GetString("tts.region"),

		StoreConnection: v.GetString("store.connection"),

		VoicesMap:           v.GetStringMapString("voices.map"),
		VoicesDefaultMale:   v.GetString("voices.defaultMale"),
		VoicesDefaultFemale: v.GetString("voices.defaultFemale"),

		PersonasSeed: v.GetStringSlice("personas.seed"),

		HeadlinesEndpoint: v.GetString("headlines.endpoint"),
		HeadlinesAPIKey:   v.GetString("headlines.apiKey"),

		KafkaBrokers: v.GetStringSlice("kafka.brokers"),

		SessionTTL: v.GetDuration("session.ttl"),
	}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("store.connection", "podebaterap.db")
	v.SetDefault("voices.defaultMale", "voice-male-default")
	v.SetDefault("voices.defaultFemale", "voice-female-default")
	v.SetDefault("personas.seed", []string{"MC Inflation", "DJ Deficit"})
	v.SetDefault("session.ttl", 15*time.Minute)
}
