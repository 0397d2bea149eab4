package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Model endpoint
	viper.SetDefault("model.endpoint_url", "")
	viper.SetDefault("model.generate_timeout", 60*time.Second)

	// Trigger pipeline
	viper.SetDefault("trigger.threshold", 0.2)
	viper.SetDefault("trigger.staleness", 120*time.Second)
	viper.SetDefault("trigger.cooldown", 1*time.Second)
	viper.SetDefault("trigger.admin_ids", []string{})

	// Transcript history
	viper.SetDefault("history.capacity", 10)
	viper.SetDefault("history.text_clamp", 800)

	// Personas
	viper.SetDefault("persona.file", "")
	viper.SetDefault("persona.names", map[string]string{})
	viper.SetDefault("persona.default", "")

	// Telegram
	viper.SetDefault("telegram.base_url", "https://api.telegram.org")
	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.allowed_chat_ids", []string{})

	// Logging
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
}
