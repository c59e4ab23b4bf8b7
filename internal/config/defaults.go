package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
			Prefix:   "!",
		},
		Transports: TransportsConfig{
			Discord: DiscordConfig{
				Enabled: false,
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
		},
		Completion: CompletionConfig{
			Model:           "gemini-2.0-flash",
			MaxOutputTokens: 16384,
			TopP:            0.2,
		},
		Engine: EngineConfig{
			MaxTurns:   20,
			CooldownMs: 500,
		},
		Store: StoreConfig{
			DBPath: "~/.replique/replique.db",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9180,
		},
	}
}
