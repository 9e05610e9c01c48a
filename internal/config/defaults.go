package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Hours: HoursConfig{
			Timezone:  "Asia/Karachi",
			OpenHour:  9,
			CloseHour: 21,
		},
		Responder: ResponderConfig{
			ShardWorkers:      4,
			HistoryWindow:     10,
			GenerationTimeout: 30,
			DedupCapacity:     4096,
			RatePerMinute:     30,
			RateBurst:         5,
		},
		Generation: GenerationConfig{
			APIBase: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Store: StoreConfig{
			DBPath:    "~/.ghartek-support/support.db",
			BusBuffer: 100,
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
		},
		Notify: NotifyConfig{
			Telegram: TelegramConfig{
				Enabled: false,
			},
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "/metrics",
		},
	}
}
