package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:        "info",
			DefaultProvider: "ollama",
			Timezone:        "Local",
		},
		Providers: map[string]ProviderConfig{
			"ollama": {
				Enabled:      true,
				APIBase:      "http://localhost:11434",
				DefaultModel: "llama3.1:8b",
			},
		},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
			Web: WebConfig{
				Enabled: true,
				Host:    "127.0.0.1",
				Port:    8080,
			},
			Websocket: WebsocketConfig{
				Enabled: false,
				Port:    8081,
				Path:    "/chat/ws",
			},
			CLI: CLIConfig{
				Enabled: true,
			},
		},
		Memory: MemoryConfig{
			Enabled:                   true,
			DBPath:                    "~/.meetly/meetly.db",
			MaxHistoryPerConversation: 100,
		},
		Contacts: ContactsConfig{
			APIBase: "https://people.googleapis.com/v1",
			Warmup:  true,
		},
		Calendar: CalendarConfig{
			APIBase:        "https://www.googleapis.com/calendar/v3",
			CalendarID:     "primary",
			WorkdayStart:   9,
			WorkdayEnd:     18,
			SlotStepMin:    30,
			MaxSuggestions: 3,
		},
		Scheduler: SchedulerConfig{
			DefaultDurationMin: 30,
		},
		Reminders: RemindersConfig{
			Enabled:  false,
			CronExpr: "0 8 * * *",
		},
		Email: EmailConfig{
			Enabled:  false,
			FromName: "Meetly",
		},
	}
}
