package core

import (
	"time"
)

type Config struct {
	Device    DeviceConfig
	Recommend RecommendConfig
	Session   SessionConfig
	Library   LibraryConfig
	Server    ServerConfig
	Log       LogConfig
	App       AppConfig
}

type DeviceConfig struct {
	Name       string
	DaemonURL  string
	EventsURL  string
	Volume     int
	CmdTimeout time.Duration
}

type RecommendConfig struct {
	BaseURL    string
	Timeout    time.Duration
	MaxResults int
}

type SessionConfig struct {
	Path string
}

type LibraryConfig struct {
	DBPath         string
	MaxTracks      int
	RecordCacheLen int
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	MetricsInterval time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type AppConfig struct {
	QuickSearches []string
}

func DefaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:       "TheCrate Player",
			DaemonURL:  "http://localhost:3678",
			EventsURL:  "ws://localhost:3678/events",
			Volume:     50,
			CmdTimeout: 5 * time.Second,
		},
		Recommend: RecommendConfig{
			BaseURL:    "http://localhost:5001",
			Timeout:    30 * time.Second,
			MaxResults: 24,
		},
		Session: SessionConfig{
			Path: "./thecrate_session.json",
		},
		Library: LibraryConfig{
			DBPath:         "./thecrate_library.db",
			MaxTracks:      10000,
			RecordCacheLen: 16,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MetricsInterval: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			QuickSearches: []string{
				"90s boom bap drums",
				"jazz piano chords",
				"lo-fi ambient",
				"trap hi-hats",
				"soul vocal chops",
				"vinyl crackle",
			},
		},
	}
}
