package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	API    API    `yaml:"api"`
	Store  Store  `yaml:"store"`
	Cache  Cache  `yaml:"cache"`
	Google Google `yaml:"google"`
}

type API struct {
	BaseURL      string        `yaml:"base_url" env:"PETSESSION_API_URL" env-default:"https://api.petcare.example"`
	Timeout      time.Duration `yaml:"timeout" env-default:"15s"`
	ReadRetries  int           `yaml:"read_retries" env-default:"2"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env-default:"300ms"`
}

type Store struct {
	Dir    string `yaml:"dir" env:"PETSESSION_STORE_DIR" env-default:".petsession/secure"`
	Secret string `yaml:"secret" env:"PETSESSION_DEVICE_SECRET" env-required:"true"`
}

type Cache struct {
	Path string `yaml:"path" env:"PETSESSION_CACHE_PATH" env-default:".petsession/profile.json"`
}

type Google struct {
	Issuer       string `yaml:"issuer" env-default:"https://accounts.google.com"`
	ClientID     string `yaml:"client_id" env:"PETSESSION_GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"PETSESSION_GOOGLE_CLIENT_SECRET"`
	RedirectURL  string `yaml:"redirect_url"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); err != nil {
		panic("config file not found")
	}

	config, err := load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	return config
}

func load(path string) (*Config, error) {
	var config Config

	if err := cleanenv.ReadConfig(path, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
