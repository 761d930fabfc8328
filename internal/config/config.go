package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Mode         string        `mapstructure:"mode"`
	Port         int           `mapstructure:"port"`
	Secret       string        `mapstructure:"secret"`
	AnnouncedIP  string        `mapstructure:"announced_ip"`
	RTCMinPort   uint16        `mapstructure:"rtc_min_port"`
	RTCMaxPort   uint16        `mapstructure:"rtc_max_port"`
	MediaTimeout time.Duration `mapstructure:"media_timeout"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 5000)
	v.SetDefault("announced_ip", os.Getenv("ANNOUNCED_IP"))
	v.SetDefault("rtc_min_port", 2000)
	v.SetDefault("rtc_max_port", 4000)
	v.SetDefault("media_timeout", "10s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("config file not found (%s), using defaults\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
