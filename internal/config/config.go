package config

import (
	"errors"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
	Examples ExamplesConfig `mapstructure:"examples"`
}

// ServerConfig holds the remote service configuration
type ServerConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StorageConfig holds the local durable storage configuration
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// ExamplesConfig holds the example-question batch configuration
type ExamplesConfig struct {
	Questions       []string `mapstructure:"questions"`
	IntervalSeconds int      `mapstructure:"interval_seconds"`
}

// Timeout returns the request timeout as a duration.
func (s ServerConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// Interval returns the batch pacing interval as a duration.
func (e ExamplesConfig) Interval() time.Duration {
	return time.Duration(e.IntervalSeconds) * time.Second
}

// DefaultExampleQuestions are replayed by `ragchat examples` when the config
// file does not override them.
var DefaultExampleQuestions = []string{
	"什么是KMP算法？",
	"请解释快速排序的时间复杂度",
	"二叉树的前序遍历和中序遍历有什么区别？",
	"什么是动态规划？请举一个例子",
}

// Load loads the configuration from config.yaml, or from the file named by the
// CONFIG_PATH environment variable. A missing config file is not an error:
// every field has a usable default.
func Load() (*Config, error) {
	v := viper.New()
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		v.SetConfigFile(p)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/ragchat")
		}
	}

	v.SetDefault("server.base_url", "http://localhost:8000")
	v.SetDefault("server.timeout_seconds", 30)
	v.SetDefault("storage.db_path", "ragchat.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("examples.questions", DefaultExampleQuestions)
	v.SetDefault("examples.interval_seconds", 2)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
