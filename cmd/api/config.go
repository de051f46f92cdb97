package main

import (
	"encoding/json"
	"os"
)

// Config is the boot-only part of the configuration file. Runtime-swappable
// values (webhook url, timeout) are owned by the settings store, which
// re-reads the same file on reload.
type Config struct {
	HttpPort         int    `json:"http_port"`
	DbConnString     string `json:"db_conn_string"`
	RedisAddr        string `json:"redis_addr"`
	DispatchMaxRetry int    `json:"dispatch_max_retry"`
}

// ReadConfigJson reads json formatted configuration from the given file
func ReadConfigJson(configFile string) (*Config, error) {
	content, err := os.ReadFile(configFile)
	if err != nil {
		return nil, err
	}

	cfg := new(Config)

	if err = json.Unmarshal(content, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
