package util

import (
	_ "embed"
	"fmt"
	"gopkg.in/yaml.v3"
	"log"
	"os"
	"strconv"
)

const Name = "andstatus"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		UserAgent         string  `yaml:"userAgent"`
		DatabaseFile      string  `yaml:"databaseFile"`
		HttpTimeoutSec    int     `yaml:"httpTimeoutSec"`
		Workers           int     `yaml:"workers"`
		RetryCeiling      int     `yaml:"retryCeiling"`
		CommandTimeoutSec int     `yaml:"commandTimeoutSec"`
		QueuePollSec      int     `yaml:"queuePollSec"`
		RequestsPerSec    float64 `yaml:"requestsPerSec"`
	}
}

func ReadConf() (*AppConfig, error) {

	c := &AppConfig{}

	// Try to resolve config file path (local first, then user dir)
	configPath := ResolveFilePath(ConfigFileName)

	var buf []byte
	var err error

	buf, err = os.ReadFile(configPath)
	if err != nil {
		// If file doesn't exist, use embedded config and create user config file
		log.Printf("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := GetConfigDir()
		if dirErr == nil {
			userConfigPath := configDir + "/" + ConfigFileName
			writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644)
			if writeErr != nil {
				log.Printf("Warning: could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Printf("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	if v := os.Getenv("ANDSTATUS_USERAGENT"); v != "" {
		c.Conf.UserAgent = v
	}

	if v := os.Getenv("ANDSTATUS_DATABASEFILE"); v != "" {
		c.Conf.DatabaseFile = v
	}

	if v := os.Getenv("ANDSTATUS_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.Workers = n
	}

	if v := os.Getenv("ANDSTATUS_RETRYCEILING"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.RetryCeiling = n
	}

	if v := os.Getenv("ANDSTATUS_COMMANDTIMEOUTSEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.CommandTimeoutSec = n
	}

	if v := os.Getenv("ANDSTATUS_HTTPTIMEOUTSEC"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fmt.Println(err)
		}
		c.Conf.HttpTimeoutSec = n
	}

	return c, nil
}
