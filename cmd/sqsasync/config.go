package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rafidka/sqsasync"
	"github.com/rafidka/sqsasync/internal/sqsapi"
)

// fileConfig mirrors the environment configuration. Zero values leave the
// environment (or default) value in place.
type fileConfig struct {
	SQS struct {
		Endpoint        string        `yaml:"endpoint"`
		Region          string        `yaml:"region"`
		AccessKeyID     string        `yaml:"access_key_id"`
		SecretAccessKey string        `yaml:"secret_access_key"`
		SessionToken    string        `yaml:"session_token"`
		Protocol        string        `yaml:"protocol"`
		HTTPTimeout     time.Duration `yaml:"http_timeout"`
	} `yaml:"sqs"`
	Connection struct {
		Workers       int           `yaml:"workers"`
		DrainInterval time.Duration `yaml:"drain_interval"`
		DrainLimit    int           `yaml:"drain_limit"`
		ErrorPolicy   string        `yaml:"error_policy"`
	} `yaml:"connection"`
}

// settings is the resolved configuration: environment, then the config file,
// then flags.
type settings struct {
	SQS        sqsapi.Config
	Connection sqsasync.Config
}

func loadSettings() (settings, error) {
	var s settings
	var err error
	if s.SQS, err = sqsapi.LoadConfig(); err != nil {
		return s, fmt.Errorf("sqs config: %w", err)
	}
	if s.Connection, err = sqsasync.LoadConfig(); err != nil {
		return s, fmt.Errorf("connection config: %w", err)
	}

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return s, err
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return s, fmt.Errorf("parse %s: %w", configPath, err)
		}
		s.apply(fc)
	}

	setString(&s.SQS.Endpoint, endpoint)
	setString(&s.SQS.Region, region)
	setString(&s.SQS.Protocol, protocol)
	if debug {
		s.SQS.Debug = true
	}
	return s, nil
}

func (s *settings) apply(fc fileConfig) {
	setString(&s.SQS.Endpoint, fc.SQS.Endpoint)
	setString(&s.SQS.Region, fc.SQS.Region)
	setString(&s.SQS.AccessKeyID, fc.SQS.AccessKeyID)
	setString(&s.SQS.SecretAccessKey, fc.SQS.SecretAccessKey)
	setString(&s.SQS.SessionToken, fc.SQS.SessionToken)
	setString(&s.SQS.Protocol, fc.SQS.Protocol)
	if fc.SQS.HTTPTimeout > 0 {
		s.SQS.HTTPTimeout = fc.SQS.HTTPTimeout
	}

	if fc.Connection.Workers > 0 {
		s.Connection.Workers = fc.Connection.Workers
	}
	if fc.Connection.DrainInterval > 0 {
		s.Connection.DrainInterval = fc.Connection.DrainInterval
	}
	if fc.Connection.DrainLimit != 0 {
		s.Connection.DrainLimit = fc.Connection.DrainLimit
	}
	setString(&s.Connection.ErrorPolicy, fc.Connection.ErrorPolicy)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
