// Package shared provides configuration management for the mission dispatcher.
//
// This file replaces the teacher's single DEBUG env var with a
// github.com/spf13/viper-backed loader bound to the cobra flags declared in
// cmd/dispatch and cmd/database, plus .env support via godotenv for local
// development, matching the teacher's main.go bootstrap order.
package shared

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// DBReconnectPeriod is the fixed backoff between Store.watch reconnect
	// attempts (§5 "Reconnect periods: store 0.5 s").
	DBReconnectPeriod = 500 * time.Millisecond

	// BrokerReconnectPeriod is the fixed backoff between broker reconnect
	// attempts (§5 "Reconnect periods: ... broker 0.5 s").
	BrokerReconnectPeriod = 500 * time.Millisecond

	// EventBusBufferSize bounds each gateway websocket connection's queue of
	// event-bus frames waiting to be written.
	EventBusBufferSize = 1000
)

// LoadDotEnv loads a local .env file if present. Missing files are not an
// error: production deployments configure entirely through flags/env.
func LoadDotEnv(path string) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		Warnf("failed to load %s: %v", path, err)
	}
}

// NewViper returns a viper instance that reads prefixed environment
// variables automatically, for binding alongside cobra flags.
func NewViper(envPrefix string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	return v
}
