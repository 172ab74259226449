package workerpool

import (
	"github.com/kelseyhightower/envconfig"
)

// DefaultWorkers is the pool size used when Config.Workers is not positive.
const DefaultWorkers = 50

// Config groups the pool tunables. Values may be taken from environment
// variables with the prefix "WP_", e.g. WP_WORKERS=8.
type Config struct {
	// Name labels the pool's metrics.
	Name    string `envconfig:"NAME"    default:"default"`
	Workers int    `envconfig:"WORKERS" default:"50"`

	// PanicHandler is called with the recovered value when a handler panics.
	// Leave nil to only log.
	PanicHandler func(item any, recovered any) `envconfig:"-"`
}

// LoadConfig populates Config from environment variables (prefix WP_).
func LoadConfig() (Config, error) {
	var c Config
	return c, envconfig.Process("WP", &c)
}
