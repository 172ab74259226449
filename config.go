package sqsasync

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config groups the connection tunables. Values may be taken from environment
// variables with the prefix "SQSASYNC_", e.g. SQSASYNC_WORKERS=8.
type Config struct {
	Workers       int           `envconfig:"WORKERS"        default:"50"`
	DrainInterval time.Duration `envconfig:"DRAIN_INTERVAL" default:"100ms"`
	// DrainLimit caps results per drain; negative means no cap.
	DrainLimit  int    `envconfig:"DRAIN_LIMIT"  default:"1000"`
	ErrorPolicy string `envconfig:"ERROR_POLICY" default:"deliver"`
}

// LoadConfig populates Config from environment variables (prefix SQSASYNC_).
func LoadConfig() (Config, error) {
	var c Config
	return c, envconfig.Process("SQSASYNC", &c)
}

// Options converts the non-zero fields of c into connection options.
func (c Config) Options() []Option {
	var opts []Option
	if c.Workers != 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}
	if c.DrainInterval != 0 {
		opts = append(opts, WithDrainInterval(c.DrainInterval))
	}
	if c.DrainLimit != 0 {
		opts = append(opts, WithDrainLimit(c.DrainLimit))
	}
	if c.ErrorPolicy != "" {
		opts = append(opts, WithErrorPolicy(ErrorPolicy(c.ErrorPolicy)))
	}
	return opts
}
