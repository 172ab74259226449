package sqsapi

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the endpoint and credentials of the SQS client. Values may be
// taken from environment variables with the prefix "SQS_", e.g.
// SQS_ENDPOINT=http://localhost:9324.
type Config struct {
	// Endpoint receives requests that carry no QueueUrl. Empty selects the
	// regional AWS endpoint.
	Endpoint string `envconfig:"ENDPOINT"`
	Region   string `envconfig:"REGION" default:"us-east-1"`

	// Requests are signed with SigV4 when AccessKeyID is set.
	AccessKeyID     string `envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `envconfig:"SECRET_ACCESS_KEY"`
	SessionToken    string `envconfig:"SESSION_TOKEN"`

	// Protocol is the wire protocol for requests and responses: query or json.
	Protocol    string        `envconfig:"PROTOCOL"     default:"query"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"30s"`
	Debug       bool          `envconfig:"DEBUG"`
}

// LoadConfig populates Config from environment variables (prefix SQS_).
func LoadConfig() (Config, error) {
	var c Config
	return c, envconfig.Process("SQS", &c)
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://sqs.%s.amazonaws.com", c.Region)
}
