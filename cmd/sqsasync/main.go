// Command sqsasync drives SQS queues through the asynchronous connection, and
// can serve an in-memory SQS endpoint for local work.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rafidka/sqsasync/internal/logger"
)

var (
	configPath string
	endpoint   string
	region     string
	protocol   string
	debug      bool
)

func main() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "sqsasync",
		Short:         "Send, receive and delete SQS messages through an async connection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(os.Getenv("SQSASYNC_LOG_LEVEL"))
			if err != nil {
				return err
			}
			if debug {
				level, _ = logger.ParseLevel("debug")
			}
			logger.InitConsole(level)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "SQS endpoint URL (overrides SQS_ENDPOINT)")
	rootCmd.PersistentFlags().StringVar(&region, "region", "", "AWS region (overrides SQS_REGION)")
	rootCmd.PersistentFlags().StringVar(&protocol, "protocol", "", "Wire protocol: query or json (overrides SQS_PROTOCOL)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging and HTTP dumps")

	rootCmd.AddCommand(newFakeServerCmd())
	rootCmd.AddCommand(newCreateQueueCmd())
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newReceiveCmd())

	return rootCmd
}
