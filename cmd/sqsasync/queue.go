package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rafidka/sqsasync/internal/sqsapi"
)

func newCreateQueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-queue NAME",
		Short: "Create a queue and print its URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd.Context(), func(s *session) {
				err := s.conn.CreateQueue(args[0], func(v any, err error) {
					if err != nil {
						s.finish(err)
						return
					}
					fmt.Fprintln(cmd.OutOrStdout(), v.(*sqsapi.CreateQueueOutput).QueueURL)
					s.finish(nil)
				})
				if err != nil {
					s.finish(err)
				}
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	var queueURL string
	var delay int

	cmd := &cobra.Command{
		Use:   "send BODY...",
		Short: "Send a message and print its ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := strings.Join(args, " ")
			return runSession(cmd.Context(), func(s *session) {
				err := s.conn.SendMessage(queueURL, body, delay, func(v any, err error) {
					if err != nil {
						s.finish(err)
						return
					}
					fmt.Fprintln(cmd.OutOrStdout(), v.(*sqsapi.SendMessageOutput).MessageID)
					s.finish(nil)
				})
				if err != nil {
					s.finish(err)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&queueURL, "queue-url", "q", "", "Queue URL (required)")
	cmd.Flags().IntVar(&delay, "delay", 0, "Delay in seconds before the message becomes visible")
	_ = cmd.MarkFlagRequired("queue-url")
	return cmd
}
