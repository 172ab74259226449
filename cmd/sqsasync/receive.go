package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rafidka/sqsasync"
	"github.com/rafidka/sqsasync/internal/sqsapi"
)

type receiveFlags struct {
	queueURL    string
	count       int
	maxMessages int
	wait        int
	visibility  int
	delete      bool
}

func newReceiveCmd() *cobra.Command {
	var f receiveFlags

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Poll a queue and print messages as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSession(ctx, func(s *session) {
				newPoller(s, f, cmd).poll()
			})
		},
	}
	cmd.Flags().StringVarP(&f.queueURL, "queue-url", "q", "", "Queue URL (required)")
	cmd.Flags().IntVarP(&f.count, "count", "n", 0, "Exit after this many messages (0 runs until interrupted)")
	cmd.Flags().IntVar(&f.maxMessages, "max-messages", 1, "Messages per receive call (1-10)")
	cmd.Flags().IntVar(&f.wait, "wait", 20, "Long-poll wait in seconds")
	cmd.Flags().IntVar(&f.visibility, "visibility", 0, "Visibility timeout in seconds (0 keeps the queue default)")
	cmd.Flags().BoolVar(&f.delete, "delete", false, "Delete each message after printing it")
	_ = cmd.MarkFlagRequired("queue-url")
	return cmd
}

// poller issues one receive at a time. It runs entirely on the loop
// goroutine, so its fields need no locking.
type poller struct {
	s        *session
	flags    receiveFlags
	cmd      *cobra.Command
	backoff  *backoff.ExponentialBackOff
	received int
}

func newPoller(s *session, f receiveFlags, cmd *cobra.Command) *poller {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return &poller{s: s, flags: f, cmd: cmd, backoff: b}
}

func (p *poller) poll() {
	wait := p.flags.wait
	err := p.s.conn.ReceiveMessage(p.flags.queueURL, sqsasync.ReceiveOptions{
		NumberOfMessages:     p.flags.maxMessages,
		VisibilityTimeout:    p.flags.visibility,
		SystemAttributeNames: []string{"ApproximateReceiveCount"},
		WaitTimeSeconds:      &wait,
	}, p.onReceive)
	if err != nil {
		p.s.finish(err)
	}
}

func (p *poller) onReceive(v any, err error) {
	if p.s.closing {
		// Deletes can no longer be sent; leave the messages to reappear.
		if err == nil {
			n := len(v.(*sqsapi.ReceiveMessageOutput).Messages)
			log.Debug().Int("messages", n).Msg("dropping messages received during shutdown")
		}
		return
	}
	if err != nil {
		d := p.backoff.NextBackOff()
		log.Warn().Err(err).Dur("retry_in", d).Msg("receive failed")
		p.s.loop.AfterFunc(d, p.poll)
		return
	}
	p.backoff.Reset()

	for _, m := range v.(*sqsapi.ReceiveMessageOutput).Messages {
		fmt.Fprintf(p.cmd.OutOrStdout(), "%s\t%s\t%s\n", m.MessageID, m.Attributes["ApproximateReceiveCount"], m.Body)
		if p.flags.delete {
			p.deleteMessage(m)
		}
		p.received++
		if p.flags.count > 0 && p.received >= p.flags.count {
			p.s.finish(nil)
			return
		}
	}
	p.s.loop.Post(p.poll)
}

func (p *poller) deleteMessage(m sqsapi.Message) {
	id := m.MessageID
	err := p.s.conn.DeleteMessage(p.flags.queueURL, m.ReceiptHandle, func(_ any, err error) {
		if err != nil {
			log.Warn().Err(err).Str("message_id", id).Msg("delete failed")
			return
		}
		log.Debug().Str("message_id", id).Msg("deleted")
	})
	if err != nil {
		log.Warn().Err(err).Str("message_id", id).Msg("delete not submitted")
	}
}
