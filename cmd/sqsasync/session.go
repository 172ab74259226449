package main

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/rs/zerolog/log"

	"github.com/rafidka/sqsasync"
	"github.com/rafidka/sqsasync/internal/hub"
	"github.com/rafidka/sqsasync/internal/sqsapi"
)

const stopTimeout = 30 * time.Second

// session runs one command on an event loop. Callbacks and the start function
// all run on the loop goroutine.
type session struct {
	conn   *sqsasync.Connection
	loop   *hub.Hub
	cancel context.CancelFunc
	err    error

	// closing is set once the loop has exited; results drained after that
	// can no longer start follow-up requests.
	closing bool
}

// finish ends the loop with err as the command result.
func (s *session) finish(err error) {
	s.err = err
	s.cancel()
}

func runSession(ctx context.Context, start func(s *session)) error {
	st, err := loadSettings()
	if err != nil {
		return err
	}
	client, err := sqsapi.New(st.SQS)
	if err != nil {
		return err
	}

	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop := hub.New(clock.WallClock)
	conn, err := sqsasync.New(client, loop, st.Connection.Options()...)
	if err != nil {
		return err
	}
	s := &session{conn: conn, loop: loop, cancel: cancel}

	loop.Post(func() { start(s) })
	_ = loop.Run(ctx)

	s.closing = true
	conn.Close()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
	defer stopCancel()
	if parent.Err() != nil {
		// Interrupted: abandon in-flight requests such as a long poll.
		stopCancel()
	}
	if err := conn.Stop(stopCtx); err != nil && parent.Err() == nil {
		log.Warn().Err(err).Msg("connection did not stop cleanly")
	}
	// The loop is gone; deliver what the last requests produced here.
	for conn.Drain() > 0 {
	}
	loop.Close()
	return s.err
}
