package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rafidka/sqsasync/internal/sqsapi"
	"github.com/rafidka/sqsasync/internal/sqsfake"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return strings.TrimSpace(out.String())
}

func TestCLI_CreateSendReceive(t *testing.T) {
	fake := sqsfake.New()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	queueURL := run(t, "--endpoint", srv.URL, "create-queue", "jobs")
	require.Equal(t, srv.URL+"/"+sqsfake.AccountID+"/jobs", queueURL)

	msgID := run(t, "--endpoint", srv.URL, "send", "-q", queueURL, "hello", "world")
	require.NotEmpty(t, msgID)

	out := run(t, "--endpoint", srv.URL, "receive", "-q", queueURL, "--count", "1", "--wait", "0", "--delete")
	require.Equal(t, msgID+"\t1\thello world", out)
	require.Zero(t, fake.Store().Len("jobs"))
}

func TestCLI_ConfigFile(t *testing.T) {
	fake := sqsfake.New()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "sqsasync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sqs:
  endpoint: `+srv.URL+`
  protocol: json
  http_timeout: 5s
connection:
  workers: 2
  drain_interval: 20ms
`), 0o600))

	// Flag variables may hold values from earlier commands.
	configPath, endpoint, region, protocol, debug = path, "", "", "", false
	t.Cleanup(func() { configPath = "" })
	st, err := loadSettings()
	require.NoError(t, err)
	require.Equal(t, srv.URL, st.SQS.Endpoint)
	require.Equal(t, "json", st.SQS.Protocol)
	require.Equal(t, 5*time.Second, st.SQS.HTTPTimeout)
	require.Equal(t, 2, st.Connection.Workers)
	require.Equal(t, 20*time.Millisecond, st.Connection.DrainInterval)

	out := run(t, "--config", path, "create-queue", "cfg")
	require.Equal(t, srv.URL+"/"+sqsfake.AccountID+"/cfg", out)
}

func TestCLI_ServiceErrorFails(t *testing.T) {
	srv := httptest.NewServer(sqsfake.New())
	defer srv.Close()

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--endpoint", srv.URL, "send", "-q", srv.URL + "/" + sqsfake.AccountID + "/missing", "x"})
	err := cmd.Execute()
	require.ErrorContains(t, err, "NonExistentQueue")
}

func TestCLI_ReceiveInterruptAbandonsLongPoll(t *testing.T) {
	fake := sqsfake.New()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	queueURL := run(t, "--endpoint", srv.URL, "create-queue", "idle")

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--endpoint", srv.URL, "receive", "-q", queueURL, "--wait", "20", "--delete"})

	start := time.Now()
	require.NoError(t, cmd.ExecuteContext(ctx))
	require.Less(t, time.Since(start), 10*time.Second)
	require.Empty(t, out.String())
}

func TestPoller_DropsMessagesAfterShutdown(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)

	s := &session{closing: true}
	p := newPoller(s, receiveFlags{queueURL: "http://q", delete: true}, cmd)
	p.onReceive(&sqsapi.ReceiveMessageOutput{Messages: []sqsapi.Message{
		{MessageID: "m-1", ReceiptHandle: "rh-1", Body: "late"},
	}}, nil)

	require.Empty(t, out.String())
	require.Zero(t, p.received)
}
