// Package sqsapi is a small blocking SQS client speaking the query protocol
// (or awsJson1_0 when configured). Its methods take a context and a keyword
// map so the async connection can resolve and call them by operation name.
package sqsapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/rafidka/sqsasync/internal/decode"
)

const jsonContentType = "application/x-amz-json-1.0"

// Option configures a Client during construction in New.
type Option func(*Client) error

// WithTransport replaces the base HTTP transport. Signing and debug logging
// are layered on top of it.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) error {
		if rt == nil {
			return fmt.Errorf("transport must not be nil")
		}
		c.transport = rt
		return nil
	}
}

// WithLogger sets the logger used for debug dumps and request logging.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// withClock overrides the signing time. Tests only.
func withClock(now func() time.Time) Option {
	return func(c *Client) error {
		c.now = now
		return nil
	}
}

// Client is safe for concurrent use.
type Client struct {
	cfg       Config
	http      *resty.Client
	decoder   *decode.Decoder
	transport http.RoundTripper
	logger    zerolog.Logger
	now       func() time.Time
}

// New builds a client for cfg.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Protocol == "" {
		cfg.Protocol = decode.DefaultProtocol
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	c := &Client{
		cfg:       cfg,
		transport: http.DefaultTransport,
		logger:    log.With().Str("component", "sqsapi").Logger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	dec, err := decode.New(decode.WithProtocol(cfg.Protocol))
	if err != nil {
		return nil, err
	}
	c.decoder = dec

	rt := c.transport
	if cfg.Debug {
		rt = &debugTransport{base: rt, logger: c.logger}
	}
	if cfg.AccessKeyID != "" {
		rt = &signingTransport{
			base:        rt,
			credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
			signer:      v4.NewSigner(),
			region:      cfg.Region,
			now:         c.now,
		}
	}

	c.http = resty.New().
		SetTransport(rt).
		SetTimeout(cfg.HTTPTimeout)
	return c, nil
}

// Protocol reports the wire protocol in use.
func (c *Client) Protocol() string { return c.cfg.Protocol }

// CreateQueue creates the queue named by params["QueueName"].
func (c *Client) CreateQueue(ctx context.Context, params map[string]any) (*CreateQueueOutput, error) {
	decoded, err := c.call(ctx, OpCreateQueue, params)
	if err != nil {
		return nil, err
	}
	return createQueueOutput(decoded), nil
}

// SendMessage sends params["MessageBody"] to params["QueueUrl"].
func (c *Client) SendMessage(ctx context.Context, params map[string]any) (*SendMessageOutput, error) {
	if err := requireQueueURL(params); err != nil {
		return nil, err
	}
	decoded, err := c.call(ctx, OpSendMessage, params)
	if err != nil {
		return nil, err
	}
	return sendMessageOutput(decoded), nil
}

// ReceiveMessage fetches messages from params["QueueUrl"].
func (c *Client) ReceiveMessage(ctx context.Context, params map[string]any) (*ReceiveMessageOutput, error) {
	if err := requireQueueURL(params); err != nil {
		return nil, err
	}
	decoded, err := c.call(ctx, OpReceiveMessage, params)
	if err != nil {
		return nil, err
	}
	return receiveMessageOutput(decoded), nil
}

// DeleteMessage deletes params["ReceiptHandle"] from params["QueueUrl"].
func (c *Client) DeleteMessage(ctx context.Context, params map[string]any) (*DeleteMessageOutput, error) {
	if err := requireQueueURL(params); err != nil {
		return nil, err
	}
	decoded, err := c.call(ctx, OpDeleteMessage, params)
	if err != nil {
		return nil, err
	}
	return &DeleteMessageOutput{Metadata: metadataFrom(decoded)}, nil
}

func requireQueueURL(params map[string]any) error {
	if s, _ := params["QueueUrl"].(string); s == "" {
		return ErrMissingQueueURL
	}
	return nil
}

// call sends one request and returns the decoded response. Error documents
// come back as *ServiceError.
func (c *Client) call(ctx context.Context, op string, params map[string]any) (map[string]any, error) {
	model := operations[op]
	target := c.cfg.endpoint()
	if u, _ := params["QueueUrl"].(string); strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		target = u
	}

	req := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true)
	switch c.cfg.Protocol {
	case "json":
		body, err := encodeJSON(params)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "encode %s", op)
		}
		req.SetHeader("Content-Type", jsonContentType).
			SetHeader("X-Amz-Target", "AmazonSQS."+op).
			SetBody(body)
	default:
		form, err := encodeQuery(op, params)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "encode %s", op)
		}
		req.SetFormDataFromValues(form)
	}

	start := c.now()
	resp, err := req.Post(target)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "%s %s", op, target)
	}
	raw := resp.RawBody()
	defer raw.Close()

	_, decoded, err := c.decoder.Decode(&decode.HTTPResponse{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Raw:        raw,
	}, model)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("operation", op).
		Int("status_code", resp.StatusCode()).
		Dur("elapsed", c.now().Sub(start)).
		Msg("sqs call")

	if resp.StatusCode() >= 300 {
		return nil, serviceErrorFrom(resp.StatusCode(), decoded)
	}
	return decoded, nil
}
