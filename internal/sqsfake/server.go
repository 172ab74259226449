// Package sqsfake is an in-memory SQS endpoint for tests and local runs. It
// serves CreateQueue, SendMessage, ReceiveMessage and DeleteMessage over the
// query protocol and awsJson1_0, with visibility timeouts, receive counts and
// long polling.
package sqsfake

import (
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"net/http"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/juju/clock"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AccountID appears in every queue URL.
const AccountID = "000000000000"

// MaxWaitTime caps WaitTimeSeconds as the real service does.
const MaxWaitTime = 20 * time.Second

// Server serves the fake endpoint.
type Server struct {
	store  *Store
	clock  clock.Clock
	router *mux.Router
	logger zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithClock drives visibility timeouts and long polling from clk.
func WithClock(clk clock.Clock) Option {
	return func(s *Server) { s.clock = clk }
}

// WithLogger sets the request logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a server with an empty store.
func New(opts ...Option) *Server {
	s := &Server{
		clock:  clock.WallClock,
		logger: log.With().Str("component", "sqsfake").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.store = NewStore(s.clock)

	r := mux.NewRouter()
	r.Use(s.recoverMiddleware)
	r.HandleFunc("/", s.handle).Methods(http.MethodPost)
	r.HandleFunc("/{account}/{queue}", s.handle).Methods(http.MethodPost)
	s.router = r
	return s
}

// Store exposes the backing store for assertions.
func (s *Server) Store() *Store { return s.store }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	jsonMode := isJSON(r)
	reply := &responder{w: w, json: jsonMode, requestID: requestID}

	action, in, err := parseRequest(r)
	if err != nil {
		reply.fail(http.StatusBadRequest, "InvalidParameterValue", err.Error())
		return
	}
	if in.QueueURL == "" {
		if q := mux.Vars(r)["queue"]; q != "" {
			in.QueueURL = r.URL.Path
		}
	}
	s.logger.Debug().Str("action", action).Str("queue_url", in.QueueURL).Str("request_id", requestID).Msg("request")

	switch action {
	case "CreateQueue":
		s.createQueue(r, reply, in)
	case "SendMessage":
		s.sendMessage(reply, in)
	case "ReceiveMessage":
		s.receiveMessage(r, reply, in)
	case "DeleteMessage":
		s.deleteMessage(reply, in)
	default:
		reply.fail(http.StatusBadRequest, "InvalidAction", "The action "+action+" is not valid for this endpoint.")
	}
}

func (s *Server) createQueue(r *http.Request, reply *responder, in *input) {
	if err := s.store.CreateQueue(in.QueueName, in.Attributes); err != nil {
		reply.storeError(err)
		return
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	queueURL := scheme + "://" + r.Host + "/" + AccountID + "/" + in.QueueName

	if reply.json {
		reply.ok(map[string]any{"QueueUrl": queueURL})
		return
	}
	reply.ok(&createQueueResponse{QueueURL: queueURL})
}

func (s *Server) sendMessage(reply *responder, in *input) {
	attrs := make(map[string]MessageAttribute, len(in.MessageAttributes))
	for k, v := range in.MessageAttributes {
		attrs[k] = MessageAttribute(v)
	}
	id, md5, err := s.store.Send(queueName(in.QueueURL), in.MessageBody, time.Duration(in.DelaySeconds)*time.Second, attrs)
	if err != nil {
		reply.storeError(err)
		return
	}
	if reply.json {
		reply.ok(map[string]any{"MessageId": id, "MD5OfMessageBody": md5})
		return
	}
	reply.ok(&sendMessageResponse{MessageID: id, MD5OfMessageBody: md5})
}

func (s *Server) receiveMessage(r *http.Request, reply *responder, in *input) {
	var visibility *time.Duration
	if in.VisibilityTimeout != nil {
		d := time.Duration(*in.VisibilityTimeout) * time.Second
		visibility = &d
	}
	var wait time.Duration
	if in.WaitTimeSeconds != nil {
		wait = time.Duration(*in.WaitTimeSeconds) * time.Second
	}
	if wait < 0 || wait > MaxWaitTime {
		reply.fail(http.StatusBadRequest, "InvalidParameterValue", "WaitTimeSeconds must be between 0 and 20")
		return
	}

	name := queueName(in.QueueURL)
	var deadline <-chan time.Time
	if wait > 0 {
		deadline = s.clock.After(wait)
	}
	var msgs []Received
	for {
		// Taken before the attempt so a Send racing with it still wakes us.
		changed := s.store.changes()
		var err error
		msgs, err = s.store.Receive(name, in.MaxNumberOfMessages, visibility)
		if err != nil {
			reply.storeError(err)
			return
		}
		if len(msgs) > 0 || wait == 0 {
			break
		}
		hidden := s.store.nextVisible(name)
		var reappear <-chan time.Time
		if hidden > 0 {
			reappear = s.clock.After(hidden)
		}
		select {
		case <-changed:
		case <-reappear:
		case <-deadline:
			wait = 0
		case <-r.Context().Done():
			return
		}
	}

	if reply.json {
		out := make([]jsonMessage, 0, len(msgs))
		for _, m := range msgs {
			jm := jsonMessage{
				MessageID:     m.MessageID,
				ReceiptHandle: m.ReceiptHandle,
				MD5OfBody:     m.MD5OfBody,
				Body:          m.Body,
				Attributes:    selectAttributes(m.Attributes, in.AttributeNames),
			}
			for k, v := range selectAttributes(m.MessageAttributes, in.MessageAttributeNames) {
				if jm.MessageAttributes == nil {
					jm.MessageAttributes = map[string]jsonMessageAttribute{}
				}
				jm.MessageAttributes[k] = jsonMessageAttribute(v)
			}
			out = append(out, jm)
		}
		reply.ok(map[string]any{"Messages": out})
		return
	}

	resp := &receiveMessageResponse{}
	for _, m := range msgs {
		xm := xmlMessage{
			MessageID:     m.MessageID,
			ReceiptHandle: m.ReceiptHandle,
			MD5OfBody:     m.MD5OfBody,
			Body:          m.Body,
		}
		for _, k := range sortedKeys(selectAttributes(m.Attributes, in.AttributeNames)) {
			xm.Attributes = append(xm.Attributes, xmlAttribute{Name: k, Value: m.Attributes[k]})
		}
		for _, k := range sortedKeys(selectAttributes(m.MessageAttributes, in.MessageAttributeNames)) {
			v := m.MessageAttributes[k]
			xa := xmlMessageAttribute{Name: k}
			xa.Value.DataType = v.DataType
			xa.Value.StringValue = v.StringValue
			if len(v.BinaryValue) > 0 {
				xa.Value.BinaryValue = base64.StdEncoding.EncodeToString(v.BinaryValue)
			}
			xm.MessageAttributes = append(xm.MessageAttributes, xa)
		}
		resp.Messages = append(resp.Messages, xm)
	}
	reply.ok(resp)
}

func (s *Server) deleteMessage(reply *responder, in *input) {
	if err := s.store.Delete(queueName(in.QueueURL), in.ReceiptHandle); err != nil {
		reply.storeError(err)
		return
	}
	if reply.json {
		reply.ok(map[string]any{})
		return
	}
	reply.ok(&deleteMessageResponse{})
}

// recoverMiddleware turns a handler panic into a 500 error document.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("url", r.URL.String()).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")
				reply := &responder{w: w, json: isJSON(r), requestID: uuid.NewString()}
				reply.fail(http.StatusInternalServerError, "InternalError", "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// queueName takes the last path segment of a queue URL, so both full URLs
// and bare paths resolve.
func queueName(queueURL string) string {
	return path.Base(strings.TrimRight(queueURL, "/"))
}

type responder struct {
	w         http.ResponseWriter
	json      bool
	requestID string
}

func (r *responder) ok(body any) {
	r.w.Header().Set("X-Amzn-Requestid", r.requestID)
	if r.json {
		r.w.Header().Set("Content-Type", jsonContentType)
		r.w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(r.w).Encode(body)
		return
	}

	switch v := body.(type) {
	case *createQueueResponse:
		v.Xmlns, v.Metadata.RequestID = xmlNamespace, r.requestID
	case *sendMessageResponse:
		v.Xmlns, v.Metadata.RequestID = xmlNamespace, r.requestID
	case *receiveMessageResponse:
		v.Xmlns, v.Metadata.RequestID = xmlNamespace, r.requestID
	case *deleteMessageResponse:
		v.Xmlns, v.Metadata.RequestID = xmlNamespace, r.requestID
	}
	r.w.Header().Set("Content-Type", "text/xml")
	r.w.WriteHeader(http.StatusOK)
	_, _ = r.w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(r.w).Encode(body)
}

func (r *responder) fail(status int, code, message string) {
	r.w.Header().Set("X-Amzn-Requestid", r.requestID)
	if r.json {
		r.w.Header().Set("Content-Type", jsonContentType)
		r.w.Header().Set("X-Amzn-Query-Error", code+";Sender")
		r.w.WriteHeader(status)
		_ = json.NewEncoder(r.w).Encode(map[string]string{
			"__type":  "com.amazonaws.sqs#" + code,
			"message": message,
		})
		return
	}

	doc := &errorResponse{Xmlns: xmlNamespace, RequestID: r.requestID}
	doc.Error.Type = "Sender"
	doc.Error.Code = code
	doc.Error.Message = message
	r.w.Header().Set("Content-Type", "text/xml")
	r.w.WriteHeader(status)
	_, _ = r.w.Write([]byte(xml.Header))
	_ = xml.NewEncoder(r.w).Encode(doc)
}

func (r *responder) storeError(err error) {
	switch {
	case errors.Is(err, ErrQueueNotFound):
		r.fail(http.StatusBadRequest, "AWS.SimpleQueueService.NonExistentQueue", "The specified queue does not exist.")
	case errors.Is(err, ErrReceiptHandleInvalid):
		r.fail(http.StatusBadRequest, "ReceiptHandleIsInvalid", "The input receipt handle is invalid.")
	default:
		r.fail(http.StatusBadRequest, "InvalidParameterValue", err.Error())
	}
}
