package sqsfake

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
)

// DefaultVisibilityTimeout applies to queues created without a
// VisibilityTimeout attribute.
const DefaultVisibilityTimeout = 30 * time.Second

// MaxReceive caps MaxNumberOfMessages as the real service does.
const MaxReceive = 10

var (
	ErrQueueNotFound        = errors.New("queue does not exist")
	ErrReceiptHandleInvalid = errors.New("receipt handle is invalid")
	ErrInvalidParameter     = errors.New("invalid parameter value")
)

// MessageAttribute is a user-defined message attribute.
type MessageAttribute struct {
	DataType    string
	StringValue string
	BinaryValue []byte
}

type message struct {
	id                string
	body              string
	md5               string
	attributes        map[string]MessageAttribute
	sentAt            time.Time
	firstReceivedAt   time.Time
	availableAt       time.Time
	receiveCount      int
	lastReceiptHandle string
}

type queue struct {
	name       string
	visibility time.Duration
	attributes map[string]string
	messages   []*message
	handles    map[string]*message
}

// Received is a snapshot of a message handed out by Receive.
type Received struct {
	MessageID         string
	ReceiptHandle     string
	Body              string
	MD5OfBody         string
	Attributes        map[string]string
	MessageAttributes map[string]MessageAttribute
}

// Store keeps queues in memory. It is safe for concurrent use.
type Store struct {
	clock clock.Clock

	mu      sync.Mutex
	queues  map[string]*queue
	changed chan struct{} // closed and replaced whenever a message becomes available
}

// NewStore returns an empty store driven by clk.
func NewStore(clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Store{
		clock:   clk,
		queues:  make(map[string]*queue),
		changed: make(chan struct{}),
	}
}

// CreateQueue creates name, or returns silently when it already exists.
func (s *Store) CreateQueue(name string, attributes map[string]string) error {
	if name == "" {
		return ErrInvalidParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queues[name]; ok {
		return nil
	}

	q := &queue{
		name:       name,
		visibility: DefaultVisibilityTimeout,
		attributes: map[string]string{},
		handles:    map[string]*message{},
	}
	for k, v := range attributes {
		q.attributes[k] = v
		if k == "VisibilityTimeout" {
			secs, err := strconv.Atoi(v)
			if err != nil || secs < 0 {
				return ErrInvalidParameter
			}
			q.visibility = time.Duration(secs) * time.Second
		}
	}
	s.queues[name] = q
	return nil
}

// QueueNames lists existing queues in name order.
func (s *Store) QueueNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.queues))
	for n := range s.queues {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Send appends a message and returns its ID and body digest.
func (s *Store) Send(queueName, body string, delay time.Duration, attrs map[string]MessageAttribute) (string, string, error) {
	if body == "" {
		return "", "", ErrInvalidParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueName]
	if !ok {
		return "", "", ErrQueueNotFound
	}

	now := s.clock.Now()
	m := &message{
		id:          uuid.NewString(),
		body:        body,
		md5:         digest(body),
		attributes:  attrs,
		sentAt:      now,
		availableAt: now.Add(delay),
	}
	q.messages = append(q.messages, m)
	s.notifyLocked()
	return m.id, m.md5, nil
}

// Receive hands out up to max visible messages, hiding each for the queue's
// visibility timeout or the given override.
func (s *Store) Receive(queueName string, max int, visibility *time.Duration) ([]Received, error) {
	if max <= 0 {
		max = 1
	}
	if max > MaxReceive {
		return nil, ErrInvalidParameter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueName]
	if !ok {
		return nil, ErrQueueNotFound
	}

	hide := q.visibility
	if visibility != nil {
		hide = *visibility
	}
	now := s.clock.Now()

	var out []Received
	for _, m := range q.messages {
		if len(out) == max {
			break
		}
		if now.Before(m.availableAt) {
			continue
		}
		m.receiveCount++
		if m.firstReceivedAt.IsZero() {
			m.firstReceivedAt = now
		}
		m.availableAt = now.Add(hide)
		m.lastReceiptHandle = uuid.NewString()
		q.handles[m.lastReceiptHandle] = m

		out = append(out, Received{
			MessageID:         m.id,
			ReceiptHandle:     m.lastReceiptHandle,
			Body:              m.body,
			MD5OfBody:         m.md5,
			Attributes:        systemAttributes(m),
			MessageAttributes: m.attributes,
		})
	}
	return out, nil
}

// Delete removes the message a receipt handle was issued for. Deleting an
// already deleted message succeeds.
func (s *Store) Delete(queueName, receiptHandle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.queues[queueName]
	if !ok {
		return ErrQueueNotFound
	}
	m, ok := q.handles[receiptHandle]
	if !ok {
		return ErrReceiptHandleInvalid
	}
	for i, cur := range q.messages {
		if cur == m {
			q.messages = append(q.messages[:i], q.messages[i+1:]...)
			break
		}
	}
	for h, cur := range q.handles {
		if cur == m {
			delete(q.handles, h)
		}
	}
	return nil
}

// Len reports how many messages, visible or not, queueName holds.
func (s *Store) Len(queueName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queues[queueName]; ok {
		return len(q.messages)
	}
	return 0
}

// changes returns a channel closed on the next Send.
func (s *Store) changes() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changed
}

// nextVisible reports how long until the earliest hidden message in
// queueName becomes visible again, zero when none is hidden.
func (s *Store) nextVisible(queueName string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wait time.Duration
	if q, ok := s.queues[queueName]; ok {
		now := s.clock.Now()
		for _, m := range q.messages {
			if d := m.availableAt.Sub(now); d > 0 && (wait == 0 || d < wait) {
				wait = d
			}
		}
	}
	return wait
}

func (s *Store) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func systemAttributes(m *message) map[string]string {
	return map[string]string{
		"ApproximateReceiveCount":          strconv.Itoa(m.receiveCount),
		"SentTimestamp":                    strconv.FormatInt(m.sentAt.UnixMilli(), 10),
		"ApproximateFirstReceiveTimestamp": strconv.FormatInt(m.firstReceivedAt.UnixMilli(), 10),
	}
}

func digest(body string) string {
	sum := md5.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}
