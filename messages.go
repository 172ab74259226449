package sqsasync

// Operation names understood by the SQS clients this package fronts.
const (
	OpReceiveMessage = "receive_message"
	OpDeleteMessage  = "delete_message"
	OpSendMessage    = "send_message"
	OpCreateQueue    = "create_queue"
)

// DefaultReceiveAttributes is requested when ReceiveOptions.AttributeNames is
// nil.
var DefaultReceiveAttributes = []string{"ApproximateReceiveCount"}

// ReceiveOptions tunes ReceiveMessage. Zero values select the service
// defaults, except NumberOfMessages which defaults to 1.
type ReceiveOptions struct {
	NumberOfMessages int
	// VisibilityTimeout is sent only when non-zero.
	VisibilityTimeout int
	// AttributeNames are sent as MessageAttributeNames.
	AttributeNames []string
	// SystemAttributeNames, such as ApproximateReceiveCount, are sent as
	// AttributeNames when set.
	SystemAttributeNames []string
	// WaitTimeSeconds enables long polling when set.
	WaitTimeSeconds *int
}

// ReceiveMessage asks for up to opts.NumberOfMessages messages from
// queueURL.
func (c *Connection) ReceiveMessage(queueURL string, opts ReceiveOptions, cb Callback) error {
	n := opts.NumberOfMessages
	if n == 0 {
		n = 1
	}
	attrs := opts.AttributeNames
	if attrs == nil {
		attrs = DefaultReceiveAttributes
	}
	var wait any
	if opts.WaitTimeSeconds != nil {
		wait = *opts.WaitTimeSeconds
	}

	kwargs := Kwargs{
		"QueueUrl":              queueURL,
		"MaxNumberOfMessages":   n,
		"MessageAttributeNames": attrs,
		"WaitTimeSeconds":       wait,
	}
	if opts.VisibilityTimeout != 0 {
		kwargs["VisibilityTimeout"] = opts.VisibilityTimeout
	}
	if len(opts.SystemAttributeNames) > 0 {
		kwargs["AttributeNames"] = opts.SystemAttributeNames
	}
	return c.Submit(OpReceiveMessage, cb, kwargs)
}

// DeleteMessage removes the message identified by receiptHandle.
func (c *Connection) DeleteMessage(queueURL, receiptHandle string, cb Callback) error {
	return c.Submit(OpDeleteMessage, cb, Kwargs{
		"QueueUrl":      queueURL,
		"ReceiptHandle": receiptHandle,
	})
}

// SendMessage enqueues body on queueURL. delaySeconds is sent only when
// non-zero.
func (c *Connection) SendMessage(queueURL, body string, delaySeconds int, cb Callback) error {
	kwargs := Kwargs{
		"QueueUrl":    queueURL,
		"MessageBody": body,
	}
	if delaySeconds != 0 {
		kwargs["DelaySeconds"] = delaySeconds
	}
	return c.Submit(OpSendMessage, cb, kwargs)
}

// CreateQueue creates queueName, or returns the URL of an existing queue with
// that name.
func (c *Connection) CreateQueue(queueName string, cb Callback) error {
	return c.Submit(OpCreateQueue, cb, Kwargs{"QueueName": queueName})
}
