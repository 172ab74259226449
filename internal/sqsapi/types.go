package sqsapi

// ResponseMetadata accompanies every decoded response.
type ResponseMetadata struct {
	RequestID      string
	HTTPStatusCode int
}

// MessageAttributeValue is a user-defined message attribute.
type MessageAttributeValue struct {
	DataType    string
	StringValue string
	BinaryValue []byte
}

// Message is one received message.
type Message struct {
	MessageID              string
	ReceiptHandle          string
	MD5OfBody              string
	Body                   string
	Attributes             map[string]string
	MD5OfMessageAttributes string
	MessageAttributes      map[string]MessageAttributeValue
}

type CreateQueueOutput struct {
	QueueURL string
	Metadata ResponseMetadata
}

type SendMessageOutput struct {
	MessageID              string
	MD5OfMessageBody       string
	MD5OfMessageAttributes string
	SequenceNumber         string
	Metadata               ResponseMetadata
}

type ReceiveMessageOutput struct {
	Messages []Message
	Metadata ResponseMetadata
}

type DeleteMessageOutput struct {
	Metadata ResponseMetadata
}

func metadataFrom(decoded map[string]any) ResponseMetadata {
	md, _ := decoded["ResponseMetadata"].(map[string]any)
	out := ResponseMetadata{}
	out.RequestID, _ = md["RequestId"].(string)
	out.HTTPStatusCode, _ = md["HTTPStatusCode"].(int)
	return out
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func createQueueOutput(decoded map[string]any) *CreateQueueOutput {
	return &CreateQueueOutput{
		QueueURL: stringField(decoded, "QueueUrl"),
		Metadata: metadataFrom(decoded),
	}
}

func sendMessageOutput(decoded map[string]any) *SendMessageOutput {
	return &SendMessageOutput{
		MessageID:              stringField(decoded, "MessageId"),
		MD5OfMessageBody:       stringField(decoded, "MD5OfMessageBody"),
		MD5OfMessageAttributes: stringField(decoded, "MD5OfMessageAttributes"),
		SequenceNumber:         stringField(decoded, "SequenceNumber"),
		Metadata:               metadataFrom(decoded),
	}
}

func receiveMessageOutput(decoded map[string]any) *ReceiveMessageOutput {
	out := &ReceiveMessageOutput{Metadata: metadataFrom(decoded)}
	items, _ := decoded["Messages"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out.Messages = append(out.Messages, messageFrom(m))
	}
	return out
}

func messageFrom(m map[string]any) Message {
	msg := Message{
		MessageID:              stringField(m, "MessageId"),
		ReceiptHandle:          stringField(m, "ReceiptHandle"),
		MD5OfBody:              stringField(m, "MD5OfBody"),
		Body:                   stringField(m, "Body"),
		MD5OfMessageAttributes: stringField(m, "MD5OfMessageAttributes"),
	}
	if attrs, ok := m["Attributes"].(map[string]any); ok {
		msg.Attributes = make(map[string]string, len(attrs))
		for k, v := range attrs {
			msg.Attributes[k], _ = v.(string)
		}
	}
	if attrs, ok := m["MessageAttributes"].(map[string]any); ok {
		msg.MessageAttributes = make(map[string]MessageAttributeValue, len(attrs))
		for k, v := range attrs {
			fields, _ := v.(map[string]any)
			bin, _ := fields["BinaryValue"].([]byte)
			msg.MessageAttributes[k] = MessageAttributeValue{
				DataType:    stringField(fields, "DataType"),
				StringValue: stringField(fields, "StringValue"),
				BinaryValue: bin,
			}
		}
	}
	return msg
}
