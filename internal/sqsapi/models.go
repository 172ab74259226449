package sqsapi

import (
	"github.com/rafidka/sqsasync/internal/decode"
)

// APIVersion is the SQS API version sent with every query request.
const APIVersion = "2012-11-05"

// Operation names as they appear on the wire.
const (
	OpCreateQueue    = "CreateQueue"
	OpSendMessage    = "SendMessage"
	OpReceiveMessage = "ReceiveMessage"
	OpDeleteMessage  = "DeleteMessage"
)

// The service model shipped with current SDKs declares the JSON protocol for
// SQS. Responses are still decoded with the protocol the client is
// configured for; see decode.WithProtocol.
var serviceMetadata = decode.Metadata{Protocol: "json", APIVersion: APIVersion}

var (
	stringShape = &decode.Shape{Type: decode.String}
	blobShape   = &decode.Shape{Type: decode.Blob}

	messageSystemAttributeMap = &decode.Shape{
		Name:  "MessageSystemAttributeMap",
		Type:  decode.Map,
		Key:   &decode.Member{Name: "key", Shape: stringShape, LocationName: "Name"},
		Value: &decode.Member{Name: "value", Shape: stringShape, LocationName: "Value"},
	}

	messageAttributeValue = &decode.Shape{
		Name: "MessageAttributeValue",
		Type: decode.Structure,
		Members: []decode.Member{
			{Name: "StringValue", Shape: stringShape},
			{Name: "BinaryValue", Shape: blobShape},
			{Name: "DataType", Shape: stringShape},
		},
	}

	messageBodyAttributeMap = &decode.Shape{
		Name:  "MessageBodyAttributeMap",
		Type:  decode.Map,
		Key:   &decode.Member{Name: "key", Shape: stringShape, LocationName: "Name"},
		Value: &decode.Member{Name: "value", Shape: messageAttributeValue, LocationName: "Value"},
	}

	messageShape = &decode.Shape{
		Name: "Message",
		Type: decode.Structure,
		Members: []decode.Member{
			{Name: "MessageId", Shape: stringShape},
			{Name: "ReceiptHandle", Shape: stringShape},
			{Name: "MD5OfBody", Shape: stringShape},
			{Name: "Body", Shape: stringShape},
			{Name: "Attributes", Shape: messageSystemAttributeMap, LocationName: "Attribute", Flattened: true},
			{Name: "MD5OfMessageAttributes", Shape: stringShape},
			{Name: "MessageAttributes", Shape: messageBodyAttributeMap, LocationName: "MessageAttribute", Flattened: true},
		},
	}
)

var operations = map[string]*decode.OperationModel{
	OpCreateQueue: {
		Name:     OpCreateQueue,
		Metadata: serviceMetadata,
		OutputShape: &decode.Shape{
			Name:          "CreateQueueResult",
			Type:          decode.Structure,
			ResultWrapper: "CreateQueueResult",
			Members: []decode.Member{
				{Name: "QueueUrl", Shape: stringShape},
			},
		},
	},
	OpSendMessage: {
		Name:     OpSendMessage,
		Metadata: serviceMetadata,
		OutputShape: &decode.Shape{
			Name:          "SendMessageResult",
			Type:          decode.Structure,
			ResultWrapper: "SendMessageResult",
			Members: []decode.Member{
				{Name: "MD5OfMessageBody", Shape: stringShape},
				{Name: "MD5OfMessageAttributes", Shape: stringShape},
				{Name: "MessageId", Shape: stringShape},
				{Name: "SequenceNumber", Shape: stringShape},
			},
		},
	},
	OpReceiveMessage: {
		Name:     OpReceiveMessage,
		Metadata: serviceMetadata,
		OutputShape: &decode.Shape{
			Name:          "ReceiveMessageResult",
			Type:          decode.Structure,
			ResultWrapper: "ReceiveMessageResult",
			Members: []decode.Member{
				{
					Name:         "Messages",
					LocationName: "Message",
					Flattened:    true,
					Shape: &decode.Shape{
						Name:   "MessageList",
						Type:   decode.List,
						Member: &decode.Member{Name: "member", Shape: messageShape, LocationName: "Message"},
					},
				},
			},
		},
	},
	OpDeleteMessage: {
		Name:     OpDeleteMessage,
		Metadata: serviceMetadata,
	},
}

// Query-protocol names of list and map members whose wire element differs
// from the parameter name.
var queryLocationNames = map[string]string{
	"AttributeNames":              "AttributeName",
	"MessageAttributeNames":       "MessageAttributeName",
	"MessageSystemAttributeNames": "MessageSystemAttributeName",
	"Attributes":                  "Attribute",
	"MessageAttributes":           "MessageAttribute",
	"tags":                        "Tag",
}

// Key element names for map parameters; "Name" otherwise.
var queryMapKeyNames = map[string]string{
	"tags": "Key",
}
