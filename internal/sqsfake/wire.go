package sqsfake

import (
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	xmlNamespace     = "http://queue.amazonaws.com/doc/2012-11-05/"
	jsonContentType  = "application/x-amz-json-1.0"
	jsonTargetPrefix = "AmazonSQS."
)

// input holds the parameters of any supported action. JSON requests decode
// straight into it; query requests are flattened into it by parseQuery.
type input struct {
	QueueName             string                          `json:"QueueName"`
	QueueURL              string                          `json:"QueueUrl"`
	MessageBody           string                          `json:"MessageBody"`
	ReceiptHandle         string                          `json:"ReceiptHandle"`
	DelaySeconds          int                             `json:"DelaySeconds"`
	MaxNumberOfMessages   int                             `json:"MaxNumberOfMessages"`
	VisibilityTimeout     *int                            `json:"VisibilityTimeout"`
	WaitTimeSeconds       *int                            `json:"WaitTimeSeconds"`
	AttributeNames        []string                        `json:"AttributeNames"`
	MessageAttributeNames []string                        `json:"MessageAttributeNames"`
	Attributes            map[string]string               `json:"Attributes"`
	MessageAttributes     map[string]jsonMessageAttribute `json:"MessageAttributes"`
}

type jsonMessageAttribute struct {
	DataType    string `json:"DataType"`
	StringValue string `json:"StringValue,omitempty"`
	BinaryValue []byte `json:"BinaryValue,omitempty"`
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), jsonContentType)
}

// parseRequest returns the action and its parameters.
func parseRequest(r *http.Request) (string, *input, error) {
	if isJSON(r) {
		action := strings.TrimPrefix(r.Header.Get("X-Amz-Target"), jsonTargetPrefix)
		in := &input{}
		if err := json.NewDecoder(r.Body).Decode(in); err != nil {
			return action, nil, fmt.Errorf("decode body: %w", err)
		}
		return action, in, nil
	}

	if err := r.ParseForm(); err != nil {
		return "", nil, err
	}
	in, err := parseQuery(r.Form)
	return r.Form.Get("Action"), in, err
}

func parseQuery(form url.Values) (*input, error) {
	in := &input{
		QueueName:             form.Get("QueueName"),
		QueueURL:              form.Get("QueueUrl"),
		MessageBody:           form.Get("MessageBody"),
		ReceiptHandle:         form.Get("ReceiptHandle"),
		AttributeNames:        indexed(form, "AttributeName"),
		MessageAttributeNames: indexed(form, "MessageAttributeName"),
	}

	var err error
	if in.DelaySeconds, err = optionalInt(form, "DelaySeconds", 0); err != nil {
		return nil, err
	}
	if in.MaxNumberOfMessages, err = optionalInt(form, "MaxNumberOfMessages", 1); err != nil {
		return nil, err
	}
	if form.Has("VisibilityTimeout") {
		v, err := optionalInt(form, "VisibilityTimeout", 0)
		if err != nil {
			return nil, err
		}
		in.VisibilityTimeout = &v
	}
	if form.Has("WaitTimeSeconds") {
		v, err := optionalInt(form, "WaitTimeSeconds", 0)
		if err != nil {
			return nil, err
		}
		in.WaitTimeSeconds = &v
	}

	for i := 1; form.Has(fmt.Sprintf("Attribute.%d.Name", i)); i++ {
		if in.Attributes == nil {
			in.Attributes = map[string]string{}
		}
		p := fmt.Sprintf("Attribute.%d.", i)
		in.Attributes[form.Get(p+"Name")] = form.Get(p + "Value")
	}
	for i := 1; form.Has(fmt.Sprintf("MessageAttribute.%d.Name", i)); i++ {
		if in.MessageAttributes == nil {
			in.MessageAttributes = map[string]jsonMessageAttribute{}
		}
		p := fmt.Sprintf("MessageAttribute.%d.", i)
		attr := jsonMessageAttribute{
			DataType:    form.Get(p + "Value.DataType"),
			StringValue: form.Get(p + "Value.StringValue"),
		}
		if b := form.Get(p + "Value.BinaryValue"); b != "" {
			raw, err := base64.StdEncoding.DecodeString(b)
			if err != nil {
				return nil, fmt.Errorf("%sValue.BinaryValue: %w", p, err)
			}
			attr.BinaryValue = raw
		}
		in.MessageAttributes[form.Get(p+"Name")] = attr
	}
	return in, nil
}

func indexed(form url.Values, name string) []string {
	var out []string
	for i := 1; ; i++ {
		key := fmt.Sprintf("%s.%d", name, i)
		if !form.Has(key) {
			return out
		}
		out = append(out, form.Get(key))
	}
}

func optionalInt(form url.Values, key string, def int) (int, error) {
	s := form.Get(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, ErrInvalidParameter)
	}
	return n, nil
}

type responseMetadata struct {
	RequestID string `xml:"RequestId"`
}

type createQueueResponse struct {
	XMLName  xml.Name         `xml:"CreateQueueResponse"`
	Xmlns    string           `xml:"xmlns,attr"`
	QueueURL string           `xml:"CreateQueueResult>QueueUrl"`
	Metadata responseMetadata `xml:"ResponseMetadata"`
}

type sendMessageResponse struct {
	XMLName          xml.Name         `xml:"SendMessageResponse"`
	Xmlns            string           `xml:"xmlns,attr"`
	MD5OfMessageBody string           `xml:"SendMessageResult>MD5OfMessageBody"`
	MessageID        string           `xml:"SendMessageResult>MessageId"`
	Metadata         responseMetadata `xml:"ResponseMetadata"`
}

type xmlAttribute struct {
	Name  string `xml:"Name"`
	Value string `xml:"Value"`
}

type xmlMessageAttribute struct {
	Name  string `xml:"Name"`
	Value struct {
		StringValue string `xml:"StringValue,omitempty"`
		BinaryValue string `xml:"BinaryValue,omitempty"`
		DataType    string `xml:"DataType"`
	} `xml:"Value"`
}

type xmlMessage struct {
	MessageID         string                `xml:"MessageId"`
	ReceiptHandle     string                `xml:"ReceiptHandle"`
	MD5OfBody         string                `xml:"MD5OfBody"`
	Body              string                `xml:"Body"`
	Attributes        []xmlAttribute        `xml:"Attribute"`
	MessageAttributes []xmlMessageAttribute `xml:"MessageAttribute"`
}

type receiveMessageResponse struct {
	XMLName  xml.Name         `xml:"ReceiveMessageResponse"`
	Xmlns    string           `xml:"xmlns,attr"`
	Messages []xmlMessage     `xml:"ReceiveMessageResult>Message"`
	Metadata responseMetadata `xml:"ResponseMetadata"`
}

type deleteMessageResponse struct {
	XMLName  xml.Name         `xml:"DeleteMessageResponse"`
	Xmlns    string           `xml:"xmlns,attr"`
	Metadata responseMetadata `xml:"ResponseMetadata"`
}

type errorResponse struct {
	XMLName xml.Name `xml:"ErrorResponse"`
	Xmlns   string   `xml:"xmlns,attr"`
	Error   struct {
		Type    string `xml:"Type"`
		Code    string `xml:"Code"`
		Message string `xml:"Message"`
	} `xml:"Error"`
	RequestID string `xml:"RequestId"`
}

type jsonMessage struct {
	MessageID         string                          `json:"MessageId"`
	ReceiptHandle     string                          `json:"ReceiptHandle"`
	MD5OfBody         string                          `json:"MD5OfBody"`
	Body              string                          `json:"Body"`
	Attributes        map[string]string               `json:"Attributes,omitempty"`
	MessageAttributes map[string]jsonMessageAttribute `json:"MessageAttributes,omitempty"`
}

// selectAttributes keeps the entries of all whose names were asked for.
// "All" and ".*" select everything.
func selectAttributes[V any](all map[string]V, names []string) map[string]V {
	want := map[string]bool{}
	for _, n := range names {
		if n == "All" || n == ".*" {
			return all
		}
		want[n] = true
	}
	out := map[string]V{}
	for k, v := range all {
		if want[k] {
			out[k] = v
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
