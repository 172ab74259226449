// Package decode turns raw HTTP responses into decoded values.
//
// The wire protocol is chosen by the Decoder's configuration, never by the
// protocol an operation's metadata declares. SQS metadata advertises a JSON
// protocol while the query (XML) protocol is what some endpoints still speak,
// so trusting the metadata breaks decoding; DefaultProtocol pins "query".
package decode

import (
	"fmt"
	"net/http"
	"sort"

	errs "github.com/rafidka/sqsasync/internal/errors"
)

// DefaultProtocol is the protocol used when none is configured.
const DefaultProtocol = "query"

// Metadata is the per-operation service metadata. Protocol is informational:
// the Decoder does not consult it.
type Metadata struct {
	Protocol   string
	APIVersion string
}

// OperationModel describes one operation's response.
type OperationModel struct {
	Name               string
	Metadata           Metadata
	OutputShape        *Shape
	HasStreamingOutput bool
}

// Parser decodes a Descriptor against an output shape.
type Parser interface {
	Parse(desc *Descriptor, shape *Shape) (map[string]any, error)
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithProtocol selects the wire protocol used for every response.
func WithProtocol(protocol string) Option {
	return func(d *Decoder) { d.protocol = protocol }
}

// WithParser registers or replaces the parser for a protocol.
func WithParser(protocol string, p Parser) Option {
	return func(d *Decoder) { d.parsers[protocol] = p }
}

// Decoder is stateless once constructed and safe for concurrent use.
type Decoder struct {
	protocol string
	parsers  map[string]Parser
	parser   Parser
}

// New builds a Decoder. It fails if the selected protocol has no parser.
func New(opts ...Option) (*Decoder, error) {
	d := &Decoder{
		protocol: DefaultProtocol,
		parsers: map[string]Parser{
			"query": queryParser{},
			"json":  jsonParser{},
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.protocol == "" {
		d.protocol = DefaultProtocol
	}
	p, ok := d.parsers[d.protocol]
	if !ok {
		return nil, &errs.DecodeError{
			Protocol: d.protocol,
			Err:      fmt.Errorf("unknown protocol (have %v)", d.Protocols()),
		}
	}
	d.parser = p
	return d, nil
}

// Protocol reports the protocol every response is parsed with.
func (d *Decoder) Protocol() string { return d.protocol }

// Protocols lists the registered protocol names.
func (d *Decoder) Protocols() []string {
	names := make([]string, 0, len(d.parsers))
	for name := range d.parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Decode parses resp against op's output shape and returns resp together with
// the decoded value. Error responses (status >= 300) are always buffered, even
// for streaming operations, so their error document can be parsed.
func (d *Decoder) Decode(resp *HTTPResponse, op *OperationModel) (*HTTPResponse, map[string]any, error) {
	if op == nil {
		op = &OperationModel{}
	}
	desc := &Descriptor{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
	}
	if desc.Header == nil {
		desc.Header = http.Header{}
	}

	if resp.StatusCode >= 300 || !op.HasStreamingOutput {
		body, err := resp.Content()
		if err != nil {
			return resp, nil, &errs.DecodeError{Protocol: d.protocol, Shape: op.OutputShape.describe(), Err: err}
		}
		desc.Body = body
	} else {
		desc.Stream = NewStreamingBody(resp.Raw, desc.Header.Get("Content-Length"))
	}

	parsed, err := d.parser.Parse(desc, op.OutputShape)
	if err != nil {
		return resp, nil, &errs.DecodeError{Protocol: d.protocol, Shape: op.OutputShape.describe(), Err: err}
	}
	return resp, parsed, nil
}

// responseMetadata builds the ResponseMetadata entry common to all protocols.
func responseMetadata(desc *Descriptor, requestID string) map[string]any {
	headers := make(map[string]any, len(desc.Header))
	for k := range desc.Header {
		headers[http.CanonicalHeaderKey(k)] = desc.Header.Get(k)
	}
	if requestID == "" {
		requestID = desc.Header.Get("X-Amzn-Requestid")
	}
	md := map[string]any{
		"HTTPStatusCode": desc.StatusCode,
		"HTTPHeaders":    headers,
	}
	if requestID != "" {
		md["RequestId"] = requestID
	}
	return md
}
