package decode

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	awsxml "github.com/aws/aws-sdk-go-v2/aws/protocol/xml"
	smithyxml "github.com/aws/smithy-go/encoding/xml"
)

// queryParser decodes the AWS query protocol: XML documents whose root holds
// an optional result wrapper element and a ResponseMetadata element.
type queryParser struct{}

var responseMetadataShape = &Shape{
	Name: "ResponseMetadata",
	Type: Structure,
	Members: []Member{
		{Name: "RequestId", Shape: &Shape{Type: String}},
	},
}

func (p queryParser) Parse(desc *Descriptor, shape *Shape) (map[string]any, error) {
	if desc.StatusCode >= 300 {
		return p.parseError(desc)
	}

	out := map[string]any{}
	if desc.Stream != nil {
		if shape != nil && shape.Payload != "" {
			out[shape.Payload] = desc.Stream
		}
		out["ResponseMetadata"] = responseMetadata(desc, "")
		return out, nil
	}

	requestID := ""
	if len(bytes.TrimSpace(desc.Body)) > 0 {
		dec := xml.NewDecoder(bytes.NewReader(desc.Body))
		root, err := smithyxml.FetchRootElement(dec)
		if err != nil && err != io.EOF {
			return nil, err
		}
		if err == nil {
			requestID, err = p.parseRoot(smithyxml.WrapNodeDecoder(dec, root), shape, out)
			if err != nil {
				return nil, err
			}
		}
	}
	out["ResponseMetadata"] = responseMetadata(desc, requestID)
	return out, nil
}

// parseRoot walks the root element. Without a result wrapper the root's
// children are the output members themselves.
func (p queryParser) parseRoot(d smithyxml.NodeDecoder, shape *Shape, out map[string]any) (string, error) {
	requestID := ""
	for {
		t, done, err := d.Token()
		if err != nil {
			return "", err
		}
		if done {
			return requestID, nil
		}
		nd := smithyxml.WrapNodeDecoder(d.Decoder, t)

		switch {
		case t.Name.Local == "ResponseMetadata":
			md, err := p.parseStructure(nd, responseMetadataShape)
			if err != nil {
				return "", err
			}
			requestID, _ = md["RequestId"].(string)
		case shape != nil && shape.ResultWrapper != "" && t.Name.Local == shape.ResultWrapper:
			if err := p.parseMembers(nd, shape, out); err != nil {
				return "", err
			}
		case shape != nil && shape.ResultWrapper == "":
			if err := p.parseMember(nd, t, shape, out); err != nil {
				return "", err
			}
		default:
			if err := d.Decoder.Skip(); err != nil {
				return "", err
			}
		}
	}
}

func (p queryParser) parseStructure(d smithyxml.NodeDecoder, shape *Shape) (map[string]any, error) {
	out := map[string]any{}
	if err := p.parseMembers(d, shape, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p queryParser) parseMembers(d smithyxml.NodeDecoder, shape *Shape, out map[string]any) error {
	for {
		t, done, err := d.Token()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if err := p.parseMember(smithyxml.WrapNodeDecoder(d.Decoder, t), t, shape, out); err != nil {
			return err
		}
	}
}

// parseMember decodes one child element of a structure into out. Flattened
// lists and maps repeat the member element once per item.
func (p queryParser) parseMember(nd smithyxml.NodeDecoder, t xml.StartElement, shape *Shape, out map[string]any) error {
	m, ok := shape.memberByWireName(t.Name.Local)
	if !ok {
		return nd.Decoder.Skip()
	}

	if m.Flattened && m.Shape != nil {
		switch m.Shape.Type {
		case List:
			item, err := p.parseValue(nd, memberShape(m.Shape.Member))
			if err != nil {
				return err
			}
			items, _ := out[m.Name].([]any)
			out[m.Name] = append(items, item)
			return nil
		case Map:
			entries, _ := out[m.Name].(map[string]any)
			if entries == nil {
				entries = map[string]any{}
				out[m.Name] = entries
			}
			return p.parseEntry(nd, m.Shape, entries)
		}
	}

	v, err := p.parseValue(nd, m.Shape)
	if err != nil {
		return fmt.Errorf("%s: %w", m.Name, err)
	}
	out[m.Name] = v
	return nil
}

func (p queryParser) parseValue(nd smithyxml.NodeDecoder, shape *Shape) (any, error) {
	if shape == nil {
		return nil, nd.Decoder.Skip()
	}
	switch shape.Type {
	case Structure:
		return p.parseStructure(nd, shape)
	case List:
		return p.parseList(nd, shape)
	case Map:
		entries := map[string]any{}
		want := "entry"
		for {
			t, done, err := nd.Token()
			if err != nil {
				return nil, err
			}
			if done {
				return entries, nil
			}
			if t.Name.Local != want {
				if err := nd.Decoder.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			if err := p.parseEntry(smithyxml.WrapNodeDecoder(nd.Decoder, t), shape, entries); err != nil {
				return nil, err
			}
		}
	default:
		raw, err := nd.Value()
		if err != nil {
			return nil, err
		}
		return scalarFromText(shape.Type, string(raw))
	}
}

func (p queryParser) parseList(nd smithyxml.NodeDecoder, shape *Shape) ([]any, error) {
	items := []any{}
	want := shape.Member.elementName("member")
	for {
		t, done, err := nd.Token()
		if err != nil {
			return nil, err
		}
		if done {
			return items, nil
		}
		if t.Name.Local != want {
			if err := nd.Decoder.Skip(); err != nil {
				return nil, err
			}
			continue
		}
		item, err := p.parseValue(smithyxml.WrapNodeDecoder(nd.Decoder, t), memberShape(shape.Member))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
}

// parseEntry decodes one key/value element pair into entries.
func (p queryParser) parseEntry(nd smithyxml.NodeDecoder, shape *Shape, entries map[string]any) error {
	keyName := shape.Key.elementName("key")
	valueName := shape.Value.elementName("value")

	var (
		key    string
		hasKey bool
		value  any
	)
	for {
		t, done, err := nd.Token()
		if err != nil {
			return err
		}
		if done {
			break
		}
		child := smithyxml.WrapNodeDecoder(nd.Decoder, t)
		switch t.Name.Local {
		case keyName:
			raw, err := child.Value()
			if err != nil {
				return err
			}
			key, hasKey = string(raw), true
		case valueName:
			if value, err = p.parseValue(child, memberShape(shape.Value)); err != nil {
				return err
			}
		default:
			if err := nd.Decoder.Skip(); err != nil {
				return err
			}
		}
	}
	if !hasKey {
		return errors.New("map entry without key")
	}
	entries[key] = value
	return nil
}

// parseError decodes a query error document. Bodies that are not one (an HTML
// page from a proxy, say) fall back to the HTTP status as the error code.
func (p queryParser) parseError(desc *Descriptor) (map[string]any, error) {
	code := strconv.Itoa(desc.StatusCode)
	message := http.StatusText(desc.StatusCode)
	requestID := ""

	if len(bytes.TrimSpace(desc.Body)) > 0 {
		ec, err := awsxml.GetErrorResponseComponents(bytes.NewReader(desc.Body), false)
		if err == nil && ec.Code != "" {
			code, message, requestID = ec.Code, ec.Message, ec.RequestID
		}
	}
	return map[string]any{
		"Error": map[string]any{
			"Code":    code,
			"Message": message,
		},
		"ResponseMetadata": responseMetadata(desc, requestID),
	}, nil
}
