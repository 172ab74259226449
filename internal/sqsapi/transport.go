package sqsapi

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const signingName = "sqs"

// signingTransport signs each request with SigV4 before handing it on.
type signingTransport struct {
	base        http.RoundTripper
	credentials aws.CredentialsProvider
	signer      *v4.Signer
	region      string
	now         func() time.Time
}

func (t *signingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone the request to avoid modifying the original
	cloned := req.Clone(req.Context())

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, pkgerrors.Wrap(err, "read request body for signing")
		}
		cloned.Body = io.NopCloser(bytes.NewReader(body))
		cloned.ContentLength = int64(len(body))
	}
	sum := sha256.Sum256(body)

	creds, err := t.credentials.Retrieve(req.Context())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "retrieve credentials")
	}
	if err := t.signer.SignHTTP(req.Context(), creds, cloned, hex.EncodeToString(sum[:]), signingName, t.region, t.now()); err != nil {
		return nil, pkgerrors.Wrap(err, "sign request")
	}
	return t.base.RoundTrip(cloned)
}

// debugTransport logs each exchange at debug level. Message bodies are
// included; credentials are not.
type debugTransport struct {
	base   http.RoundTripper
	logger zerolog.Logger
}

// redactedHeaders are blanked in request dumps.
var redactedHeaders = []string{"Authorization", "X-Amz-Security-Token"}

func (dt *debugTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ev := dt.logger.Debug().Str("method", req.Method).Str("url", req.URL.String())
	if dump, err := httputil.DumpRequestOut(req, true); err == nil {
		ev.Str("request_dump", redact(dump)).Msg("sqs request")
	}

	resp, err := dt.base.RoundTrip(req)
	if err != nil {
		dt.logger.Error().Err(err).Str("url", req.URL.String()).Msg("sqs request failed")
		return nil, err
	}

	if dump, err := httputil.DumpResponse(resp, true); err == nil {
		dt.logger.Debug().
			Int("status_code", resp.StatusCode).
			Str("request_id", resp.Header.Get("X-Amzn-Requestid")).
			Str("response_dump", string(dump)).
			Msg("sqs response")
	}
	return resp, nil
}

func redact(dump []byte) string {
	lines := strings.Split(string(dump), "\r\n")
	for i, line := range lines {
		if line == "" {
			// End of headers.
			break
		}
		for _, h := range redactedHeaders {
			if len(line) > len(h) && strings.EqualFold(line[:len(h)+1], h+":") {
				lines[i] = h + ": [redacted]"
			}
		}
	}
	return strings.Join(lines, "\r\n")
}
