package easy

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Signature envelope framing
const (
	sigHeader     = "-----BEGIN SIGNATURE-----"
	sigFooter     = "-----END SIGNATURE-----"
	sigLineLength = 64
)

var sigEnvelopeRE = regexp.MustCompile(`(?s)-----BEGIN SIGNATURE-----\n?(.*?)\n?-----END SIGNATURE-----`)

// EncodeSignature frames a raw signature as a delimited base64 text block:
// the body is wrapped at 64 characters per line between the BEGIN/END
// markers, with a trailing newline after the footer.
func EncodeSignature(signature []byte) string {
	b64 := base64.StdEncoding.EncodeToString(signature)

	var sb strings.Builder
	sb.WriteString(sigHeader)
	sb.WriteByte('\n')
	for len(b64) > sigLineLength {
		sb.WriteString(b64[:sigLineLength])
		sb.WriteByte('\n')
		b64 = b64[sigLineLength:]
	}
	if len(b64) > 0 {
		sb.WriteString(b64)
		sb.WriteByte('\n')
	}
	sb.WriteString(sigFooter)
	sb.WriteByte('\n')
	return sb.String()
}

// DecodeSignature extracts and decodes the base64 body between the
// BEGIN/END SIGNATURE markers. The decoded bytes are returned without any
// plausibility check on their length.
func DecodeSignature(data []byte) ([]byte, error) {
	m := sigEnvelopeRE.FindSubmatch(data)
	if m == nil {
		return nil, errors.WithMessagef(ErrMalformedSignature, "signature markers not found")
	}

	b64 := strings.Join(strings.Fields(string(m[1])), "")
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, errors.WithMessagef(ErrMalformedSignature, "invalid base64 body: %v", err)
	}
	return raw, nil
}
