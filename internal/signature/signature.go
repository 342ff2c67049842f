// Package signature signs and verifies gateway payloads with HMAC-SHA256
// over a canonical JSON encoding.
package signature

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

type Verifier struct {
	secret []byte
}

func New(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex HMAC of the canonical payload, or "" when no secret is configured.
func (v *Verifier) Sign(payload map[string]any) (string, error) {
	if len(v.secret) == 0 {
		return "", nil
	}
	body, err := Canonicalize(payload)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// Verify fails closed: a missing secret or signature never verifies.
func (v *Verifier) Verify(payload map[string]any, signature string) bool {
	if len(v.secret) == 0 || signature == "" {
		return false
	}
	expected, err := v.Sign(payload)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Canonicalize encodes payload with keys sorted at every depth, no insignificant
// whitespace, HTML characters left as is, DEL and non-ASCII escaped as \uXXXX.
// Numbers decoded as json.Number keep the sender's literal form.
func Canonicalize(payload map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}
	return escapeNonASCII(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

func escapeNonASCII(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		b = b[size:]
		if r == 0x7f {
			out = append(out, `\u007f`...)
			continue
		}
		if r < utf8.RuneSelf {
			out = append(out, byte(r))
			continue
		}
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			out = fmt.Appendf(out, `\u%04x\u%04x`, hi, lo)
			continue
		}
		out = fmt.Appendf(out, `\u%04x`, r)
	}
	return out
}
