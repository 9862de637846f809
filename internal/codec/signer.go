package codec

import (
	"bytes"
	"compress/zlib"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const sep = "."

var (
	ErrBadSignature = errors.New("bad signature")
	ErrBadPayload   = errors.New("bad payload")
)

var b64 = base64.RawURLEncoding

// Signer produces and verifies URL-safe signed payloads: compact JSON,
// zlib-compressed when that is shorter (flagged by a leading "."),
// base64url without padding, followed by "." and an HMAC-SHA1 signature
// keyed by sha1(salt + "signer" + secret).
type Signer struct {
	key []byte
}

// NewSigner derives the signing key once; the returned Signer is read-only
// and safe for concurrent use.
func NewSigner(secret, salt string) (*Signer, error) {
	if secret == "" {
		return nil, errors.New("signer: empty secret")
	}
	h := sha1.New()
	h.Write([]byte(salt))
	h.Write([]byte("signer"))
	h.Write([]byte(secret))
	return &Signer{key: h.Sum(nil)}, nil
}

func (s *Signer) signature(value string) string {
	mac := hmac.New(sha1.New, s.key)
	mac.Write([]byte(value))
	return b64.EncodeToString(mac.Sum(nil))
}

// Dumps serializes v and signs it.
func (s *Signer) Dumps(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}

	payload := b64.EncodeToString(raw)
	if buf.Len() < len(raw)-1 {
		payload = sep + b64.EncodeToString(buf.Bytes())
	}
	return payload + sep + s.signature(payload), nil
}

// Loads verifies signed and decodes its payload into v.
func (s *Signer) Loads(signed string, v any) error {
	i := strings.LastIndex(signed, sep)
	if i < 0 {
		return fmt.Errorf("%w: no %q found in value", ErrBadSignature, sep)
	}
	payload, sig := signed[:i], signed[i+1:]
	if !hmac.Equal([]byte(sig), []byte(s.signature(payload))) {
		return fmt.Errorf("%w: signature does not match", ErrBadSignature)
	}

	compressed := strings.HasPrefix(payload, sep)
	if compressed {
		payload = payload[1:]
	}
	raw, err := b64.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return fmt.Errorf("%w: base64: %v", ErrBadPayload, err)
	}
	if compressed {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return fmt.Errorf("%w: zlib: %v", ErrBadPayload, err)
		}
		defer zr.Close()
		if raw, err = io.ReadAll(zr); err != nil {
			return fmt.Errorf("%w: zlib: %v", ErrBadPayload, err)
		}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: json: %v", ErrBadPayload, err)
	}
	return nil
}
