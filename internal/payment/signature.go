package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance bounds how old a webhook timestamp may be before the
// event is rejected as a potential replay.
const DefaultTolerance = 5 * time.Minute

// Signature verification errors. All of them mean the payload must not be
// processed.
var (
	ErrMissingSignature   = errors.New("webhook signature header is missing")
	ErrMalformedSignature = errors.New("webhook signature header is malformed")
	ErrExpiredTimestamp   = errors.New("webhook timestamp is outside the allowed tolerance")
	ErrNoValidSignature   = errors.New("webhook signature does not match payload")
)

// signatureSchemes are the accepted scheme keys for the HMAC value. The
// gateway signs with one of these depending on API version.
var signatureSchemes = []string{"s", "v1", "te"}

// VerifySignature checks a webhook signature header of the form
//
//	t=<unix-timestamp>,s=<hex-hmac>
//
// (or the v1=/te= scheme variants) against the raw payload. The expected
// signature is HMAC-SHA256 over "{timestamp}.{body}" keyed with the shared
// webhook secret; comparison is constant-time. A zero tolerance disables
// the timestamp check.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration) error {
	if header == "" {
		return ErrMissingSignature
	}

	var timestamp string
	var candidates [][]byte

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			return ErrMalformedSignature
		}
		key, value := parts[0], parts[1]
		if key == "t" {
			timestamp = value
			continue
		}
		for _, scheme := range signatureSchemes {
			if key == scheme {
				sig, err := hex.DecodeString(value)
				if err != nil {
					return fmt.Errorf("%w: bad hex in %s", ErrMalformedSignature, key)
				}
				candidates = append(candidates, sig)
			}
		}
		// Unknown keys are ignored for forward compatibility.
	}

	if timestamp == "" || len(candidates) == 0 {
		return ErrMalformedSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp", ErrMalformedSignature)
	}
	if tolerance > 0 {
		age := time.Since(time.Unix(ts, 0))
		if age > tolerance || age < -tolerance {
			return ErrExpiredTimestamp
		}
	}

	expected := ComputeSignature(payload, timestamp, secret)
	for _, candidate := range candidates {
		if len(candidate) == len(expected) && subtle.ConstantTimeCompare(candidate, expected) == 1 {
			return nil
		}
	}
	return ErrNoValidSignature
}

// ComputeSignature returns the HMAC-SHA256 of "{timestamp}.{payload}" keyed
// with secret. Exposed for tests and for signing outbound test events.
func ComputeSignature(payload []byte, timestamp, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	return mac.Sum(nil)
}

// SignPayload builds a complete signature header for payload at the given
// time, using the "s" scheme. Used by tests and local tooling.
func SignPayload(payload []byte, at time.Time, secret string) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,s=%s", ts, hex.EncodeToString(ComputeSignature(payload, ts, secret)))
}
