package slackbot

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// maxSignatureAge rejects replayed requests. Slack recommends five minutes.
const maxSignatureAge = 5 * time.Minute

// signatureVersion is the Slack signing scheme version prefix.
const signatureVersion = "v0"

// ErrBadSignature is returned when a request fails signature verification.
var ErrBadSignature = errors.New("slackbot: signature mismatch")

// ErrStaleTimestamp is returned when the request timestamp falls outside the
// replay window.
var ErrStaleTimestamp = errors.New("slackbot: stale request timestamp")

// verifySignature checks the X-Slack-Signature header against an HMAC-SHA256
// of "v0:<timestamp>:<body>" keyed with the signing secret.
func verifySignature(secret, timestamp, signature string, body []byte, now time.Time) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrStaleTimestamp, timestamp)
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > maxSignatureAge || age < -maxSignatureAge {
		return fmt.Errorf("%w: %s old", ErrStaleTimestamp, age)
	}

	expected := sign(secret, timestamp, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}

// sign computes "v0=<hex hmac>" over "v0:<timestamp>:<body>".
func sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	return signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
}
