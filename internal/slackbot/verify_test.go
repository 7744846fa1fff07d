package slackbot

import (
	"errors"
	"testing"
	"time"
)

func TestVerifySignatureRoundTrip(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := []byte(`{"type":"event_callback"}`)
	now := time.Unix(1756500000, 0)

	ts, sig := Sign(secret, now, body)
	if err := verifySignature(secret, ts, sig, body, now); err != nil {
		t.Fatalf("verifySignature() error = %v", err)
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	now := time.Unix(1756500000, 0)

	ts, sig := Sign(secret, now, []byte(`{"text":"original"}`))
	err := verifySignature(secret, ts, sig, []byte(`{"text":"tampered"}`), now)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("error = %v, want ErrBadSignature", err)
	}
}

func TestVerifySignatureRejectsWrongSecret(t *testing.T) {
	body := []byte(`{}`)
	now := time.Unix(1756500000, 0)

	ts, sig := Sign("secret-a", now, body)
	err := verifySignature("secret-b", ts, sig, body, now)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("error = %v, want ErrBadSignature", err)
	}
}

func TestVerifySignatureRejectsStaleTimestamp(t *testing.T) {
	secret := "8f742231b10e8888abcd99yyyzzz85a5"
	body := []byte(`{}`)
	signedAt := time.Unix(1756500000, 0)

	ts, sig := Sign(secret, signedAt, body)

	for name, now := range map[string]time.Time{
		"too_old":     signedAt.Add(maxSignatureAge + time.Second),
		"from_future": signedAt.Add(-(maxSignatureAge + time.Second)),
	} {
		t.Run(name, func(t *testing.T) {
			err := verifySignature(secret, ts, sig, body, now)
			if !errors.Is(err, ErrStaleTimestamp) {
				t.Fatalf("error = %v, want ErrStaleTimestamp", err)
			}
		})
	}
}

func TestVerifySignatureRejectsGarbageTimestamp(t *testing.T) {
	err := verifySignature("secret", "not-a-number", "v0=00", []byte(`{}`), time.Now())
	if !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("error = %v, want ErrStaleTimestamp", err)
	}
}
