package interactions

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"
)

func signedRequest(t *testing.T, body []byte, timestamp string) (signatureHex, publicKeyHex string) {
	t.Helper()
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	message := append([]byte(timestamp), body...)
	signature := ed25519.Sign(private, message)
	return hex.EncodeToString(signature), hex.EncodeToString(public)
}

func TestVerifySignatureAccepts(t *testing.T) {
	body := []byte(`{"type":1}`)
	timestamp := "1700000000"
	signature, publicKey := signedRequest(t, body, timestamp)

	if !VerifySignature(body, signature, timestamp, publicKey) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	body := []byte(`{"type":1}`)
	timestamp := "1700000000"
	signature, publicKey := signedRequest(t, body, timestamp)

	tampered := append([]byte(nil), body...)
	tampered[0] ^= 0x01
	if VerifySignature(tampered, signature, timestamp, publicKey) {
		t.Fatal("tampered body must not verify")
	}
}

func TestVerifySignatureRejectsTamperedTimestamp(t *testing.T) {
	body := []byte(`{"type":1}`)
	signature, publicKey := signedRequest(t, body, "1700000000")

	if VerifySignature(body, signature, "1700000001", publicKey) {
		t.Fatal("altered timestamp must not verify")
	}
}

func TestVerifySignatureRejectsTamperedSignature(t *testing.T) {
	body := []byte(`{"type":1}`)
	timestamp := "1700000000"
	signature, publicKey := signedRequest(t, body, timestamp)

	raw, err := hex.DecodeString(signature)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	raw[0] ^= 0x01
	if VerifySignature(body, hex.EncodeToString(raw), timestamp, publicKey) {
		t.Fatal("flipped signature byte must not verify")
	}
}

func TestVerifySignatureRejectsWrongKey(t *testing.T) {
	body := []byte(`{"type":1}`)
	timestamp := "1700000000"
	signature, _ := signedRequest(t, body, timestamp)
	_, otherKey := signedRequest(t, body, timestamp)

	if VerifySignature(body, signature, timestamp, otherKey) {
		t.Fatal("wrong public key must not verify")
	}
}

func TestVerifySignatureMalformedInputs(t *testing.T) {
	body := []byte(`{"type":1}`)
	timestamp := "1700000000"
	signature, publicKey := signedRequest(t, body, timestamp)

	cases := map[string]struct {
		signature string
		key       string
	}{
		"empty signature":   {"", publicKey},
		"non-hex signature": {"zz" + signature[2:], publicKey},
		"short signature":   {signature[:8], publicKey},
		"empty key":         {signature, ""},
		"non-hex key":       {signature, "zz" + publicKey[2:]},
		"wrong-length key":  {signature, publicKey[:16]},
		"oversized key":     {signature, publicKey + "aa"},
	}
	for name, tc := range cases {
		if VerifySignature(body, tc.signature, timestamp, tc.key) {
			t.Fatalf("%s must not verify", name)
		}
	}
}
