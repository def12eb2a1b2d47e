// Package interactions implements the signature-gated webhook entry point:
// request verification, payload parsing and synchronous dispatch.
package interactions

import (
	"crypto/ed25519"
	"encoding/hex"
)

// VerifySignature checks an ed25519 signature over the concatenation of the
// timestamp header text and the raw request body. It never errors: malformed
// hex, a wrong-length key or signature, or a missing key all report false.
// The function is pure and runs in bounded time; it touches no network or
// storage.
func VerifySignature(rawBody []byte, signatureHex, timestampText, publicKeyHex string) bool {
	if publicKeyHex == "" || signatureHex == "" {
		return false
	}
	publicKey, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(publicKey) != ed25519.PublicKeySize {
		return false
	}
	signature, err := hex.DecodeString(signatureHex)
	if err != nil || len(signature) != ed25519.SignatureSize {
		return false
	}
	message := make([]byte, 0, len(timestampText)+len(rawBody))
	message = append(message, timestampText...)
	message = append(message, rawBody...)
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, signature)
}
