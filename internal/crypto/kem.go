package crypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/cloudflare/circl/kem"
	"golang.org/x/crypto/hkdf"
)

// wrapSessionKey encapsulates a fresh shared secret to pub and uses it to
// seal the session key.
//
// Output layout: kemCiphertext (1088) || nonce (12) || sealed session key || tag (16)
func wrapSessionKey(pub kem.PublicKey, sessionKey []byte) ([]byte, error) {
	ctKem, sharedSecret, err := mlkemScheme.Encapsulate(pub)
	if err != nil {
		return nil, fmt.Errorf("ml-kem encapsulate: %w", err)
	}
	defer Zero(sharedSecret)

	wrapKey, err := deriveWrapKey(sharedSecret, ctKem)
	if err != nil {
		return nil, err
	}
	defer Zero(wrapKey)

	nonce, err := randomBytes(AESNonceSize)
	if err != nil {
		return nil, err
	}

	sealed, err := encryptAESGCM(wrapKey, nonce, sessionKey)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(ctKem)+len(nonce)+len(sealed))
	out = append(out, ctKem...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// unwrapSessionKey reverses wrapSessionKey. ML-KEM decapsulation never fails
// for a well-sized ciphertext (implicit rejection), so a wrong private key
// surfaces as an authentication failure of the sealed session key.
func unwrapSessionKey(priv kem.PrivateKey, wrapped []byte) ([]byte, error) {
	if len(wrapped) < MLKEMCiphertextSize+AESNonceSize+AESTagSize {
		return nil, fmt.Errorf("%w: wrapped key too short (%d bytes)", ErrKeyRecovery, len(wrapped))
	}

	ctKem := wrapped[:MLKEMCiphertextSize]
	nonce := wrapped[MLKEMCiphertextSize : MLKEMCiphertextSize+AESNonceSize]
	sealed := wrapped[MLKEMCiphertextSize+AESNonceSize:]

	sharedSecret, err := mlkemScheme.Decapsulate(priv, ctKem)
	if err != nil {
		return nil, fmt.Errorf("%w: ml-kem decapsulate: %v", ErrKeyRecovery, err)
	}
	defer Zero(sharedSecret)

	wrapKey, err := deriveWrapKey(sharedSecret, ctKem)
	if err != nil {
		return nil, err
	}
	defer Zero(wrapKey)

	sessionKey, err := decryptAESGCM(wrapKey, nonce, sealed)
	if err != nil {
		return nil, ErrKeyRecovery
	}
	return sessionKey, nil
}

// deriveWrapKey performs HKDF-SHA-512 key derivation.
//
// The key derivation uses:
//   - IKM (input key material): the KEM shared secret
//   - Salt: SHA-256 hash of the KEM ciphertext
//   - Info: SessionKeyWrapContext
func deriveWrapKey(sharedSecret, ctKem []byte) ([]byte, error) {
	salt := sha256.Sum256(ctKem)

	reader := hkdf.New(sha512.New, sharedSecret, salt[:], []byte(SessionKeyWrapContext))
	key := make([]byte, SessionKeySize)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	return key, nil
}
