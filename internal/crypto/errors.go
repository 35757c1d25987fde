package crypto

import "errors"

var (
	// ErrKeyFormat is returned when key text cannot be decoded into a key
	// usable for the requested purpose.
	ErrKeyFormat = errors.New("invalid key format")

	// ErrPacketFormat is returned when a packet field is missing or malformed.
	ErrPacketFormat = errors.New("invalid packet format")

	// ErrIntegrity is returned when the packet digest does not match the
	// IV and ciphertext it covers.
	ErrIntegrity = errors.New("packet integrity check failed")

	// ErrAuthentication is returned when the sender signature over the
	// packet digest is invalid.
	ErrAuthentication = errors.New("signature verification failed")

	// ErrKeyRecovery is returned when the encrypted session key cannot be
	// decrypted with the recipient's private key.
	ErrKeyRecovery = errors.New("session key recovery failed")

	// ErrDecryption is returned when the payload cannot be decrypted with
	// the recovered session key.
	ErrDecryption = errors.New("decryption failed")

	// ErrInvalidKeySize is returned when the AES key size is invalid.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidNonceSize is returned when the nonce size is invalid.
	ErrInvalidNonceSize = errors.New("invalid nonce size")

	// ErrKeyDestroyed is returned when a key handle is used after Destroy.
	ErrKeyDestroyed = errors.New("key has been destroyed")
)
