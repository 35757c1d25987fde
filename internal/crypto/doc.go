// Package crypto implements the sealed packet format and the typed key
// handles it is built from.
//
// # Suites
//
// The default suite uses RSA-2048 for both key pairs: RSA-OAEP-SHA256 wraps
// the session key and RSA-PSS-SHA256 signs the digest. The post-quantum suite
// uses ML-KEM-768 with an HKDF-SHA-512 derived AES-256-GCM wrap for the
// session key and ML-DSA-65 for signatures.
//
// # Packets
//
// Every packet carries a fresh AES-256 session key and a 12-byte IV. The
// digest is SHA-256 over the IV followed by the ciphertext, and the sender
// signs the digest. Verify checks format, integrity and signature before it
// touches the recipient private key.
//
// # Keys
//
// Keys are capability restricted: an EncryptionKey can only encrypt, a
// DecryptionKey can only decrypt, a SigningKey can only sign and a
// VerificationKey can only verify. Private handles expose Destroy.
package crypto
