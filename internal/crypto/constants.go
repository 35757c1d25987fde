package crypto

import (
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

const (
	// SessionKeyWrapContext is the HKDF info string used when deriving the
	// key that wraps a session key under an ML-KEM shared secret.
	SessionKeyWrapContext = "sealedvoice:session-key:v1"

	// RSAKeyBits is the modulus size used for generated RSA keys.
	RSAKeyBits = 2048
	// MinRSAKeyBits is the smallest RSA modulus accepted when decoding.
	MinRSAKeyBits = 2048

	// MLKEMPublicKeySize is the size of an ML-KEM-768 public key in bytes.
	MLKEMPublicKeySize = mlkem768.PublicKeySize
	// MLKEMPrivateKeySize is the size of an ML-KEM-768 private key in bytes.
	MLKEMPrivateKeySize = mlkem768.PrivateKeySize
	// MLKEMCiphertextSize is the size of an ML-KEM-768 ciphertext in bytes.
	MLKEMCiphertextSize = mlkem768.CiphertextSize

	// MLDSAPublicKeySize is the size of an ML-DSA-65 public key in bytes.
	MLDSAPublicKeySize = mldsa65.PublicKeySize
	// MLDSAPrivateKeySize is the size of an ML-DSA-65 private key in bytes.
	MLDSAPrivateKeySize = mldsa65.PrivateKeySize
	// MLDSASignatureSize is the size of an ML-DSA-65 signature in bytes.
	MLDSASignatureSize = mldsa65.SignatureSize

	// SessionKeySize is the size of an AES-256 session key in bytes.
	SessionKeySize = 32
	// AESNonceSize is the size of an AES-GCM nonce (the packet IV) in bytes.
	AESNonceSize = 12
	// AESTagSize is the size of an AES-GCM authentication tag in bytes.
	AESTagSize = 16

	// DigestSize is the size of the SHA-256 packet digest in bytes.
	DigestSize = 32
)
