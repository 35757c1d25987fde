package crypto

import (
	stdcrypto "crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cloudflare/circl/kem"
	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// randReader is the random source used for key generation, session keys and IVs.
// It defaults to nil (which uses crypto/rand) but can be overridden for testing.
var randReader io.Reader

func random() io.Reader {
	if randReader != nil {
		return randReader
	}
	return rand.Reader
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(random(), b); err != nil {
		return nil, fmt.Errorf("read random bytes: %w", err)
	}
	return b, nil
}

// Purpose fixes whether a key may be used to encrypt/decrypt or to sign/verify.
type Purpose int

const (
	// PurposeEncryption keys protect session keys.
	PurposeEncryption Purpose = iota + 1
	// PurposeSigning keys authenticate packet digests.
	PurposeSigning
)

func (p Purpose) String() string {
	switch p {
	case PurposeEncryption:
		return "encryption"
	case PurposeSigning:
		return "signing"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

// Algorithm identifies the asymmetric primitive behind a key.
type Algorithm string

const (
	// AlgorithmRSA is RSA-OAEP-SHA256 for encryption and RSA-PSS-SHA256 for signing.
	AlgorithmRSA Algorithm = "RSA"
	// AlgorithmMLKEM768 is ML-KEM-768 (FIPS 203), encryption only.
	AlgorithmMLKEM768 Algorithm = "ML-KEM-768"
	// AlgorithmMLDSA65 is ML-DSA-65 (FIPS 204), signing only.
	AlgorithmMLDSA65 Algorithm = "ML-DSA-65"
)

// Suite selects the algorithms used for a new identity.
type Suite string

const (
	// SuiteRSA uses RSA-2048 for both key pairs.
	SuiteRSA Suite = "rsa"
	// SuitePostQuantum uses ML-KEM-768 for encryption and ML-DSA-65 for signing.
	SuitePostQuantum Suite = "pq"
)

// Algorithm returns the algorithm the suite uses for the given purpose.
func (s Suite) Algorithm(p Purpose) (Algorithm, error) {
	switch s {
	case SuiteRSA, "":
		if p == PurposeEncryption || p == PurposeSigning {
			return AlgorithmRSA, nil
		}
	case SuitePostQuantum:
		switch p {
		case PurposeEncryption:
			return AlgorithmMLKEM768, nil
		case PurposeSigning:
			return AlgorithmMLDSA65, nil
		}
	default:
		return "", fmt.Errorf("unknown suite %q", string(s))
	}
	return "", fmt.Errorf("unknown purpose %s", p)
}

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: stdcrypto.SHA256}

// EncryptionKey is a recipient public key. It can only encrypt session keys.
type EncryptionKey struct {
	alg Algorithm
	rsa *rsa.PublicKey
	kem kem.PublicKey
}

// Purpose returns PurposeEncryption.
func (k *EncryptionKey) Purpose() Purpose { return PurposeEncryption }

// Algorithm returns the key algorithm.
func (k *EncryptionKey) Algorithm() Algorithm { return k.alg }

// Encrypt protects a session key so only the matching DecryptionKey can recover it.
func (k *EncryptionKey) Encrypt(sessionKey []byte) ([]byte, error) {
	switch k.alg {
	case AlgorithmRSA:
		return rsa.EncryptOAEP(sha256.New(), random(), k.rsa, sessionKey, nil)
	case AlgorithmMLKEM768:
		return wrapSessionKey(k.kem, sessionKey)
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrKeyFormat, k.alg)
	}
}

// DecryptionKey is a recipient private key. It can only decrypt session keys.
type DecryptionKey struct {
	mu  sync.Mutex
	alg Algorithm
	rsa *rsa.PrivateKey
	kem kem.PrivateKey
}

// Purpose returns PurposeEncryption.
func (k *DecryptionKey) Purpose() Purpose { return PurposeEncryption }

// Algorithm returns the key algorithm.
func (k *DecryptionKey) Algorithm() Algorithm { return k.alg }

// Decrypt recovers a session key produced by EncryptionKey.Encrypt.
func (k *DecryptionKey) Decrypt(wrapped []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case k.rsa != nil:
		sessionKey, err := rsa.DecryptOAEP(sha256.New(), nil, k.rsa, wrapped, nil)
		if err != nil {
			return nil, ErrKeyRecovery
		}
		return sessionKey, nil
	case k.kem != nil:
		return unwrapSessionKey(k.kem, wrapped)
	default:
		return nil, ErrKeyDestroyed
	}
}

// Public returns the EncryptionKey matching this private key.
func (k *DecryptionKey) Public() (*EncryptionKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case k.rsa != nil:
		pub := k.rsa.PublicKey
		return &EncryptionKey{alg: AlgorithmRSA, rsa: &pub}, nil
	case k.kem != nil:
		return &EncryptionKey{alg: AlgorithmMLKEM768, kem: k.kem.Public()}, nil
	default:
		return nil, ErrKeyDestroyed
	}
}

// Destroy releases the private key material. Later calls fail with ErrKeyDestroyed.
func (k *DecryptionKey) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	zeroRSA(k.rsa)
	k.rsa = nil
	k.kem = nil
}

// SigningKey is a sender private key. It can only sign packet digests.
type SigningKey struct {
	mu  sync.Mutex
	alg Algorithm
	rsa *rsa.PrivateKey
	dsa *mldsa65.PrivateKey
}

// Purpose returns PurposeSigning.
func (k *SigningKey) Purpose() Purpose { return PurposeSigning }

// Algorithm returns the key algorithm.
func (k *SigningKey) Algorithm() Algorithm { return k.alg }

// Sign produces a randomized signature over a SHA-256 digest.
func (k *SigningKey) Sign(digest []byte) ([]byte, error) {
	if len(digest) != DigestSize {
		return nil, fmt.Errorf("digest size: got %d, want %d", len(digest), DigestSize)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case k.rsa != nil:
		return rsa.SignPSS(random(), k.rsa, stdcrypto.SHA256, digest, pssOptions)
	case k.dsa != nil:
		sig := make([]byte, mldsa65.SignatureSize)
		if err := mldsa65.SignTo(k.dsa, digest, nil, true, sig); err != nil {
			return nil, fmt.Errorf("ml-dsa sign: %w", err)
		}
		return sig, nil
	default:
		return nil, ErrKeyDestroyed
	}
}

// Public returns the VerificationKey matching this private key.
func (k *SigningKey) Public() (*VerificationKey, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	switch {
	case k.rsa != nil:
		pub := k.rsa.PublicKey
		return &VerificationKey{alg: AlgorithmRSA, rsa: &pub}, nil
	case k.dsa != nil:
		pub, ok := k.dsa.Public().(*mldsa65.PublicKey)
		if !ok {
			return nil, errors.New("ml-dsa: unexpected public key type")
		}
		return &VerificationKey{alg: AlgorithmMLDSA65, dsa: pub}, nil
	default:
		return nil, ErrKeyDestroyed
	}
}

// Destroy releases the private key material. Later calls fail with ErrKeyDestroyed.
func (k *SigningKey) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()
	zeroRSA(k.rsa)
	k.rsa = nil
	k.dsa = nil
}

// VerificationKey is a sender public key. It can only verify signatures.
type VerificationKey struct {
	alg Algorithm
	rsa *rsa.PublicKey
	dsa *mldsa65.PublicKey
}

// Purpose returns PurposeSigning.
func (k *VerificationKey) Purpose() Purpose { return PurposeSigning }

// Algorithm returns the key algorithm.
func (k *VerificationKey) Algorithm() Algorithm { return k.alg }

// Verify checks a signature over a SHA-256 digest.
func (k *VerificationKey) Verify(digest, sig []byte) error {
	switch k.alg {
	case AlgorithmRSA:
		if err := rsa.VerifyPSS(k.rsa, stdcrypto.SHA256, digest, sig, pssOptions); err != nil {
			return ErrAuthentication
		}
		return nil
	case AlgorithmMLDSA65:
		if !mldsa65.Verify(k.dsa, digest, nil, sig) {
			return ErrAuthentication
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrKeyFormat, k.alg)
	}
}

// PublicKey is implemented by EncryptionKey and VerificationKey.
type PublicKey interface {
	Purpose() Purpose
	Algorithm() Algorithm
}

// PrivateKey is implemented by DecryptionKey and SigningKey.
type PrivateKey interface {
	Purpose() Purpose
	Algorithm() Algorithm
	Destroy()
}

var mlkemScheme = mlkem768.Scheme()
