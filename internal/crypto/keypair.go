package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"log/slog"

	"github.com/cloudflare/circl/kem/mlkem/mlkem768"
	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

const redacted = "[REDACTED]"

// Keypair holds the encoded public and private halves of one asymmetric key
// pair together with its purpose.
//
// PrivateKey is excluded from JSON and from fmt and slog output. Call
// Destroy when the pair is no longer needed.
type Keypair struct {
	// Purpose is the capability the pair was generated for.
	Purpose Purpose `json:"purpose"`
	// Algorithm is the asymmetric primitive.
	Algorithm Algorithm `json:"algorithm"`
	// PublicKey is SPKI DER for RSA, or the packed circl encoding.
	PublicKey []byte `json:"publicKey"`
	// PrivateKey is PKCS#8 DER for RSA, or the packed circl encoding.
	PrivateKey []byte `json:"-"`
}

// GenerateKeypair creates a new key pair for the given suite and purpose.
func GenerateKeypair(suite Suite, purpose Purpose) (*Keypair, error) {
	alg, err := suite.Algorithm(purpose)
	if err != nil {
		return nil, err
	}

	var pubBytes, privBytes []byte
	switch alg {
	case AlgorithmRSA:
		priv, err := rsa.GenerateKey(random(), RSAKeyBits)
		if err != nil {
			return nil, fmt.Errorf("generate rsa key: %w", err)
		}
		defer zeroRSA(priv)

		pubBytes, err = x509.MarshalPKIXPublicKey(&priv.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("marshal rsa public key: %w", err)
		}
		privBytes, err = x509.MarshalPKCS8PrivateKey(priv)
		if err != nil {
			return nil, fmt.Errorf("marshal rsa private key: %w", err)
		}

	case AlgorithmMLKEM768:
		pub, priv, err := mlkem768.GenerateKeyPair(random())
		if err != nil {
			return nil, fmt.Errorf("generate ml-kem key: %w", err)
		}
		// MarshalBinary never fails for valid keys from GenerateKeyPair
		pubBytes, _ = pub.MarshalBinary()
		privBytes, _ = priv.MarshalBinary()

	case AlgorithmMLDSA65:
		pub, priv, err := mldsa65.GenerateKey(random())
		if err != nil {
			return nil, fmt.Errorf("generate ml-dsa key: %w", err)
		}
		pubBytes, _ = pub.MarshalBinary()
		privBytes, _ = priv.MarshalBinary()
	}

	return &Keypair{
		Purpose:    purpose,
		Algorithm:  alg,
		PublicKey:  pubBytes,
		PrivateKey: privBytes,
	}, nil
}

// KeypairFromPrivateKey reconstructs a key pair from encoded private key
// bytes, deriving the public half. The returned pair owns a copy of privateKey.
func KeypairFromPrivateKey(purpose Purpose, privateKey []byte) (*Keypair, error) {
	var (
		alg      Algorithm
		pubBytes []byte
		err      error
	)

	switch purpose {
	case PurposeEncryption:
		priv, perr := ParseDecryptionKey(privateKey)
		if perr != nil {
			return nil, perr
		}
		defer priv.Destroy()
		pub, perr := priv.Public()
		if perr != nil {
			return nil, perr
		}
		alg = pub.alg
		pubBytes, err = marshalEncryptionKey(pub)

	case PurposeSigning:
		priv, perr := ParseSigningKey(privateKey)
		if perr != nil {
			return nil, perr
		}
		defer priv.Destroy()
		pub, perr := priv.Public()
		if perr != nil {
			return nil, perr
		}
		alg = pub.alg
		pubBytes, err = marshalVerificationKey(pub)

	default:
		return nil, fmt.Errorf("%w: unknown purpose %s", ErrKeyFormat, purpose)
	}
	if err != nil {
		return nil, err
	}

	return &Keypair{
		Purpose:    purpose,
		Algorithm:  alg,
		PublicKey:  pubBytes,
		PrivateKey: append([]byte(nil), privateKey...),
	}, nil
}

// ValidateKeypair reports whether the private half decodes for the pair's
// purpose and derives the stored public half.
func ValidateKeypair(keypair *Keypair) bool {
	if keypair == nil || len(keypair.PublicKey) == 0 || len(keypair.PrivateKey) == 0 {
		return false
	}

	derived, err := KeypairFromPrivateKey(keypair.Purpose, keypair.PrivateKey)
	if err != nil {
		return false
	}
	defer derived.Destroy()

	if derived.Algorithm != keypair.Algorithm || len(derived.PublicKey) != len(keypair.PublicKey) {
		return false
	}
	for i := range derived.PublicKey {
		if derived.PublicKey[i] != keypair.PublicKey[i] {
			return false
		}
	}
	return true
}

// Destroy zeroes the private key bytes.
func (k *Keypair) Destroy() {
	if k == nil {
		return
	}
	Zero(k.PrivateKey)
	k.PrivateKey = nil
}

// String implements fmt.Stringer without exposing the private key.
func (k *Keypair) String() string {
	return fmt.Sprintf("Keypair{Purpose: %s, Algorithm: %s, PrivateKey: %s}", k.Purpose, k.Algorithm, redacted)
}

// GoString implements fmt.GoStringer so %#v does not expose the private key.
func (k *Keypair) GoString() string {
	return k.String()
}

// LogValue implements slog.LogValuer.
func (k *Keypair) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("purpose", k.Purpose.String()),
		slog.String("algorithm", string(k.Algorithm)),
		slog.String("private_key", redacted),
	)
}

func marshalEncryptionKey(k *EncryptionKey) ([]byte, error) {
	switch k.alg {
	case AlgorithmRSA:
		return x509.MarshalPKIXPublicKey(k.rsa)
	case AlgorithmMLKEM768:
		return k.kem.MarshalBinary()
	}
	return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrKeyFormat, k.alg)
}

func marshalVerificationKey(k *VerificationKey) ([]byte, error) {
	switch k.alg {
	case AlgorithmRSA:
		return x509.MarshalPKIXPublicKey(k.rsa)
	case AlgorithmMLDSA65:
		return k.dsa.MarshalBinary()
	}
	return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrKeyFormat, k.alg)
}
