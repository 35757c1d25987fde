package crypto

import (
	"crypto/rsa"
	"crypto/x509"
	"fmt"
	"strings"

	"github.com/cloudflare/circl/sign/mldsa/mldsa65"
)

// EncodePublicKey returns the text form of an encoded public key.
func EncodePublicKey(raw []byte) string {
	return ToBase64(raw)
}

// EncodePrivateKey returns the text form of an encoded private key.
func EncodePrivateKey(raw []byte) string {
	return ToBase64(raw)
}

// DecodeEncryptionKey parses key text published by a recipient.
func DecodeEncryptionKey(text string) (*EncryptionKey, error) {
	raw, err := decodeKeyText(text)
	if err != nil {
		return nil, err
	}
	return ParseEncryptionKey(raw)
}

// DecodeVerificationKey parses key text published by a sender.
func DecodeVerificationKey(text string) (*VerificationKey, error) {
	raw, err := decodeKeyText(text)
	if err != nil {
		return nil, err
	}
	return ParseVerificationKey(raw)
}

// DecodeDecryptionKey parses retained private encryption key text.
func DecodeDecryptionKey(text string) (*DecryptionKey, error) {
	raw, err := decodeKeyText(text)
	if err != nil {
		return nil, err
	}
	defer Zero(raw)
	return ParseDecryptionKey(raw)
}

// DecodeSigningKey parses retained private signing key text.
func DecodeSigningKey(text string) (*SigningKey, error) {
	raw, err := decodeKeyText(text)
	if err != nil {
		return nil, err
	}
	defer Zero(raw)
	return ParseSigningKey(raw)
}

// DecodePublicKey parses public key text for the given purpose.
func DecodePublicKey(text string, purpose Purpose) (PublicKey, error) {
	switch purpose {
	case PurposeEncryption:
		return DecodeEncryptionKey(text)
	case PurposeSigning:
		return DecodeVerificationKey(text)
	}
	return nil, fmt.Errorf("%w: unknown purpose %s", ErrKeyFormat, purpose)
}

// DecodePrivateKey parses private key text for the given purpose.
func DecodePrivateKey(text string, purpose Purpose) (PrivateKey, error) {
	switch purpose {
	case PurposeEncryption:
		return DecodeDecryptionKey(text)
	case PurposeSigning:
		return DecodeSigningKey(text)
	}
	return nil, fmt.Errorf("%w: unknown purpose %s", ErrKeyFormat, purpose)
}

// ParseEncryptionKey parses an encoded recipient public key.
//
// RSA keys are SPKI DER. ML-KEM-768 keys are the packed encoding. An ML-DSA
// public key or any private key is rejected.
func ParseEncryptionKey(raw []byte) (*EncryptionKey, error) {
	switch len(raw) {
	case 0:
		return nil, fmt.Errorf("%w: empty key", ErrKeyFormat)
	case MLKEMPublicKeySize:
		pub, err := mlkemScheme.UnmarshalBinaryPublicKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: ml-kem public key: %v", ErrKeyFormat, err)
		}
		return &EncryptionKey{alg: AlgorithmMLKEM768, kem: pub}, nil
	case MLDSAPublicKeySize:
		return nil, fmt.Errorf("%w: signing key supplied for encryption", ErrKeyFormat)
	case MLKEMPrivateKeySize, MLDSAPrivateKeySize:
		return nil, fmt.Errorf("%w: private key supplied as public key", ErrKeyFormat)
	}

	pub, err := parseRSAPublicKey(raw)
	if err != nil {
		return nil, err
	}
	return &EncryptionKey{alg: AlgorithmRSA, rsa: pub}, nil
}

// ParseVerificationKey parses an encoded sender public key.
//
// RSA keys are SPKI DER. ML-DSA-65 keys are the packed encoding. An ML-KEM
// public key or any private key is rejected.
func ParseVerificationKey(raw []byte) (*VerificationKey, error) {
	switch len(raw) {
	case 0:
		return nil, fmt.Errorf("%w: empty key", ErrKeyFormat)
	case MLDSAPublicKeySize:
		var pub mldsa65.PublicKey
		if err := pub.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("%w: ml-dsa public key: %v", ErrKeyFormat, err)
		}
		return &VerificationKey{alg: AlgorithmMLDSA65, dsa: &pub}, nil
	case MLKEMPublicKeySize:
		return nil, fmt.Errorf("%w: encryption key supplied for signing", ErrKeyFormat)
	case MLKEMPrivateKeySize, MLDSAPrivateKeySize:
		return nil, fmt.Errorf("%w: private key supplied as public key", ErrKeyFormat)
	}

	pub, err := parseRSAPublicKey(raw)
	if err != nil {
		return nil, err
	}
	return &VerificationKey{alg: AlgorithmRSA, rsa: pub}, nil
}

// ParseDecryptionKey parses an encoded recipient private key.
// The caller keeps ownership of raw.
func ParseDecryptionKey(raw []byte) (*DecryptionKey, error) {
	switch len(raw) {
	case 0:
		return nil, fmt.Errorf("%w: empty key", ErrKeyFormat)
	case MLKEMPrivateKeySize:
		priv, err := mlkemScheme.UnmarshalBinaryPrivateKey(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: ml-kem private key: %v", ErrKeyFormat, err)
		}
		return &DecryptionKey{alg: AlgorithmMLKEM768, kem: priv}, nil
	case MLDSAPrivateKeySize:
		return nil, fmt.Errorf("%w: signing key supplied for decryption", ErrKeyFormat)
	case MLKEMPublicKeySize, MLDSAPublicKeySize:
		return nil, fmt.Errorf("%w: public key supplied as private key", ErrKeyFormat)
	}

	priv, err := parseRSAPrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &DecryptionKey{alg: AlgorithmRSA, rsa: priv}, nil
}

// ParseSigningKey parses an encoded sender private key.
// The caller keeps ownership of raw.
func ParseSigningKey(raw []byte) (*SigningKey, error) {
	switch len(raw) {
	case 0:
		return nil, fmt.Errorf("%w: empty key", ErrKeyFormat)
	case MLDSAPrivateKeySize:
		var priv mldsa65.PrivateKey
		if err := priv.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("%w: ml-dsa private key: %v", ErrKeyFormat, err)
		}
		return &SigningKey{alg: AlgorithmMLDSA65, dsa: &priv}, nil
	case MLKEMPrivateKeySize:
		return nil, fmt.Errorf("%w: encryption key supplied for signing", ErrKeyFormat)
	case MLKEMPublicKeySize, MLDSAPublicKeySize:
		return nil, fmt.Errorf("%w: public key supplied as private key", ErrKeyFormat)
	}

	priv, err := parseRSAPrivateKey(raw)
	if err != nil {
		return nil, err
	}
	return &SigningKey{alg: AlgorithmRSA, rsa: priv}, nil
}

func decodeKeyText(text string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty key text", ErrKeyFormat)
	}
	raw, err := DecodeBase64(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	return raw, nil
}

func parseRSAPublicKey(raw []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(raw)
	if err != nil {
		if _, perr := x509.ParsePKCS8PrivateKey(raw); perr == nil {
			return nil, fmt.Errorf("%w: private key supplied as public key", ErrKeyFormat)
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}

	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported public key type %T", ErrKeyFormat, parsed)
	}
	if pub.N.BitLen() < MinRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key too small (%d bits)", ErrKeyFormat, pub.N.BitLen())
	}
	return pub, nil
}

func parseRSAPrivateKey(raw []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(raw)
	if err != nil {
		if _, perr := x509.ParsePKIXPublicKey(raw); perr == nil {
			return nil, fmt.Errorf("%w: public key supplied as private key", ErrKeyFormat)
		}
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}

	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported private key type %T", ErrKeyFormat, parsed)
	}
	if err := priv.Validate(); err != nil {
		zeroRSA(priv)
		return nil, fmt.Errorf("%w: %v", ErrKeyFormat, err)
	}
	if priv.N.BitLen() < MinRSAKeyBits {
		zeroRSA(priv)
		return nil, fmt.Errorf("%w: rsa key too small (%d bits)", ErrKeyFormat, priv.N.BitLen())
	}
	return priv, nil
}
