package sealedvoice

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/sealedvoice/client-go/internal/crypto"
)

// Labels of the retained private key text.
const (
	EncryptionPrivateKeyLabel = "Encryption Private Key"
	SigningPrivateKeyLabel    = "Signing Private Key"
)

// Labels written by earlier relay clients, accepted on import.
const (
	legacyEncryptionPrivateKeyLabel = "RSA Private Key"
	legacySigningPrivateKeyLabel    = "Sign Private Key"
)

// PublicKeys are the text forms of an identity's public keys, as published
// in the directory.
type PublicKeys struct {
	// Encryption is the key senders encrypt session keys to.
	Encryption string `json:"rsaPublicKey"`
	// Signing is the key recipients verify signatures with.
	Signing string `json:"signPublicKey"`
}

// PrivateKeys are the text forms of an identity's private keys.
type PrivateKeys struct {
	Encryption string `json:"-"`
	Signing    string `json:"-"`
}

// Text renders the two-line retention format:
//
//	Encryption Private Key: <base64>
//	Signing Private Key: <base64>
func (k PrivateKeys) Text() string {
	return EncryptionPrivateKeyLabel + ": " + k.Encryption + "\n" +
		SigningPrivateKeyLabel + ": " + k.Signing + "\n"
}

// String implements fmt.Stringer without exposing the keys.
func (k PrivateKeys) String() string {
	return "PrivateKeys{[REDACTED]}"
}

// GoString implements fmt.GoStringer so %#v does not expose the keys.
func (k PrivateKeys) GoString() string {
	return k.String()
}

// ParsePrivateKeys parses text produced by PrivateKeys.Text. Labels are
// matched case-insensitively; surrounding whitespace and blank lines are
// ignored. Each key must appear exactly once. "RSA Private Key" and
// "Sign Private Key" are accepted for the encryption and signing keys.
func ParsePrivateKeys(text string) (PrivateKeys, error) {
	var (
		keys           PrivateKeys
		seenEnc, seenS bool
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		label, value, ok := strings.Cut(line, ":")
		if !ok {
			return PrivateKeys{}, &KeyFormatError{Err: fmt.Errorf("line %d: missing label", lineNo)}
		}
		label = strings.TrimSpace(label)
		value = strings.TrimSpace(value)

		switch {
		case strings.EqualFold(label, EncryptionPrivateKeyLabel),
			strings.EqualFold(label, legacyEncryptionPrivateKeyLabel):
			if seenEnc {
				return PrivateKeys{}, &KeyFormatError{Err: fmt.Errorf("line %d: repeated %q", lineNo, EncryptionPrivateKeyLabel)}
			}
			seenEnc = true
			keys.Encryption = value
		case strings.EqualFold(label, SigningPrivateKeyLabel),
			strings.EqualFold(label, legacySigningPrivateKeyLabel):
			if seenS {
				return PrivateKeys{}, &KeyFormatError{Err: fmt.Errorf("line %d: repeated %q", lineNo, SigningPrivateKeyLabel)}
			}
			seenS = true
			keys.Signing = value
		default:
			return PrivateKeys{}, &KeyFormatError{Err: fmt.Errorf("line %d: unknown label %q", lineNo, label)}
		}
	}
	if err := scanner.Err(); err != nil {
		return PrivateKeys{}, &KeyFormatError{Err: err}
	}

	if !seenEnc {
		return PrivateKeys{}, &KeyFormatError{Err: fmt.Errorf("missing %q", EncryptionPrivateKeyLabel)}
	}
	if !seenS {
		return PrivateKeys{}, &KeyFormatError{Err: fmt.Errorf("missing %q", SigningPrivateKeyLabel)}
	}
	return keys, nil
}

// ImportIdentity rebuilds an identity from retained private key text. The
// public keys are derived from the private keys.
func ImportIdentity(username, text string) (*Identity, error) {
	keys, err := ParsePrivateKeys(text)
	if err != nil {
		return nil, err
	}
	return IdentityFromPrivateKeys(username, keys)
}

// IdentityFromPrivateKeys rebuilds an identity from the text form of its
// private keys.
func IdentityFromPrivateKeys(username string, keys PrivateKeys) (*Identity, error) {
	enc, err := keypairFromText(crypto.PurposeEncryption, keys.Encryption)
	if err != nil {
		return nil, err
	}
	sig, err := keypairFromText(crypto.PurposeSigning, keys.Signing)
	if err != nil {
		enc.Destroy()
		return nil, err
	}

	encRSA := enc.Algorithm == crypto.AlgorithmRSA
	sigRSA := sig.Algorithm == crypto.AlgorithmRSA
	if encRSA != sigRSA {
		enc.Destroy()
		sig.Destroy()
		return nil, &KeyFormatError{Err: errors.New("encryption and signing keys belong to different suites")}
	}

	return &Identity{username: username, enc: enc, sig: sig}, nil
}

func keypairFromText(purpose crypto.Purpose, text string) (*crypto.Keypair, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &KeyFormatError{Err: fmt.Errorf("%s private key is empty", purpose)}
	}
	raw, err := crypto.DecodeBase64(text)
	if err != nil {
		return nil, &KeyFormatError{Err: fmt.Errorf("%s private key: %w", purpose, err)}
	}
	defer crypto.Zero(raw)

	kp, err := crypto.KeypairFromPrivateKey(purpose, raw)
	if err != nil {
		return nil, wrapCryptoError(fmt.Errorf("%s private key: %w", purpose, err))
	}
	return kp, nil
}
