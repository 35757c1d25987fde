package crypto

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
)

// Packet is the wire form of one sealed message. Every field is standard
// base64 with padding.
type Packet struct {
	// IV is the 12-byte AES-GCM nonce.
	IV string `json:"iv"`
	// Cipher is the AES-256-GCM ciphertext with the tag appended.
	Cipher string `json:"cipher"`
	// Hash is SHA-256 over the IV followed by the ciphertext.
	Hash string `json:"hash"`
	// Sig is the sender signature over the decoded Hash.
	Sig string `json:"sig"`
	// EncryptedSessionKey is the session key protected for the recipient.
	EncryptedSessionKey string `json:"aesKey"`
}

// Digest returns the packet digest over iv and ciphertext.
func Digest(iv, ciphertext []byte) []byte {
	h := sha256.New()
	h.Write(iv)
	h.Write(ciphertext)
	return h.Sum(nil)
}

// Build seals plaintext for the holder of the DecryptionKey matching
// recipient and signs it with sender.
//
// A fresh session key and IV are drawn for every call. On failure Build
// returns a zero Packet. The session key is zeroed before Build returns.
func Build(ctx context.Context, plaintext []byte, recipient *EncryptionKey, sender *SigningKey) (Packet, error) {
	if recipient == nil {
		return Packet{}, errors.New("recipient key is required")
	}
	if sender == nil {
		return Packet{}, errors.New("sender key is required")
	}
	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}

	sessionKey, err := randomBytes(SessionKeySize)
	if err != nil {
		return Packet{}, fmt.Errorf("generate session key: %w", err)
	}
	defer Zero(sessionKey)

	iv, err := randomBytes(AESNonceSize)
	if err != nil {
		return Packet{}, fmt.Errorf("generate iv: %w", err)
	}

	ciphertext, err := encryptAESGCM(sessionKey, iv, plaintext)
	if err != nil {
		return Packet{}, fmt.Errorf("encrypt payload: %w", err)
	}

	digest := Digest(iv, ciphertext)

	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}

	sig, err := sender.Sign(digest)
	if err != nil {
		return Packet{}, fmt.Errorf("sign digest: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return Packet{}, err
	}

	wrapped, err := recipient.Encrypt(sessionKey)
	if err != nil {
		return Packet{}, fmt.Errorf("encrypt session key: %w", err)
	}

	return Packet{
		IV:                  ToBase64(iv),
		Cipher:              ToBase64(ciphertext),
		Hash:                ToBase64(digest),
		Sig:                 ToBase64(sig),
		EncryptedSessionKey: ToBase64(wrapped),
	}, nil
}

// decodedPacket holds the binary packet fields.
type decodedPacket struct {
	iv         []byte
	ciphertext []byte
	hash       []byte
	sig        []byte
	wrappedKey []byte
}

func decodePacket(p *Packet) (*decodedPacket, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: nil packet", ErrPacketFormat)
	}

	var d decodedPacket
	fields := []struct {
		name  string
		value string
		dst   *[]byte
	}{
		{"iv", p.IV, &d.iv},
		{"cipher", p.Cipher, &d.ciphertext},
		{"hash", p.Hash, &d.hash},
		{"sig", p.Sig, &d.sig},
		{"aesKey", p.EncryptedSessionKey, &d.wrappedKey},
	}

	for _, f := range fields {
		if f.value == "" {
			return nil, fmt.Errorf("%w: missing %s", ErrPacketFormat, f.name)
		}
		b, err := FromBase64(f.value)
		if err != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrPacketFormat, f.name, err)
		}
		*f.dst = b
	}

	if len(d.iv) != AESNonceSize {
		return nil, fmt.Errorf("%w: iv is %d bytes, want %d", ErrPacketFormat, len(d.iv), AESNonceSize)
	}
	if len(d.hash) != DigestSize {
		return nil, fmt.Errorf("%w: hash is %d bytes, want %d", ErrPacketFormat, len(d.hash), DigestSize)
	}
	if len(d.ciphertext) < AESTagSize {
		return nil, fmt.Errorf("%w: cipher shorter than tag", ErrPacketFormat)
	}

	return &d, nil
}
