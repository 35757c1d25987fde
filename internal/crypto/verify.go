package crypto

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

// Verify checks and opens a packet addressed to recipient and claimed to be
// signed by sender.
//
// Steps run in a fixed order and stop at the first failure:
//  1. decode every field (ErrPacketFormat)
//  2. recompute the digest over IV and ciphertext (ErrIntegrity)
//  3. verify the signature over the digest (ErrAuthentication)
//  4. recover the session key (ErrKeyRecovery)
//  5. decrypt the payload (ErrDecryption)
//
// No plaintext is produced unless every step succeeds. The recovered session
// key is zeroed before Verify returns.
func Verify(ctx context.Context, p Packet, recipient *DecryptionKey, sender *VerificationKey) ([]byte, error) {
	if recipient == nil {
		return nil, errors.New("recipient key is required")
	}
	if sender == nil {
		return nil, errors.New("sender key is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d, err := decodePacket(&p)
	if err != nil {
		return nil, err
	}

	expected := Digest(d.iv, d.ciphertext)
	if subtle.ConstantTimeCompare(expected, d.hash) != 1 {
		return nil, ErrIntegrity
	}

	if err := sender.Verify(d.hash, d.sig); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sessionKey, err := recipient.Decrypt(d.wrappedKey)
	if err != nil {
		return nil, err
	}
	defer Zero(sessionKey)

	if len(sessionKey) != SessionKeySize {
		return nil, fmt.Errorf("%w: session key is %d bytes", ErrKeyRecovery, len(sessionKey))
	}

	plaintext, err := decryptAESGCM(sessionKey, d.iv, d.ciphertext)
	if err != nil {
		return nil, ErrDecryption
	}

	return plaintext, nil
}
