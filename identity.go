package sealedvoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sealedvoice/client-go/internal/crypto"
)

// Suite selects the algorithms used for a new identity.
type Suite = crypto.Suite

const (
	// SuiteRSA uses RSA-2048 OAEP for encryption and RSA-2048 PSS for signing.
	SuiteRSA = crypto.SuiteRSA
	// SuitePostQuantum uses ML-KEM-768 for encryption and ML-DSA-65 for signing.
	SuitePostQuantum = crypto.SuitePostQuantum
)

// IdentityOption configures identity generation.
type IdentityOption func(*identityConfig)

type identityConfig struct {
	suite Suite
}

// WithSuite selects the algorithm suite. The default is SuiteRSA.
func WithSuite(suite Suite) IdentityOption {
	return func(c *identityConfig) {
		c.suite = suite
	}
}

// Identity is a username with one encryption key pair and one signing key
// pair. Private keys never leave the process unless ExportPrivate is called.
//
// Identity is safe for concurrent use. Discard zeroes the private keys; any
// later Seal, Open or ExportPrivate fails with ErrIdentityDiscarded.
type Identity struct {
	username string

	mu        sync.RWMutex
	enc       *crypto.Keypair
	sig       *crypto.Keypair
	discarded bool
}

// GenerateIdentity creates a new identity for username. Both key pairs are
// generated concurrently; if either fails no identity is returned.
func GenerateIdentity(ctx context.Context, username string, opts ...IdentityOption) (*Identity, error) {
	cfg := identityConfig{suite: SuiteRSA}
	for _, opt := range opts {
		opt(&cfg)
	}
	if _, err := cfg.suite.Algorithm(crypto.PurposeEncryption); err != nil {
		return nil, err
	}

	var enc, sig *crypto.Keypair
	g := new(errgroup.Group)
	g.Go(func() error {
		kp, err := crypto.GenerateKeypair(cfg.suite, crypto.PurposeEncryption)
		if err != nil {
			return fmt.Errorf("generate encryption key pair: %w", err)
		}
		enc = kp
		return nil
	})
	g.Go(func() error {
		kp, err := crypto.GenerateKeypair(cfg.suite, crypto.PurposeSigning)
		if err != nil {
			return fmt.Errorf("generate signing key pair: %w", err)
		}
		sig = kp
		return nil
	})
	if err := g.Wait(); err != nil {
		enc.Destroy()
		sig.Destroy()
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		enc.Destroy()
		sig.Destroy()
		return nil, err
	}

	return &Identity{username: username, enc: enc, sig: sig}, nil
}

// Username returns the identity's username.
func (id *Identity) Username() string {
	return id.username
}

// Suite returns the algorithm suite of the identity's keys.
func (id *Identity) Suite() Suite {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.enc != nil && id.enc.Algorithm == crypto.AlgorithmMLKEM768 {
		return SuitePostQuantum
	}
	return SuiteRSA
}

// ExportPublic returns the public keys in their text form. It keeps working
// after Discard.
func (id *Identity) ExportPublic() PublicKeys {
	id.mu.RLock()
	defer id.mu.RUnlock()
	return PublicKeys{
		Encryption: crypto.EncodePublicKey(id.enc.PublicKey),
		Signing:    crypto.EncodePublicKey(id.sig.PublicKey),
	}
}

// ExportPrivate returns the private keys in their text form.
func (id *Identity) ExportPrivate() (PrivateKeys, error) {
	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.discarded {
		return PrivateKeys{}, ErrIdentityDiscarded
	}
	return PrivateKeys{
		Encryption: crypto.EncodePrivateKey(id.enc.PrivateKey),
		Signing:    crypto.EncodePrivateKey(id.sig.PrivateKey),
	}, nil
}

// Entry returns the directory entry other users need to exchange messages
// with this identity.
func (id *Identity) Entry() *DirectoryEntry {
	return &DirectoryEntry{Username: id.username, Keys: id.ExportPublic()}
}

// MarshalJSON emits the username and public keys only.
func (id *Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Entry())
}

// String implements fmt.Stringer without exposing private keys.
func (id *Identity) String() string {
	return fmt.Sprintf("Identity{Username: %q, Suite: %s}", id.username, id.Suite())
}

// Discard zeroes the private keys. It is safe to call more than once.
func (id *Identity) Discard() {
	id.mu.Lock()
	defer id.mu.Unlock()
	id.enc.Destroy()
	id.sig.Destroy()
	id.discarded = true
}

// Seal encrypts plaintext for recipient and signs it with this identity.
func (id *Identity) Seal(ctx context.Context, plaintext []byte, recipient *DirectoryEntry) (Packet, error) {
	if recipient == nil {
		return Packet{}, &DirectoryLookupError{Username: "", Err: errors.New("recipient is nil")}
	}

	encKey, err := crypto.DecodeEncryptionKey(recipient.Keys.Encryption)
	if err != nil {
		return Packet{}, wrapCryptoError(fmt.Errorf("recipient %q: %w", recipient.Username, err))
	}

	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.discarded {
		return Packet{}, ErrIdentityDiscarded
	}

	signer, err := crypto.ParseSigningKey(id.sig.PrivateKey)
	if err != nil {
		return Packet{}, wrapCryptoError(err)
	}
	defer signer.Destroy()

	packet, err := crypto.Build(ctx, plaintext, encKey, signer)
	if err != nil {
		return Packet{}, wrapCryptoError(err)
	}
	return packet, nil
}

// Open verifies a packet claimed to come from sender and returns the
// plaintext. Checks run in order: packet format, integrity, sender
// authentication, session key recovery, decryption.
func (id *Identity) Open(ctx context.Context, packet Packet, sender *DirectoryEntry) ([]byte, error) {
	if sender == nil {
		return nil, &DirectoryLookupError{Username: "", Err: errors.New("sender is nil")}
	}

	verifier, err := crypto.DecodeVerificationKey(sender.Keys.Signing)
	if err != nil {
		return nil, wrapCryptoError(fmt.Errorf("sender %q: %w", sender.Username, err))
	}

	id.mu.RLock()
	defer id.mu.RUnlock()
	if id.discarded {
		return nil, ErrIdentityDiscarded
	}

	decrypter, err := crypto.ParseDecryptionKey(id.enc.PrivateKey)
	if err != nil {
		return nil, wrapCryptoError(err)
	}
	defer decrypter.Destroy()

	plaintext, err := crypto.Verify(ctx, packet, decrypter, verifier)
	if err != nil {
		return nil, wrapCryptoError(err)
	}
	return plaintext, nil
}
