package crypto

import (
	"sync"
	"testing"
)

// party is one side of an exchange: both key pairs, generated once per suite.
type party struct {
	enc *Keypair
	sig *Keypair
}

var (
	fixtureMu sync.Mutex
	fixtures  = map[string]*party{}
)

// fixture returns a cached party for the given name and suite. RSA key
// generation is slow enough that tests share them.
func fixture(t *testing.T, suite Suite, name string) *party {
	t.Helper()

	fixtureMu.Lock()
	defer fixtureMu.Unlock()

	key := string(suite) + "/" + name
	if p, ok := fixtures[key]; ok {
		return p
	}

	enc, err := GenerateKeypair(suite, PurposeEncryption)
	if err != nil {
		t.Fatalf("GenerateKeypair(%s, encryption) error = %v", suite, err)
	}
	sig, err := GenerateKeypair(suite, PurposeSigning)
	if err != nil {
		t.Fatalf("GenerateKeypair(%s, signing) error = %v", suite, err)
	}

	p := &party{enc: enc, sig: sig}
	fixtures[key] = p
	return p
}

func (p *party) encryptionKey(t *testing.T) *EncryptionKey {
	t.Helper()
	k, err := ParseEncryptionKey(p.enc.PublicKey)
	if err != nil {
		t.Fatalf("ParseEncryptionKey() error = %v", err)
	}
	return k
}

func (p *party) decryptionKey(t *testing.T) *DecryptionKey {
	t.Helper()
	k, err := ParseDecryptionKey(p.enc.PrivateKey)
	if err != nil {
		t.Fatalf("ParseDecryptionKey() error = %v", err)
	}
	t.Cleanup(k.Destroy)
	return k
}

func (p *party) signingKey(t *testing.T) *SigningKey {
	t.Helper()
	k, err := ParseSigningKey(p.sig.PrivateKey)
	if err != nil {
		t.Fatalf("ParseSigningKey() error = %v", err)
	}
	t.Cleanup(k.Destroy)
	return k
}

func (p *party) verificationKey(t *testing.T) *VerificationKey {
	t.Helper()
	k, err := ParseVerificationKey(p.sig.PublicKey)
	if err != nil {
		t.Fatalf("ParseVerificationKey() error = %v", err)
	}
	return k
}

var suites = []Suite{SuiteRSA, SuitePostQuantum}
