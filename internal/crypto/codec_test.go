package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, suite := range suites {
		t.Run(string(suite), func(t *testing.T) {
			p := fixture(t, suite, "alice")

			enc, err := DecodeEncryptionKey(EncodePublicKey(p.enc.PublicKey))
			if err != nil {
				t.Fatalf("DecodeEncryptionKey() error = %v", err)
			}
			if enc.Algorithm() != p.enc.Algorithm {
				t.Errorf("EncryptionKey.Algorithm() = %s, want %s", enc.Algorithm(), p.enc.Algorithm)
			}

			ver, err := DecodeVerificationKey(EncodePublicKey(p.sig.PublicKey))
			if err != nil {
				t.Fatalf("DecodeVerificationKey() error = %v", err)
			}
			if ver.Purpose() != PurposeSigning {
				t.Errorf("VerificationKey.Purpose() = %s", ver.Purpose())
			}

			dec, err := DecodeDecryptionKey(EncodePrivateKey(p.enc.PrivateKey))
			if err != nil {
				t.Fatalf("DecodeDecryptionKey() error = %v", err)
			}
			defer dec.Destroy()

			sig, err := DecodeSigningKey(EncodePrivateKey(p.sig.PrivateKey))
			if err != nil {
				t.Fatalf("DecodeSigningKey() error = %v", err)
			}
			defer sig.Destroy()

			// Encoding is deterministic.
			if EncodePublicKey(p.enc.PublicKey) != EncodePublicKey(p.enc.PublicKey) {
				t.Error("EncodePublicKey is not deterministic")
			}

			// Decoded handles still work together.
			pkt, err := Build(t.Context(), []byte("round trip"), enc, sig)
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if _, err := Verify(t.Context(), pkt, dec, ver); err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
		})
	}
}

func TestDecodePublicKey_Generic(t *testing.T) {
	p := fixture(t, SuiteRSA, "alice")

	k, err := DecodePublicKey(EncodePublicKey(p.enc.PublicKey), PurposeEncryption)
	if err != nil {
		t.Fatalf("DecodePublicKey() error = %v", err)
	}
	if _, ok := k.(*EncryptionKey); !ok {
		t.Errorf("DecodePublicKey(encryption) returned %T", k)
	}

	k, err = DecodePublicKey(EncodePublicKey(p.sig.PublicKey), PurposeSigning)
	if err != nil {
		t.Fatalf("DecodePublicKey() error = %v", err)
	}
	if _, ok := k.(*VerificationKey); !ok {
		t.Errorf("DecodePublicKey(signing) returned %T", k)
	}

	if _, err := DecodePublicKey(EncodePublicKey(p.sig.PublicKey), Purpose(0)); !errors.Is(err, ErrKeyFormat) {
		t.Errorf("unknown purpose: expected ErrKeyFormat, got %v", err)
	}
}

func TestDecodePrivateKey_Generic(t *testing.T) {
	p := fixture(t, SuiteRSA, "alice")

	k, err := DecodePrivateKey(EncodePrivateKey(p.sig.PrivateKey), PurposeSigning)
	if err != nil {
		t.Fatalf("DecodePrivateKey() error = %v", err)
	}
	defer k.Destroy()
	if _, ok := k.(*SigningKey); !ok {
		t.Errorf("DecodePrivateKey(signing) returned %T", k)
	}
}

func TestDecode_Lenient(t *testing.T) {
	p := fixture(t, SuiteRSA, "alice")
	text := EncodePublicKey(p.enc.PublicKey)

	variants := map[string]string{
		"surrounding whitespace": "  \n" + text + "\n\t",
		"no padding":             strings.TrimRight(text, "="),
	}
	for name, v := range variants {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeEncryptionKey(v); err != nil {
				t.Errorf("DecodeEncryptionKey() error = %v", err)
			}
		})
	}
}

func TestDecode_KeyFormatErrors(t *testing.T) {
	rsaP := fixture(t, SuiteRSA, "alice")
	pqP := fixture(t, SuitePostQuantum, "alice")

	small, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("rsa.GenerateKey() error = %v", err)
	}
	smallPub, _ := x509.MarshalPKIXPublicKey(&small.PublicKey)
	smallPriv, _ := x509.MarshalPKCS8PrivateKey(small)

	rsaPub := EncodePublicKey(rsaP.enc.PublicKey)
	rsaPriv := EncodePrivateKey(rsaP.enc.PrivateKey)

	tests := []struct {
		name   string
		decode func() error
	}{
		{"empty public", func() error { _, err := DecodeEncryptionKey(""); return err }},
		{"blank private", func() error { _, err := DecodeSigningKey("   "); return err }},
		{"not base64", func() error { _, err := DecodeVerificationKey("not base64!!"); return err }},
		{"truncated der", func() error {
			_, err := DecodeEncryptionKey(ToBase64(rsaP.enc.PublicKey[:len(rsaP.enc.PublicKey)/2]))
			return err
		}},
		{"garbage bytes", func() error { _, err := ParseVerificationKey([]byte{1, 2, 3, 4}); return err }},
		{"rsa public too small", func() error { _, err := ParseEncryptionKey(smallPub); return err }},
		{"rsa private too small", func() error { _, err := ParseDecryptionKey(smallPriv); return err }},
		{"rsa private offered as public", func() error { _, err := DecodeEncryptionKey(rsaPriv); return err }},
		{"rsa public offered as private", func() error { _, err := DecodeDecryptionKey(rsaPub); return err }},
		{"pq private offered as public", func() error { _, err := ParseEncryptionKey(pqP.enc.PrivateKey); return err }},
		{"pq public offered as private", func() error { _, err := ParseSigningKey(pqP.sig.PublicKey); return err }},
		{"ml-dsa key as encryption", func() error { _, err := ParseEncryptionKey(pqP.sig.PublicKey); return err }},
		{"ml-kem key as signing", func() error { _, err := ParseVerificationKey(pqP.enc.PublicKey); return err }},
		{"ml-dsa private as decryption", func() error { _, err := ParseDecryptionKey(pqP.sig.PrivateKey); return err }},
		{"ml-kem private as signing", func() error { _, err := ParseSigningKey(pqP.enc.PrivateKey); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.decode()
			if !errors.Is(err, ErrKeyFormat) {
				t.Errorf("expected ErrKeyFormat, got %v", err)
			}
		})
	}
}

func TestPrivateKey_Destroy(t *testing.T) {
	p := fixture(t, SuiteRSA, "alice")

	dec := p.decryptionKey(t)
	sig := p.signingKey(t)
	dec.Destroy()
	sig.Destroy()

	if _, err := dec.Decrypt([]byte("x")); !errors.Is(err, ErrKeyDestroyed) {
		t.Errorf("Decrypt after Destroy: expected ErrKeyDestroyed, got %v", err)
	}
	if _, err := sig.Sign(make([]byte, DigestSize)); !errors.Is(err, ErrKeyDestroyed) {
		t.Errorf("Sign after Destroy: expected ErrKeyDestroyed, got %v", err)
	}
	if _, err := dec.Public(); !errors.Is(err, ErrKeyDestroyed) {
		t.Errorf("Public after Destroy: expected ErrKeyDestroyed, got %v", err)
	}
}

func TestSigningKey_DigestSize(t *testing.T) {
	sig := fixture(t, SuitePostQuantum, "alice").signingKey(t)
	if _, err := sig.Sign([]byte("short")); err == nil {
		t.Error("expected error signing a non-digest")
	}
}
