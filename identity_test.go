package sealedvoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/sealedvoice/client-go/internal/crypto"
)

var (
	identityMu sync.Mutex
	identities = map[string]*Identity{}
)

// testIdentity returns a cached identity. RSA generation is slow enough that
// tests share them; callers must not Discard the result.
func testIdentity(t *testing.T, suite Suite, name string) *Identity {
	t.Helper()

	identityMu.Lock()
	defer identityMu.Unlock()

	key := string(suite) + "/" + name
	if id, ok := identities[key]; ok {
		return id
	}
	id, err := GenerateIdentity(context.Background(), name, WithSuite(suite))
	if err != nil {
		t.Fatalf("GenerateIdentity(%s, %s) error = %v", name, suite, err)
	}
	identities[key] = id
	return id
}

func flipFirstByte(t *testing.T, field string) string {
	t.Helper()
	raw, err := crypto.FromBase64(field)
	if err != nil {
		t.Fatalf("FromBase64() error = %v", err)
	}
	raw[0] ^= 0x01
	return crypto.ToBase64(raw)
}

var suites = []Suite{SuiteRSA, SuitePostQuantum}

func TestGenerateIdentity_Suites(t *testing.T) {
	for _, suite := range suites {
		t.Run(string(suite), func(t *testing.T) {
			id := testIdentity(t, suite, "alice")
			if id.Username() != "alice" {
				t.Errorf("Username() = %q, want alice", id.Username())
			}
			if id.Suite() != suite {
				t.Errorf("Suite() = %q, want %q", id.Suite(), suite)
			}

			pub := id.ExportPublic()
			if _, err := crypto.DecodeEncryptionKey(pub.Encryption); err != nil {
				t.Errorf("encryption public key does not decode: %v", err)
			}
			if _, err := crypto.DecodeVerificationKey(pub.Signing); err != nil {
				t.Errorf("signing public key does not decode: %v", err)
			}
			if pub.Encryption == pub.Signing {
				t.Error("encryption and signing keys must be distinct")
			}
		})
	}
}

func TestGenerateIdentity_UnknownSuite(t *testing.T) {
	if _, err := GenerateIdentity(context.Background(), "alice", WithSuite("dsa")); err == nil {
		t.Error("expected error for unknown suite")
	}
}

func TestGenerateIdentity_Context(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// A live caller context must not be reported as canceled.
	id, err := GenerateIdentity(ctx, "alice", WithSuite(SuitePostQuantum))
	if err != nil {
		t.Fatalf("GenerateIdentity() error = %v", err)
	}
	defer id.Discard()
	if ctx.Err() != nil {
		t.Fatalf("caller context canceled: %v", ctx.Err())
	}

	cancel()
	if _, err := GenerateIdentity(ctx, "alice", WithSuite(SuitePostQuantum)); !errors.Is(err, context.Canceled) {
		t.Errorf("GenerateIdentity(canceled) error = %v, want context.Canceled", err)
	}
}

func TestGenerateIdentity_Fresh(t *testing.T) {
	a, err := GenerateIdentity(context.Background(), "a", WithSuite(SuitePostQuantum))
	if err != nil {
		t.Fatalf("GenerateIdentity() error = %v", err)
	}
	b, err := GenerateIdentity(context.Background(), "a", WithSuite(SuitePostQuantum))
	if err != nil {
		t.Fatalf("GenerateIdentity() error = %v", err)
	}
	if a.ExportPublic() == b.ExportPublic() {
		t.Error("two generations produced the same keys")
	}
}

func TestIdentity_ExportIsDeterministic(t *testing.T) {
	id := testIdentity(t, SuiteRSA, "alice")

	if id.ExportPublic() != id.ExportPublic() {
		t.Error("ExportPublic() is not deterministic")
	}
	first, err := id.ExportPrivate()
	if err != nil {
		t.Fatalf("ExportPrivate() error = %v", err)
	}
	second, _ := id.ExportPrivate()
	if first != second {
		t.Error("ExportPrivate() is not deterministic")
	}
}

func TestIdentity_MarshalJSONOmitsPrivateKeys(t *testing.T) {
	id := testIdentity(t, SuitePostQuantum, "alice")
	priv, err := id.ExportPrivate()
	if err != nil {
		t.Fatalf("ExportPrivate() error = %v", err)
	}

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	if strings.Contains(string(data), priv.Encryption) || strings.Contains(string(data), priv.Signing) {
		t.Error("JSON output contains private key material")
	}

	var entry DirectoryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if entry.Username != "alice" || entry.Keys != id.ExportPublic() {
		t.Errorf("unexpected entry %+v", entry)
	}
	if !strings.Contains(string(data), `"rsaPublicKey"`) || !strings.Contains(string(data), `"signPublicKey"`) {
		t.Errorf("JSON keys do not follow relay names: %s", data)
	}
}

func TestIdentity_StringRedacts(t *testing.T) {
	id := testIdentity(t, SuitePostQuantum, "alice")
	priv, _ := id.ExportPrivate()

	for _, out := range []string{fmt.Sprint(id), fmt.Sprintf("%v", priv), fmt.Sprintf("%#v", priv)} {
		if strings.Contains(out, priv.Encryption) || strings.Contains(out, priv.Signing) {
			t.Errorf("formatted output leaks private key: %q", out)
		}
	}
}

func TestSealOpen_RoundTrip(t *testing.T) {
	payloads := map[string][]byte{
		"empty":  {},
		"hello":  []byte("HELLO"),
		"binary": {0x00, 0xff, 0x10, 0x80},
		"clip":   make([]byte, 256*1024),
	}

	for _, suite := range suites {
		alice := testIdentity(t, suite, "alice")
		bob := testIdentity(t, suite, "bob")

		for name, payload := range payloads {
			t.Run(string(suite)+"/"+name, func(t *testing.T) {
				ctx := context.Background()
				packet, err := alice.Seal(ctx, payload, bob.Entry())
				if err != nil {
					t.Fatalf("Seal() error = %v", err)
				}

				got, err := bob.Open(ctx, packet, alice.Entry())
				if err != nil {
					t.Fatalf("Open() error = %v", err)
				}
				if string(got) != string(payload) {
					t.Errorf("Open() returned %d bytes, want %d", len(got), len(payload))
				}

				// Verification is idempotent.
				again, err := bob.Open(ctx, packet, alice.Entry())
				if err != nil || string(again) != string(payload) {
					t.Errorf("second Open() = %v, %v", len(again), err)
				}
			})
		}
	}
}

func TestSeal_FreshPacketEachCall(t *testing.T) {
	alice := testIdentity(t, SuitePostQuantum, "alice")
	bob := testIdentity(t, SuitePostQuantum, "bob")

	p1, err := alice.Seal(context.Background(), []byte("HELLO"), bob.Entry())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	p2, err := alice.Seal(context.Background(), []byte("HELLO"), bob.Entry())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if p1.IV == p2.IV || p1.Cipher == p2.Cipher || p1.EncryptedSessionKey == p2.EncryptedSessionKey {
		t.Error("identical plaintexts produced overlapping packets")
	}
}

func TestOpen_Failures(t *testing.T) {
	for _, suite := range suites {
		alice := testIdentity(t, suite, "alice")
		bob := testIdentity(t, suite, "bob")
		carol := testIdentity(t, suite, "carol")
		mallory := testIdentity(t, suite, "mallory")

		packet, err := alice.Seal(context.Background(), []byte("HELLO"), bob.Entry())
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}
		forged, err := mallory.Seal(context.Background(), []byte("HELLO"), bob.Entry())
		if err != nil {
			t.Fatalf("Seal() error = %v", err)
		}

		tests := []struct {
			name      string
			recipient *Identity
			sender    *DirectoryEntry
			mutate    func(p *Packet)
			packet    Packet
			want      []error
		}{
			{
				name:      "cipher tampered",
				recipient: bob,
				sender:    alice.Entry(),
				packet:    packet,
				mutate:    func(p *Packet) { p.Cipher = flipFirstByte(t, p.Cipher) },
				want:      []error{ErrIntegrity},
			},
			{
				name:      "iv tampered",
				recipient: bob,
				sender:    alice.Entry(),
				packet:    packet,
				mutate:    func(p *Packet) { p.IV = flipFirstByte(t, p.IV) },
				want:      []error{ErrIntegrity},
			},
			{
				name:      "signature tampered",
				recipient: bob,
				sender:    alice.Entry(),
				packet:    packet,
				mutate:    func(p *Packet) { p.Sig = flipFirstByte(t, p.Sig) },
				want:      []error{ErrAuthentication},
			},
			{
				name:      "forged sender",
				recipient: bob,
				sender:    alice.Entry(),
				packet:    forged,
				want:      []error{ErrAuthentication},
			},
			{
				name:      "wrong recipient",
				recipient: carol,
				sender:    alice.Entry(),
				packet:    packet,
				want:      []error{ErrKeyRecovery, ErrDecryption},
			},
			{
				name:      "session key tampered",
				recipient: bob,
				sender:    alice.Entry(),
				packet:    packet,
				mutate:    func(p *Packet) { p.EncryptedSessionKey = flipFirstByte(t, p.EncryptedSessionKey) },
				want:      []error{ErrKeyRecovery, ErrDecryption},
			},
			{
				name:      "missing field",
				recipient: bob,
				sender:    alice.Entry(),
				packet:    packet,
				mutate:    func(p *Packet) { p.Hash = "" },
				want:      []error{ErrPacketFormat},
			},
			{
				name:      "non base64 field",
				recipient: bob,
				sender:    alice.Entry(),
				packet:    packet,
				mutate:    func(p *Packet) { p.IV = "***" },
				want:      []error{ErrPacketFormat},
			},
			{
				name:      "sender key unusable",
				recipient: bob,
				sender:    &DirectoryEntry{Username: "alice", Keys: PublicKeys{Signing: "not a key"}},
				packet:    packet,
				want:      []error{ErrKeyFormat},
			},
		}

		for _, tt := range tests {
			t.Run(string(suite)+"/"+tt.name, func(t *testing.T) {
				p := tt.packet
				if tt.mutate != nil {
					tt.mutate(&p)
				}

				got, err := tt.recipient.Open(context.Background(), p, tt.sender)
				if err == nil {
					t.Fatal("Open() succeeded, want error")
				}
				if got != nil {
					t.Error("Open() returned plaintext with an error")
				}

				matched := false
				for _, want := range tt.want {
					if errors.Is(err, want) {
						matched = true
					}
				}
				if !matched {
					t.Errorf("Open() error = %v, want one of %v", err, tt.want)
				}

				var sve SealedVoiceError
				if !errors.As(err, &sve) {
					t.Errorf("error %T does not implement SealedVoiceError", err)
				}
			})
		}
	}
}

func TestOpen_TypedErrors(t *testing.T) {
	alice := testIdentity(t, SuiteRSA, "alice")
	bob := testIdentity(t, SuiteRSA, "bob")

	packet, err := alice.Seal(context.Background(), []byte("HELLO"), bob.Entry())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	packet.Cipher = flipFirstByte(t, packet.Cipher)

	_, err = bob.Open(context.Background(), packet, alice.Entry())
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("Open() error = %T, want *IntegrityError", err)
	}
	if !errors.Is(integrity.Err, crypto.ErrIntegrity) {
		t.Errorf("IntegrityError.Err = %v, want internal sentinel", integrity.Err)
	}
}

func TestSeal_RecipientKeyRejected(t *testing.T) {
	alice := testIdentity(t, SuitePostQuantum, "alice")

	tests := map[string]PublicKeys{
		"empty":          {},
		"not base64":     {Encryption: "%%%"},
		"signing as enc": {Encryption: alice.ExportPublic().Signing},
	}
	for name, keys := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := alice.Seal(context.Background(), []byte("x"), &DirectoryEntry{Username: "bob", Keys: keys})
			if !errors.Is(err, ErrKeyFormat) {
				t.Errorf("Seal() error = %v, want ErrKeyFormat", err)
			}
		})
	}
}

func TestSealOpen_NilEntry(t *testing.T) {
	alice := testIdentity(t, SuitePostQuantum, "alice")

	if _, err := alice.Seal(context.Background(), nil, nil); err == nil {
		t.Error("Seal(nil recipient) should fail")
	}
	if _, err := alice.Open(context.Background(), Packet{}, nil); err == nil {
		t.Error("Open(nil sender) should fail")
	}
}

func TestSealOpen_CanceledContext(t *testing.T) {
	alice := testIdentity(t, SuitePostQuantum, "alice")
	bob := testIdentity(t, SuitePostQuantum, "bob")

	packet, err := alice.Seal(context.Background(), []byte("HELLO"), bob.Entry())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := alice.Seal(ctx, []byte("HELLO"), bob.Entry()); !errors.Is(err, context.Canceled) {
		t.Errorf("Seal() error = %v, want context.Canceled", err)
	}
	if _, err := bob.Open(ctx, packet, alice.Entry()); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
}

func TestIdentity_Discard(t *testing.T) {
	alice, err := GenerateIdentity(context.Background(), "alice", WithSuite(SuitePostQuantum))
	if err != nil {
		t.Fatalf("GenerateIdentity() error = %v", err)
	}
	bob := testIdentity(t, SuitePostQuantum, "bob")

	packet, err := bob.Seal(context.Background(), []byte("HELLO"), alice.Entry())
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	public := alice.ExportPublic()

	alice.Discard()
	alice.Discard()

	if _, err := alice.ExportPrivate(); !errors.Is(err, ErrIdentityDiscarded) {
		t.Errorf("ExportPrivate() error = %v, want ErrIdentityDiscarded", err)
	}
	if _, err := alice.Seal(context.Background(), []byte("x"), bob.Entry()); !errors.Is(err, ErrIdentityDiscarded) {
		t.Errorf("Seal() error = %v, want ErrIdentityDiscarded", err)
	}
	if _, err := alice.Open(context.Background(), packet, bob.Entry()); !errors.Is(err, ErrIdentityDiscarded) {
		t.Errorf("Open() error = %v, want ErrIdentityDiscarded", err)
	}
	if alice.ExportPublic() != public {
		t.Error("public keys changed after Discard")
	}
}

func TestIdentity_ConcurrentUse(t *testing.T) {
	alice := testIdentity(t, SuitePostQuantum, "alice")
	bob := testIdentity(t, SuitePostQuantum, "bob")

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("clip-%d", i))
			packet, err := alice.Seal(context.Background(), payload, bob.Entry())
			if err != nil {
				errs <- err
				return
			}
			got, err := bob.Open(context.Background(), packet, alice.Entry())
			if err != nil {
				errs <- err
				return
			}
			if string(got) != string(payload) {
				errs <- fmt.Errorf("got %q, want %q", got, payload)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
