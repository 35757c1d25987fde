package sealedvoice

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sealedvoice/client-go/internal/api"
	"github.com/sealedvoice/client-go/internal/crypto"
)

// Packet is the wire form of one sealed message: JSON fields iv, cipher,
// hash, sig and aesKey, each standard base64.
type Packet = crypto.Packet

// DefaultVerifyConcurrency bounds how many packets OpenAll verifies at once.
const DefaultVerifyConcurrency = 4

// Envelope is a packet as delivered by the relay, with its routing metadata.
// Sender and Recipient only select directory lookups; neither is trusted
// until the packet verifies.
type Envelope struct {
	ID         string    `json:"id"`
	Sender     string    `json:"sender_username"`
	Recipient  string    `json:"recipient"`
	Packet     Packet    `json:"packet"`
	ReceivedAt time.Time `json:"received_at"`
}

// Message is the outcome of verifying one Envelope. Exactly one of
// Plaintext and Err is set.
type Message struct {
	Envelope
	Plaintext []byte `json:"-"`
	Err       error  `json:"-"`
}

// Verified reports whether the message authenticated and decrypted.
func (m *Message) Verified() bool {
	return m.Err == nil
}

func envelopeFromStored(recipient string, msg api.StoredMessage) Envelope {
	return Envelope{
		ID:         msg.ID,
		Sender:     msg.SenderUsername,
		Recipient:  recipient,
		Packet:     msg.Packet,
		ReceivedAt: msg.ReceivedAt,
	}
}

// OpenAll verifies envelopes addressed to id, resolving each sender in dir.
// Up to concurrency envelopes are processed at once; values below 1 use
// DefaultVerifyConcurrency.
//
// Results are returned in input order. A failed envelope sets its Message.Err
// and does not affect the others. Only a canceled ctx stops the batch, in
// which case the remaining messages carry ctx.Err().
func OpenAll(ctx context.Context, id *Identity, dir Directory, envelopes []Envelope, concurrency int) []*Message {
	if concurrency < 1 {
		concurrency = DefaultVerifyConcurrency
	}

	results := make([]*Message, len(envelopes))
	if id == nil {
		for i, env := range envelopes {
			results[i] = &Message{Envelope: env, Err: errNilIdentity}
		}
		return results
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i := range envelopes {
		env := envelopes[i]
		g.Go(func() error {
			results[i] = openEnvelope(ctx, id, dir, env)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func openEnvelope(ctx context.Context, id *Identity, dir Directory, env Envelope) *Message {
	msg := &Message{Envelope: env}
	if err := ctx.Err(); err != nil {
		msg.Err = err
		return msg
	}

	sender, err := dir.Lookup(ctx, env.Sender)
	if err != nil {
		msg.Err = err
		return msg
	}

	msg.Plaintext, msg.Err = id.Open(ctx, env.Packet, sender)
	return msg
}
