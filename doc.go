// Package sealedvoice provides a Go client SDK for exchanging end-to-end
// encrypted audio clips through an untrusted relay.
//
// Every user holds an Identity with two key pairs: one for encryption and one
// for signing. A sender seals a clip for one recipient: the clip is encrypted
// under a fresh AES-256-GCM session key, the session key is wrapped for the
// recipient, and a digest over the IV and ciphertext is signed. Only the
// recipient can open the packet, and opening it proves who sent it.
//
// Two algorithm suites are available: RSA-2048 (OAEP and PSS) by default, or
// ML-KEM-768 with ML-DSA-65 via WithSuite(SuitePostQuantum).
//
// Basic usage:
//
//	client, err := sealedvoice.New(sealedvoice.WithBaseURL("http://localhost:5001"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	alice, err := sealedvoice.GenerateIdentity(ctx, "alice")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer alice.Discard()
//
//	if err := client.Register(ctx, alice); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Seal and store a clip for bob
//	id, err := client.Send(ctx, alice, "bob", clip)
//
// On the receiving side, Receive and Subscribe return *Message values whose
// Err field reports why a packet was rejected:
//
//	messages, err := client.Receive(ctx, bob)
//	for _, msg := range messages {
//	    switch {
//	    case errors.Is(msg.Err, sealedvoice.ErrAuthentication):
//	        // not signed by msg.Sender
//	    case msg.Err != nil:
//	        // tampered, malformed, or not for bob
//	    default:
//	        play(msg.Plaintext)
//	    }
//	}
package sealedvoice
