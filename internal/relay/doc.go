// Package relay implements the message relay: a user directory of public
// keys and per-user mailboxes of opaque packets, served over HTTP with a
// WebSocket push channel.
//
// The relay never sees plaintext or private keys. It stores packets as
// received and returns them unchanged; clients verify every packet
// themselves.
//
// # Endpoints
//
//	POST /register           {username, rsaPublicKey, signPublicKey}
//	POST /send               {recipient, sender, packet}
//	GET  /receive/:username  every stored message, never deleted
//	GET  /get_users          all users and their public keys
//	GET  /users/:username    one user's public keys
//	GET  /ws?username=...    push channel for new_message events
//	GET  /health
//	GET  /metrics            Prometheus exposition, when enabled
//
// Registering an existing username replaces its keys and empties its
// mailbox. All state is held in memory.
package relay
