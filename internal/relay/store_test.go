package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealedvoice/client-go/internal/api"
	"github.com/sealedvoice/client-go/internal/crypto"
)

var testPacket = crypto.Packet{
	IV:                  "AAAAAAAAAAAAAAAA",
	Cipher:              "Y2lwaGVydGV4dA==",
	Hash:                "aGFzaA==",
	Sig:                 "c2ln",
	EncryptedSessionKey: "a2V5",
}

func TestStore_RegisterResetsMailbox(t *testing.T) {
	s := NewStore()
	s.Register("alice", api.UserKeys{RSAPublicKey: "a1", SignPublicKey: "s1"})
	s.Register("bob", api.UserKeys{RSAPublicKey: "b1", SignPublicKey: "s2"})

	_, err := s.Send("bob", "alice", testPacket)
	require.NoError(t, err)

	messages, err := s.Receive("bob")
	require.NoError(t, err)
	assert.Len(t, messages, 1)

	s.Register("bob", api.UserKeys{RSAPublicKey: "b2", SignPublicKey: "s3"})

	messages, err = s.Receive("bob")
	require.NoError(t, err)
	assert.Empty(t, messages)

	keys, err := s.User("bob")
	require.NoError(t, err)
	assert.Equal(t, "b2", keys.RSAPublicKey)
}

func TestStore_SendRequiresBothUsers(t *testing.T) {
	s := NewStore()
	s.Register("alice", api.UserKeys{RSAPublicKey: "a", SignPublicKey: "b"})

	_, err := s.Send("bob", "alice", testPacket)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = s.Send("alice", "mallory", testPacket)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_SendAssignsIDs(t *testing.T) {
	s := NewStore()
	s.Register("alice", api.UserKeys{})
	s.Register("bob", api.UserKeys{})

	first, err := s.Send("bob", "alice", testPacket)
	require.NoError(t, err)
	second, err := s.Send("bob", "alice", testPacket)
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, "alice", first.SenderUsername)
	assert.Equal(t, testPacket, first.Packet)
	assert.False(t, first.ReceivedAt.IsZero())
}

func TestStore_ReceiveIsNotDestructive(t *testing.T) {
	s := NewStore()
	s.Register("alice", api.UserKeys{})
	s.Register("bob", api.UserKeys{})
	s.Send("bob", "alice", testPacket)

	first, err := s.Receive("bob")
	require.NoError(t, err)
	first[0].SenderUsername = "changed"

	second, err := s.Receive("bob")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "alice", second[0].SenderUsername)

	_, err = s.Receive("nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_UsersSnapshot(t *testing.T) {
	s := NewStore()
	assert.Empty(t, s.Users())

	s.Register("alice", api.UserKeys{RSAPublicKey: "a", SignPublicKey: "b"})
	users := s.Users()
	users["mallory"] = api.UserKeys{}

	assert.Len(t, s.Users(), 1)
	_, err := s.User("mallory")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
