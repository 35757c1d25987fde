package relay

import (
	"encoding/base64"

	validation "github.com/jellydator/validation"

	"github.com/sealedvoice/client-go/internal/api"
)

const maxUsernameLength = 128

// base64Rule accepts standard base64 text. Empty values are left to Required.
var base64Rule = validation.By(func(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_base64_type", "must be a string")
	}
	if s == "" {
		return nil
	}
	if _, err := base64.StdEncoding.DecodeString(s); err != nil {
		return validation.NewError("validation_base64", "must be valid base64-encoded data")
	}
	return nil
})

var usernameRules = []validation.Rule{
	validation.Required,
	validation.Length(1, maxUsernameLength),
}

type registerRequest api.RegisterRequest

func (r *registerRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Username, usernameRules...),
		validation.Field(&r.RSAPublicKey, validation.Required, base64Rule),
		validation.Field(&r.SignPublicKey, validation.Required, base64Rule),
	)
}

type sendRequest api.SendRequest

func (r *sendRequest) Validate() error {
	p := &r.Packet
	err := validation.ValidateStruct(r,
		validation.Field(&r.Recipient, usernameRules...),
		validation.Field(&r.Sender, usernameRules...),
	)
	if err != nil {
		return err
	}
	return validation.ValidateStruct(p,
		validation.Field(&p.IV, validation.Required, base64Rule),
		validation.Field(&p.Cipher, validation.Required, base64Rule),
		validation.Field(&p.Hash, validation.Required, base64Rule),
		validation.Field(&p.Sig, validation.Required, base64Rule),
		validation.Field(&p.EncryptedSessionKey, validation.Required, base64Rule),
	)
}
