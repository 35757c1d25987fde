package main

import (
	"github.com/urfave/cli/v3"

	"github.com/sealedvoice/client-go"
	"github.com/sealedvoice/client-go/cmd/sealedvoice/commands"
)

// clientHandle pairs a relay client with the invoking command's flags.
type clientHandle struct {
	*sealedvoice.Client
	cmd *cli.Command
}

func (h clientHandle) identity() (*sealedvoice.Identity, error) {
	return commands.LoadIdentity(h.cmd.String("username"), h.cmd.String("key-file"))
}
