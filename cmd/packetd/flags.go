package main

import (
	"github.com/urfave/cli/v2"
)

const (
	prvkeyFlagName   = "prvkey"
	packetIdFlagName = "packet-id"
	claimantFlagName = "claimant"
)

var (
	prvkeyFlag = &cli.StringFlag{
		Name:     prvkeyFlagName,
		Usage:    "authority private key in hex format",
		Required: true,
	}
	packetIdFlag = &cli.StringFlag{
		Name:     packetIdFlagName,
		Usage:    "id of the packet the claim token is bound to",
		Required: true,
	}
	claimantFlag = &cli.StringFlag{
		Name:     claimantFlagName,
		Usage:    "account the claim token is issued for",
		Required: true,
	}
)
