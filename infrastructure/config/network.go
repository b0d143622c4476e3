package config

import (
	"github.com/jessevdk/go-flags"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
)

// NetworkFlags holds the network configuration, that is which network is selected.
type NetworkFlags struct {
	SimNet          bool `long:"simnet" description:"Use the simulation test network"`
	ActiveNetParams *ledgerconfig.Params
}

// ResolveNetwork parses the network command line argument and sets
// ActiveNetParams accordingly. The active params are a copy, so tweaking
// them never affects the package-level params.
func (networkFlags *NetworkFlags) ResolveNetwork(parser *flags.Parser) error {
	// default net is main net
	networkFlags.ActiveNetParams = ledgerconfig.MainnetParams.Clone()
	if networkFlags.SimNet {
		networkFlags.ActiveNetParams = ledgerconfig.SimnetParams.Clone()
	}
	return nil
}

// NetParams returns the ActiveNetParams
func (networkFlags *NetworkFlags) NetParams() *ledgerconfig.Params {
	return networkFlags.ActiveNetParams
}
