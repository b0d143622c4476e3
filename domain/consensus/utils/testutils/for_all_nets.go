// Package testutils holds helpers shared by the tests of the consensus
// packages.
package testutils

import (
	"testing"

	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
)

// ForAllNets runs the passed testFunc with all available networks.
// testFunc receives its own copy of the params and may modify it.
func ForAllNets(t *testing.T, testFunc func(*testing.T, *ledgerconfig.Params)) {
	allParams := []ledgerconfig.Params{
		ledgerconfig.MainnetParams,
		ledgerconfig.SimnetParams,
	}

	for _, params := range allParams {
		params := params
		t.Run(params.Name, func(t *testing.T) {
			t.Parallel()
			testFunc(t, params.Clone())
		})
	}
}

// SimnetParams returns a copy of the simnet params, whose blocks are cheap
// to mine.
func SimnetParams() *ledgerconfig.Params {
	return ledgerconfig.SimnetParams.Clone()
}
