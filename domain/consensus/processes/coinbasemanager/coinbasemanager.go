package coinbasemanager

import (
	"github.com/pkg/errors"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/ruleerrors"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/transactionhelper"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
)

// CoinbaseManager knows the reward schedule of a network.
type CoinbaseManager struct {
	params *ledgerconfig.Params
}

// New instantiates a new CoinbaseManager
func New(params *ledgerconfig.Params) *CoinbaseManager {
	return &CoinbaseManager{params: params}
}

// CalcBlockSubsidy returns the subsidy amount a block at the provided height
// should have. This is used both for building the coinbase of newly mined
// blocks and for validating the coinbase of received ones.
//
// The subsidy is halved every SubsidyReductionInterval blocks. Mathematically
// this is: genesisReward / 2^(height/SubsidyReductionInterval)
func CalcBlockSubsidy(height uint64, params *ledgerconfig.Params) uint64 {
	if params.SubsidyReductionInterval == 0 {
		return params.GenesisReward
	}

	halvings := height / params.SubsidyReductionInterval
	if halvings >= 64 {
		return 0
	}
	return params.GenesisReward >> halvings
}

// BlockSubsidy returns the reward of the block at height.
func (c *CoinbaseManager) BlockSubsidy(height uint64) uint64 {
	return CalcBlockSubsidy(height, c.params)
}

// ExpectedCoinbaseTransaction returns the coinbase a block at height
// should carry when paying its reward to owner.
func (c *CoinbaseManager) ExpectedCoinbaseTransaction(height uint64,
	owner externalapi.PublicKeyHash) *externalapi.DomainTransaction {

	return transactionhelper.NewCoinbaseTransaction(height, c.BlockSubsidy(height), owner)
}

// ValidateCoinbaseTransaction checks that coinbase belongs to height and pays
// exactly the block's subsidy in a single output.
func (c *CoinbaseManager) ValidateCoinbaseTransaction(coinbase *externalapi.DomainTransaction, height uint64) error {
	if !coinbase.IsCoinbase() {
		return errors.Wrapf(ruleerrors.ErrFirstTxNotCoinbase, "transaction is not a coinbase")
	}
	if coinbase.Coinbase.Height != height {
		return errors.Wrapf(ruleerrors.ErrBadCoinbaseHeight,
			"coinbase claims height %d but the block is at height %d", coinbase.Coinbase.Height, height)
	}
	if len(coinbase.Outputs) != 1 {
		return errors.Wrapf(ruleerrors.ErrInvalidCoinbaseReward,
			"coinbase must have exactly one output, got %d", len(coinbase.Outputs))
	}

	expected := c.BlockSubsidy(height)
	if coinbase.Outputs[0].Value != expected {
		return errors.Wrapf(ruleerrors.ErrInvalidCoinbaseReward,
			"coinbase pays %d instead of the expected %d", coinbase.Outputs[0].Value, expected)
	}
	return nil
}
