package blockbuilder

import (
	"context"

	"github.com/tinycrypto/ledgerd/domain/consensus/model"
	"github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/consensushashing"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/mining"
	"github.com/tinycrypto/ledgerd/domain/consensus/utils/transactionhelper"
	"github.com/tinycrypto/ledgerd/domain/ledgerconfig"
)

// BuildGenesis derives the genesis block of params. Every input is fixed by
// params, and the nonce search starts at zero, so every node derives the
// same block.
func BuildGenesis(params *ledgerconfig.Params, provider model.CryptoProvider) (*externalapi.DomainBlock, error) {
	transactions := []*externalapi.DomainTransaction{
		transactionhelper.NewCoinbaseTransaction(0, params.GenesisReward, params.GenesisOwner),
	}
	genesis := &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            params.BlockVersion,
			PreviousBlockHash:  externalapi.ZeroHash,
			MerkleRoot:         *consensushashing.MerkleRoot(provider, transactions),
			TimeInMilliseconds: params.GenesisTimeInMilliseconds,
			Bits:               params.GenesisBits,
		},
		Transactions: transactions,
	}
	err := mining.SolveBlock(context.Background(), provider, genesis, 0, nil, nil)
	if err != nil {
		return nil, err
	}
	return genesis, nil
}
