package model

import "github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"

// ReadOnlyUTXOSet represents a UTXOSet that can only be read from
type ReadOnlyUTXOSet interface {
	Get(outpoint *externalapi.DomainOutpoint) (*externalapi.DomainTransactionOutput, bool)
}
