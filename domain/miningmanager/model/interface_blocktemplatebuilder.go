package model

import "github.com/tinycrypto/ledgerd/domain/consensus/model/externalapi"

// BlockTemplateBuilder builds block templates for miners to consume
type BlockTemplateBuilder interface {
	GetBlockTemplate(parentHash *externalapi.DomainHash, height uint64,
		owner externalapi.PublicKeyHash) *externalapi.DomainBlock
}
