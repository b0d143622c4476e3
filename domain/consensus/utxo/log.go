package utxo

import "github.com/tinycrypto/ledgerd/infrastructure/logger"

var log = logger.RegisterSubSystem("UTXO")
