package blockvalidator

import "github.com/tinycrypto/ledgerd/infrastructure/logger"

var log = logger.RegisterSubSystem("BVAL")
