package blockbuilder

import "github.com/tinycrypto/ledgerd/infrastructure/logger"

var log = logger.RegisterSubSystem("BBLD")
