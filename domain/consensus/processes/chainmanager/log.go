package chainmanager

import "github.com/tinycrypto/ledgerd/infrastructure/logger"

var log = logger.RegisterSubSystem("CHMN")
