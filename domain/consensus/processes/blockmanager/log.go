package blockmanager

import "github.com/tinycrypto/ledgerd/infrastructure/logger"

var log = logger.RegisterSubSystem("BMGR")
