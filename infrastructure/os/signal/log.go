package signal

import (
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
)

var log = logger.RegisterSubSystem("LDGR")
