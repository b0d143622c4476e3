package miner

import (
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
	"github.com/tinycrypto/ledgerd/util/panics"
)

var log = logger.RegisterSubSystem("MINR")
var spawn = panics.GoroutineWrapperFunc(log)
