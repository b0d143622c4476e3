package app

import (
	"github.com/tinycrypto/ledgerd/infrastructure/logger"
	"github.com/tinycrypto/ledgerd/util/panics"
)

var log = logger.RegisterSubSystem("LDGR")
var spawn = panics.GoroutineWrapperFunc(log)
