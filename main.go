package main

import (
	"os"

	"github.com/tinycrypto/ledgerd/app"
)

func main() {
	if err := app.StartApp(); err != nil {
		os.Exit(1)
	}
}
