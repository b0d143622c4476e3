package main

import (
	"github.com/jessevdk/go-flags"
)

type configFlags struct {
	PrivateKey string `long:"privatekey" description:"Hex encoded private key to derive the public key and address from, instead of generating a new one"`
}

func parseConfig() (*configFlags, error) {
	cfg := &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)
	_, err := parser.Parse()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
