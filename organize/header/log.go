// Copyright (c) 2017-2018 The nox developers

package header

import (
	"github.com/btcsuite/btclog"
	internallog "github.com/scristian71/libbitcoin-blockchain/internal/log"
)

var log = internallog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

func init() {
	UseLogger(internallog.NewSubsystem("header organizer"))
}
