// Copyright (c) 2017-2018 The nox developers

package headerpool

import (
	"github.com/btcsuite/btclog"
	internallog "github.com/scristian71/libbitcoin-blockchain/internal/log"
)

// log starts as the disabled logger and init() replaces it with the
// "headerpool" subsystem logger, so the package logs at Info level by
// default; UseLogger swaps it, mirroring
// _examples/Qitmeer-qitmeer/services/blkmgr/log.go.
var log = internallog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

func init() {
	UseLogger(internallog.NewSubsystem("headerpool"))
}
