// Copyright (c) 2017-2018 The nox developers

// Package config loads the configuration surface spec.md §6 enumerates,
// struct-tag driven the way the teacher's own config.go is parsed with
// go-flags. The P2P/RPC/wallet flags that filled this file in the teacher
// (listeners, RPC credentials, address indexing) are dropped: spec.md's
// Non-goals exclude wire serialization of P2P messages and RPC framing,
// and address indexing is named in §9 as delegable to an external indexer.
package config

import (
	"time"

	flags "github.com/jessevdk/go-flags"
)

// Config is the complete configuration surface of the blockchain core.
type Config struct {
	// ByteFeeSatoshis is the per-byte mempool fee floor (spec.md §6).
	ByteFeeSatoshis float64 `long:"byte-fee-satoshis" description:"Per-byte mempool fee floor in satoshis"`

	// SigopFeeSatoshis is the per-sigop mempool fee floor.
	SigopFeeSatoshis float64 `long:"sigop-fee-satoshis" description:"Per-sigop mempool fee floor in satoshis"`

	// MinimumOutputSatoshis is the dust threshold.
	MinimumOutputSatoshis uint64 `long:"minimum-output-satoshis" description:"Dust threshold in satoshis"`

	// NotifyLimitHours is the staleness threshold used by is_X_stale.
	NotifyLimitHours uint32 `long:"notify-limit-hours" default:"24" description:"Staleness threshold in hours"`

	// ScryptProofOfWork is parsed but not read by any package; the
	// proof-of-work digest used in validation follows
	// chaincfg.Params.ScryptProofOfWork.
	ScryptProofOfWork bool `long:"scrypt-proof-of-work" description:"Use the alternate (blake256) proof-of-work digest"`

	// RelayTransactions is parsed but not read by any package; block
	// population does not receive it.
	RelayTransactions bool `long:"relay-transactions" default:"true" description:"Hint to populate relay-eligible transaction metadata"`

	// HeaderPoolBranchThreshold resolves spec.md §9's open question on
	// pool eviction policy: entries on abandoned forks older than this
	// many heights below fork_point are dropped (spec.md §4.1).
	HeaderPoolBranchThreshold uint64 `long:"header-pool-branch-threshold" default:"288" description:"Heights below fork_point after which abandoned header-pool entries are evicted"`

	// MaxMoney bounds validator.check(tx, max_money).
	MaxMoney uint64 `long:"max-money" default:"2100000000000000" description:"Maximum permitted amount in satoshis"`

	// PriorityPoolThreads sizes the script-validation fan-out pool.
	// spec.md §5 requires it be sized so a writer parking on a
	// completion latch always finds a thread available.
	PriorityPoolThreads int `long:"priority-pool-threads" default:"4" description:"Worker threads reserved for script-validation fan-out"`

	// TxPoolMaxOrphans / TxPoolExpiry bound mempool size and age, the
	// non-consensus eviction policy spec.md §4.2 leaves configurable.
	TxPoolMaxOrphans int           `long:"txpool-max-orphans" default:"100" description:"Maximum transactions retained in the pool"`
	TxPoolExpiry     time.Duration `long:"txpool-expiry" default:"336h" description:"Age after which an unconfirmed transaction is evicted"`
}

// Default returns a Config with the same defaults Load would apply to an
// empty command line, for use by tests and embedders that construct a
// facade directly.
func Default() *Config {
	cfg := &Config{}
	p := flags.NewParser(cfg, flags.Default)
	// Parsing the empty slice still applies `default:` tags.
	_, _ = p.ParseArgs(nil)
	return cfg
}

// Load parses args (typically os.Args[1:]) into a Config.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	parser := flags.NewParser(cfg, flags.Default)
	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
