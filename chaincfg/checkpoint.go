// Copyright (c) 2017-2018 The nox developers

// Package chaincfg holds the network parameters consumed by chain-state
// computation: checkpoints and the consensus constants the
// chain_state_populator needs. Consensus constants themselves (retargeting
// windows, activation heights) are treated, per spec.md §1, as the domain
// of an externally supplied chain_state_populator; this package only
// carries the data shape, grounded on
// _examples/Qitmeer-qitmeer/core/blockchain/checkpoints.go's params.Checkpoint.
package chaincfg

import (
	version "github.com/hashicorp/go-version"

	"github.com/scristian71/libbitcoin-blockchain/pkg/chainhash"
)

// Checkpoint names a confirmed (hash, height) position, spec.md §3.
type Checkpoint struct {
	Height uint64
	Hash   chainhash.Hash
}

// Params bundles the checkpoints and activation thresholds a network
// defines. It is intentionally minimal: validate.HeaderValidator consults
// the checkpoint list (an exact-height identity check in Accept) and
// ScryptProofOfWork (in Check), and chainstate's storePopulator.FromHeight
// reads the median-time-past window size.
type Params struct {
	Name        string
	Checkpoints []Checkpoint

	// MedianTimeBlocks is the number of headers, ending at the header
	// itself, whose median timestamp is the median-time-past; the standard
	// Bitcoin-family value is 11.
	MedianTimeBlocks int

	// ScryptProofOfWork selects the blake256 PoW-digest stand-in described
	// in spec.md §6 for this network (the "testnet variant").
	ScryptProofOfWork bool

	// MinSupportedVersion is the protocol-version floor SupportsVersion
	// compares a peer version against; nil means no floor. No organizer
	// calls SupportsVersion, so header admission does not consult it.
	MinSupportedVersion *version.Version
}

// SupportsVersion reports whether peerVersion (a semantic version string
// such as "1.4.0") meets p's MinSupportedVersion floor. A malformed
// peerVersion or an unset floor is treated as supported, leaving the
// decision to whatever transport-level handshake parsed the string in
// the first place.
func (p *Params) SupportsVersion(peerVersion string) bool {
	if p.MinSupportedVersion == nil {
		return true
	}
	v, err := version.NewVersion(peerVersion)
	if err != nil {
		return true
	}
	return v.GreaterThanOrEqual(p.MinSupportedVersion)
}

// LatestCheckpoint returns the highest checkpoint at or below height, or
// nil if none qualifies.
func (p *Params) LatestCheckpoint(height uint64) *Checkpoint {
	var latest *Checkpoint
	for i := range p.Checkpoints {
		cp := &p.Checkpoints[i]
		if cp.Height <= height && (latest == nil || cp.Height > latest.Height) {
			latest = cp
		}
	}
	return latest
}

// CheckCheckpoint reports whether hash is permitted at height: true when no
// checkpoint is defined at that exact height, or when the checkpoint's hash
// matches. This is the checkpoint identity check (no difficulty floor)
// that validate.HeaderValidator.Accept runs, grounded on
// _examples/Qitmeer-qitmeer/core/blockchain/checkpoints.go's
// verifyCheckpoint.
func (p *Params) CheckCheckpoint(height uint64, hash chainhash.Hash) bool {
	for i := range p.Checkpoints {
		cp := &p.Checkpoints[i]
		if cp.Height == height {
			return cp.Hash == hash
		}
	}
	return true
}
