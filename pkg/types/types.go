// Package types defines the core identifiers and records shared by the
// execution-admission path: object identifiers, lineage versions, execution
// input keys, cache entries, and epoch-scoped markers.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// ObjectIDLength is the size in bytes of an ObjectID.
const ObjectIDLength = 32

// ObjectID is an opaque fixed-size identifier for an object or package.
type ObjectID [ObjectIDLength]byte

// ObjectIDFromHex parses an ObjectID from a hex string, with or without a
// leading "0x". Short strings are left-padded with zero bytes, matching the
// rendering of protocol built-in package addresses (0x1, 0x2, ...).
func ObjectIDFromHex(s string) (ObjectID, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ObjectID{}, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	if len(raw) > ObjectIDLength {
		return ObjectID{}, fmt.Errorf("object id %q exceeds %d bytes", s, ObjectIDLength)
	}
	var id ObjectID
	copy(id[ObjectIDLength-len(raw):], raw)
	return id, nil
}

// MustObjectIDFromHex is ObjectIDFromHex that panics on malformed input.
// Intended for package-level constants and tests.
func MustObjectIDFromHex(s string) ObjectID {
	id, err := ObjectIDFromHex(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ObjectIDFromUint64 builds an ObjectID from a small integer address.
func ObjectIDFromUint64(v uint64) ObjectID {
	var id ObjectID
	binary.BigEndian.PutUint64(id[ObjectIDLength-8:], v)
	return id
}

func (id ObjectID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// Short returns an abbreviated rendering for log output.
func (id ObjectID) Short() string {
	return "0x" + hex.EncodeToString(id[:4]) + ".."
}

// Version is a per-object-lineage monotonically increasing sequence number.
//
// Values above MaxValidVersion are reserved sentinels: they never correspond
// to stored content and encode an upstream scheduling decision instead.
type Version uint64

const (
	// MaxValidVersion is the highest version that can ever be assigned to
	// stored content. Everything above is reserved.
	MaxValidVersion Version = 0x7fff_ffff_ffff_ffff

	// VersionCancelledRead marks a shared-object read skipped because the
	// transaction was cancelled.
	VersionCancelledRead Version = MaxValidVersion + 2

	// VersionCongested marks a shared-object read deferred due to
	// congestion control.
	VersionCongested Version = MaxValidVersion + 3

	// VersionRandomnessUnavailable marks a read deferred because the
	// epoch's randomness was not available.
	VersionRandomnessUnavailable Version = MaxValidVersion + 4
)

// IsSentinel reports whether v is one of the reserved sentinel versions.
// A sentinel key is satisfied by definition; no write will ever match it.
func (v Version) IsSentinel() bool {
	return v == VersionCancelledRead || v == VersionCongested || v == VersionRandomnessUnavailable
}

// Next returns the successor version. Panics on sentinel input.
func (v Version) Next() Version {
	if v >= MaxValidVersion {
		panic(fmt.Sprintf("version overflow: %d", v))
	}
	return v + 1
}

// EpochID identifies one epoch of the protocol.
type EpochID uint64

// CheckpointSequenceNumber is a monotonically increasing checkpoint index.
type CheckpointSequenceNumber uint64

// TransactionDigest identifies a transaction.
type TransactionDigest [32]byte

func (d TransactionDigest) String() string {
	return hex.EncodeToString(d[:8]) + ".."
}
