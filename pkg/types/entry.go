package types

// ObjectEntryKind describes what is stored at an (id, version) slot.
type ObjectEntryKind uint8

const (
	// EntryObject is live object content.
	EntryObject ObjectEntryKind = iota
	// EntryDeleted is a tombstone for a deleted object.
	EntryDeleted
	// EntryWrapped is a tombstone for an object wrapped into another.
	EntryWrapped
)

func (k ObjectEntryKind) String() string {
	switch k {
	case EntryObject:
		return "object"
	case EntryDeleted:
		return "deleted"
	case EntryWrapped:
		return "wrapped"
	default:
		return "unknown"
	}
}

// ObjectEntry is the cache's record of what is stored at an (id, version)
// slot: content bytes or a tombstone. Entries are written exactly once by a
// single logical writer and are never mutated in place.
type ObjectEntry struct {
	Kind ObjectEntryKind

	// Content holds the serialized object for EntryObject; nil for
	// tombstones.
	Content []byte

	// Package marks the entry as a package. Package writes additionally
	// satisfy Package input keys for the same id.
	Package bool
}

// IsTombstone reports whether the entry records a deletion or wrap rather
// than live content.
func (e ObjectEntry) IsTombstone() bool {
	return e.Kind == EntryDeleted || e.Kind == EntryWrapped
}

// NewObjectEntry returns a live-content entry.
func NewObjectEntry(content []byte) ObjectEntry {
	return ObjectEntry{Kind: EntryObject, Content: content}
}

// NewPackageEntry returns a live-content entry flagged as a package.
func NewPackageEntry(content []byte) ObjectEntry {
	return ObjectEntry{Kind: EntryObject, Content: content, Package: true}
}

// MarkerKind discriminates marker values.
type MarkerKind uint8

const (
	// MarkerConsensusStreamEnded records that no further writes to the
	// marked (id, version) will occur within the marker's epoch.
	MarkerConsensusStreamEnded MarkerKind = iota
)

// MarkerValue is an epoch-scoped annotation about a key's write lineage,
// independent of any object content. Like object entries, markers are
// written exactly once and never mutated.
type MarkerValue struct {
	Kind MarkerKind

	// TxDigest is the digest of the transaction that certified the end of
	// the consensus stream for this key.
	TxDigest TransactionDigest
}

// ConsensusStreamEnded builds the stream-ended marker.
func ConsensusStreamEnded(digest TransactionDigest) MarkerValue {
	return MarkerValue{Kind: MarkerConsensusStreamEnded, TxDigest: digest}
}
