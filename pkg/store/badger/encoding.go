package badger

import (
	"encoding/binary"
	"fmt"

	"github.com/marmos91/execgate/pkg/types"
)

// Key Design
//
// All keys use a short prefix plus fixed-width big-endian fields so that
// range scans order correctly:
//
// Object entries    "o:"  o:<id(32)><version(8)>           entry (binary)
// Latest version    "l:"  l:<id(32)>                       version (8 bytes)
// Package flags     "p:"  p:<id(32)>                       empty value
// Markers           "m:"  m:<epoch(8)><id(32)><version(8)> marker (binary)

const (
	prefixObject  = "o:"
	prefixLatest  = "l:"
	prefixPackage = "p:"
	prefixMarker  = "m:"
)

// keyObject generates the key for an object entry: "o:<id><version>"
func keyObject(id types.ObjectID, version types.Version) []byte {
	key := make([]byte, 0, len(prefixObject)+types.ObjectIDLength+8)
	key = append(key, prefixObject...)
	key = append(key, id[:]...)
	key = binary.BigEndian.AppendUint64(key, uint64(version))
	return key
}

// keyLatest generates the key for an object's latest version: "l:<id>"
func keyLatest(id types.ObjectID) []byte {
	key := make([]byte, 0, len(prefixLatest)+types.ObjectIDLength)
	key = append(key, prefixLatest...)
	key = append(key, id[:]...)
	return key
}

// keyPackage generates the key for a package flag: "p:<id>"
func keyPackage(id types.ObjectID) []byte {
	key := make([]byte, 0, len(prefixPackage)+types.ObjectIDLength)
	key = append(key, prefixPackage...)
	key = append(key, id[:]...)
	return key
}

// keyMarker generates the key for a marker: "m:<epoch><id><version>"
func keyMarker(epoch types.EpochID, id types.ObjectID, version types.Version) []byte {
	key := make([]byte, 0, len(prefixMarker)+8+types.ObjectIDLength+8)
	key = append(key, prefixMarker...)
	key = binary.BigEndian.AppendUint64(key, uint64(epoch))
	key = append(key, id[:]...)
	key = binary.BigEndian.AppendUint64(key, uint64(version))
	return key
}

// encodeEntry serializes an ObjectEntry as <kind><package><content...>.
func encodeEntry(entry types.ObjectEntry) []byte {
	buf := make([]byte, 0, 2+len(entry.Content))
	buf = append(buf, byte(entry.Kind))
	if entry.Package {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = append(buf, entry.Content...)
	return buf
}

func decodeEntry(val []byte) (types.ObjectEntry, error) {
	if len(val) < 2 {
		return types.ObjectEntry{}, fmt.Errorf("object entry too short: %d bytes", len(val))
	}
	entry := types.ObjectEntry{
		Kind:    types.ObjectEntryKind(val[0]),
		Package: val[1] == 1,
	}
	if len(val) > 2 {
		entry.Content = append([]byte(nil), val[2:]...)
	}
	return entry, nil
}

// encodeMarker serializes a MarkerValue as <kind><txdigest(32)>.
func encodeMarker(marker types.MarkerValue) []byte {
	buf := make([]byte, 0, 1+len(marker.TxDigest))
	buf = append(buf, byte(marker.Kind))
	buf = append(buf, marker.TxDigest[:]...)
	return buf
}

func decodeMarker(val []byte) (types.MarkerValue, error) {
	if len(val) != 33 {
		return types.MarkerValue{}, fmt.Errorf("marker value has %d bytes, want 33", len(val))
	}
	marker := types.MarkerValue{Kind: types.MarkerKind(val[0])}
	copy(marker.TxDigest[:], val[1:])
	return marker, nil
}

func encodeVersion(version types.Version) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(version))
}

func decodeVersion(val []byte) (types.Version, error) {
	if len(val) != 8 {
		return 0, fmt.Errorf("version value has %d bytes, want 8", len(val))
	}
	return types.Version(binary.BigEndian.Uint64(val)), nil
}
