package types

// Protocol built-in system packages. These are guaranteed present from
// genesis, so an input key naming one of them is always satisfiable without
// consulting any store.
var (
	MoveStdlibPackageID  = ObjectIDFromUint64(0x1)
	FrameworkPackageID   = ObjectIDFromUint64(0x2)
	SystemStatePackageID = ObjectIDFromUint64(0x3)
	BridgePackageID      = ObjectIDFromUint64(0xb)
	DeepbookPackageID    = ObjectIDFromUint64(0xdee9)
)

var systemPackageIDs = map[ObjectID]struct{}{
	MoveStdlibPackageID:  {},
	FrameworkPackageID:   {},
	SystemStatePackageID: {},
	BridgePackageID:      {},
	DeepbookPackageID:    {},
}

// IsSystemPackage reports whether id names a protocol built-in package.
func IsSystemPackage(id ObjectID) bool {
	_, ok := systemPackageIDs[id]
	return ok
}

// SystemPackageIDs returns the registry of built-in package ids.
func SystemPackageIDs() []ObjectID {
	ids := make([]ObjectID, 0, len(systemPackageIDs))
	for id := range systemPackageIDs {
		ids = append(ids, id)
	}
	return ids
}
