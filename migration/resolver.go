package migration

import "github.com/libfaes/eventstream/store"

// StoreResolver resolves the logical store names carried on
// model.StreamInformation and model.MigrationContext (DataStore,
// DocumentStore) to the concrete store instances the executor writes
// through. Keeping the context itself name-only (rather than embedding
// live store handles) lets a frozen MigrationContext be constructed,
// inspected, and logged without pinning it to one process's wiring.
type StoreResolver interface {
	DataStore(name string) (store.DataStore, bool)
	DocumentStore(name string) (store.DocumentStore, bool)
}

// StaticResolver is a StoreResolver backed by two fixed maps, the
// resolver used in tests and in single-process deployments that do not
// need dynamic store registration.
type StaticResolver struct {
	dataStores     map[string]store.DataStore
	documentStores map[string]store.DocumentStore
}

// NewStaticResolver creates a StaticResolver from the given maps. Either
// may be nil.
func NewStaticResolver(dataStores map[string]store.DataStore, documentStores map[string]store.DocumentStore) *StaticResolver {
	return &StaticResolver{dataStores: dataStores, documentStores: documentStores}
}

func (r *StaticResolver) DataStore(name string) (store.DataStore, bool) {
	ds, ok := r.dataStores[name]
	return ds, ok
}

func (r *StaticResolver) DocumentStore(name string) (store.DocumentStore, bool) {
	ds, ok := r.documentStores[name]
	return ds, ok
}
