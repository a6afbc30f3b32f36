// Package cache implements the named cache storage used by the offline agent:
// a set of caches addressed by name, each holding request → response
// snapshots keyed by URL. Four backends share the Storage/Cache contracts:
// an in-memory map, a directory tree under StoragePath (temp file + rename
// writes), a goleveldb database and a SQLite file. Names are opaque; the agent uses them as
// cache generations and evicts whole caches by name.
package cache
