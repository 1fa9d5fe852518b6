// Package blobstore abstracts the durable object store holding derived image
// artifacts. Two drivers share one Store interface: an Azure Blob Storage
// backend with a lazily-constructed, mutex-guarded container client, and a
// disk backend (temp file + rename atomic writes) used for local runs and
// tests. Objects are addressed by flat "<fingerprint>.<format>" names and
// carry the store-assigned modification time that the cache manager uses for
// staleness decisions.
package blobstore
