// Package simpledrive manages a hierarchy of user-owned items (files and
// folders) with per-item access control, versioning, archival and
// time-limited shared links.
//
// A single Service orchestrates item creation and mutation, resolves the
// effective permission of a user on an item, runs uploaded bytes through the
// content pipeline (blob upload, thumbnail, embedded metadata, checksum and
// tags) and keeps item metadata consistent with the blob store.
// Repository implementations (memory, Postgres, Badger) and blob stores
// (memory, filesystem, S3) live in subpackages.
//
// # Identity
//
// Every operation takes the acting user explicitly (the Actor field on a
// request, or an actor argument). The package never reads identity from
// ambient state; transport layers are expected to authenticate the caller and
// pass the resulting user ID in.
//
// # Consistency
//
// Mutations re-read the item immediately before persisting and compute the
// next version from that fresh state; concurrent editors resolve as last
// writer wins. The parent-folder permission check on create and move is not
// transactional with the child write, so an access change on the parent that
// lands between the two is not observed.
package simpledrive
