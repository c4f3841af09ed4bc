// Package store persists occupancy grid snapshots and simulation runs in
// SQLite.
//
// Grids are stored as gob+gzip blobs alongside their dimensions, so a
// snapshot can be checked against a live area before it is restored. The
// schema is managed by golang-migrate from the embedded migrations directory.
package store
