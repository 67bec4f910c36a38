// Package store persists experiment definitions and submitted responses as
// two independent JSON documents on disk.
//
// Every mutation reads the whole document, changes it in memory and writes
// the whole document back. Writes go to a temporary file in the same
// directory that is then renamed over the original, so a document is either
// fully replaced or left as it was. There is no locking around the
// read-modify-write cycle: two writers racing on the same document can lose
// an update, the last rewrite wins.
//
// A missing or empty document reads as an empty collection.
package store
