// Package replication copies entries between the local store and a remote
// replica.
//
// The two directions are deliberately asymmetric. A push writes every known
// field of one entry with field-level merge, so remote fields this program
// does not know about survive. A pull discards all local entries and
// repopulates the store from the remote documents.
//
// Pull is not transactional: the local store is cleared before decoded
// entries are inserted. A failure in between leaves the store partially
// filled and is reported as a SyncError in phase "replace"; the caller is
// expected to retry the whole restore.
package replication
