// Package state keeps each participant's conversation record: the current
// stage, an auxiliary counter and the selected offer.
//
// Records live behind a Backend (in-memory shards, badger or postgres) and
// every mutation goes through Backend.Update, which serializes callers that
// share an identity while leaving other identities independent.
package state
