package services

// Store is everything the services need from a persistence backend. Both
// the Firestore store and the SQLite store satisfy it.
type Store interface {
	membershipStore
	categoryStore
	ledgerStore
	aggregationStore
	inviteStore
	transcriptStore
}
