/*
Package badger provides the persistent file metadata table on BadgerDB.

File records are stored under "f:" followed by their full id, so a folder
and all of its descendants form one contiguous key range. ScanPrefix is a
single prefix iteration and returns records in id order. A secondary "u:"
index lists the records of one user without a full scan, and the "b:"
range maps regions to their buckets.

	store, err := badger.NewStore(badger.Config{Directory: "/var/lib/smartpc/meta"}, collector, tracker)
	if err != nil {
		return err
	}
	defer store.Close()

CreateFile is a conditional put: it fails with RECORD_EXISTS when the id is
taken, which lets uploads claim a name without racing a concurrent request.
*/
package badger
