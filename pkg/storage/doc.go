// Package storage is the download dedup ledger.
//
// A Manager owns one directory. At startup it records every complete file
// already present; during the crawl the queue reserves each filename before
// attempting it, so a name is tried at most once per process even when the
// transfer fails. Files are written through a ".part" temporary and renamed
// into place.
//
//	ledger, err := storage.NewManager(dir)
//	if ledger.Reserve(name) {
//	    n, err := ledger.Save(body, name)
//	}
package storage
