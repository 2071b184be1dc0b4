package store

import (
	"bytes"
	"fmt"
	"strconv"

	"dialogd/pkg/logger"

	"github.com/cockroachdb/pebble"
)

// SweepOrphans removes message index entries, message rows and pair index
// entries whose owning thread no longer exists. Cascade deletes commit
// atomically, so orphans only appear after interrupted manual surgery or
// partial restores; the sweep is the backstop. With dryRun set it only
// counts what would be removed.
func SweepOrphans(dryRun bool) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	batch := db.NewBatch()
	removed := 0

	threadExists := func(id uint64) (bool, error) {
		_, closer, err := db.Get(threadMetaKey(id))
		if err == pebble.ErrNotFound {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		closer.Close()
		return true, nil
	}

	// orphaned message index entries (and their rows)
	idxPrefix := []byte("msgidx:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	for iter.SeekGE(idxPrefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, idxPrefix) {
			break
		}
		threadID, perr := strconv.ParseUint(string(iter.Value()), 10, 64)
		if perr != nil {
			continue
		}
		ok, terr := threadExists(threadID)
		if terr != nil {
			iter.Close()
			_ = batch.Close()
			return 0, terr
		}
		if ok {
			continue
		}
		msgID, perr := strconv.ParseUint(string(k[len(idxPrefix):]), 10, 64)
		if perr != nil {
			continue
		}
		if !dryRun {
			_ = batch.Delete(append([]byte(nil), k...), nil)
			_ = batch.Delete(msgKey(threadID, msgID), nil)
		}
		removed++
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		_ = batch.Close()
		return 0, err
	}
	iter.Close()

	// dangling pair index entries
	pairPrefix := []byte("pair:")
	piter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		_ = batch.Close()
		return 0, err
	}
	for piter.SeekGE(pairPrefix); piter.Valid(); piter.Next() {
		k := piter.Key()
		if !bytes.HasPrefix(k, pairPrefix) {
			break
		}
		threadID, perr := strconv.ParseUint(string(piter.Value()), 10, 64)
		if perr != nil {
			continue
		}
		ok, terr := threadExists(threadID)
		if terr != nil {
			piter.Close()
			_ = batch.Close()
			return 0, terr
		}
		if ok {
			continue
		}
		if !dryRun {
			_ = batch.Delete(append([]byte(nil), k...), nil)
		}
		removed++
	}
	if err := piter.Error(); err != nil {
		piter.Close()
		_ = batch.Close()
		return 0, err
	}
	piter.Close()

	if dryRun || removed == 0 {
		_ = batch.Close()
		return removed, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("sweep_commit_failed", "error", err)
		return 0, err
	}
	logger.Info("sweep_completed", "removed", removed)
	return removed, nil
}
