package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"dialogd/pkg/dmerr"
	"dialogd/pkg/logger"
	"dialogd/pkg/models"

	"github.com/cockroachdb/pebble"
)

var (
	db     *pebble.DB
	dbPath string

	// monotonic id counters, recovered from the highest stored keys at Open
	threadSeq uint64
	msgSeq    uint64

	// pairMu serializes insert-or-fetch on the pair index so two concurrent
	// creates for the same participant pair converge to one thread.
	pairMu sync.Mutex
)

// Key layout:
//
//	thread:%020d:meta          -> thread JSON
//	thread:%020d:msg:%020d     -> message JSON (zero-padded monotonic ids keep
//	                              lexicographic order chronological)
//	msgidx:%020d               -> owning thread id (decimal)
//	pair:<lo>|<hi>             -> thread id (decimal), canonical pair index
func threadMetaKey(id uint64) []byte {
	return []byte(fmt.Sprintf("thread:%020d:meta", id))
}

func threadMsgPrefix(id uint64) []byte {
	return []byte(fmt.Sprintf("thread:%020d:msg:", id))
}

func msgKey(threadID, msgID uint64) []byte {
	return []byte(fmt.Sprintf("thread:%020d:msg:%020d", threadID, msgID))
}

func msgIdxKey(msgID uint64) []byte {
	return []byte(fmt.Sprintf("msgidx:%020d", msgID))
}

// PairKey returns the canonical index key for an unordered participant pair.
func PairKey(a, b string) []byte {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return []byte("pair:" + lo + "|" + hi)
}

// Open opens (or creates) a Pebble database at the given path, keeps a
// global handle for simple usage in this package and recovers the id
// counters from the highest stored keys.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	if threadSeq, err = maxIDUnderPrefix([]byte("thread:"), 7); err != nil {
		return err
	}
	if msgSeq, err = maxIDUnderPrefix([]byte("msgidx:"), 7); err != nil {
		return err
	}
	logger.Info("pebble_opened", "path", path, "thread_seq", threadSeq, "msg_seq", msgSeq)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// DBPath returns the path the store was opened at.
func DBPath() string { return dbPath }

// maxIDUnderPrefix finds the highest zero-padded id embedded at byte offset
// off in the last key under prefix. Returns 0 when no keys exist.
func maxIDUnderPrefix(prefix []byte, off int) (uint64, error) {
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	k := iter.Key()
	if len(k) < off+20 {
		return 0, fmt.Errorf("malformed key %q", k)
	}
	id, perr := strconv.ParseUint(string(k[off:off+20]), 10, 64)
	if perr != nil {
		return 0, fmt.Errorf("malformed key %q: %w", k, perr)
	}
	return id, iter.Error()
}

// CreateThreadForPair atomically returns the existing thread for the
// unordered pair (a,b) or creates a new one. The second result reports
// whether a new thread row was written.
func CreateThreadForPair(a, b string) (models.Thread, bool, error) {
	if db == nil {
		return models.Thread{}, false, fmt.Errorf("pebble not opened; call store.Open first")
	}
	pairMu.Lock()
	defer pairMu.Unlock()

	pk := PairKey(a, b)
	if v, closer, err := db.Get(pk); err == nil {
		id, perr := strconv.ParseUint(string(v), 10, 64)
		closer.Close()
		if perr != nil {
			return models.Thread{}, false, fmt.Errorf("corrupt pair index %q: %w", pk, perr)
		}
		t, gerr := GetThread(id)
		return t, false, gerr
	} else if err != pebble.ErrNotFound {
		return models.Thread{}, false, err
	}

	now := time.Now().UTC().UnixNano()
	t := models.Thread{
		ID:           atomic.AddUint64(&threadSeq, 1),
		Participants: []string{a, b},
		CreatedTS:    now,
		UpdatedTS:    now,
	}
	data, err := json.Marshal(t)
	if err != nil {
		return models.Thread{}, false, fmt.Errorf("failed to marshal thread: %w", err)
	}
	batch := db.NewBatch()
	_ = batch.Set(threadMetaKey(t.ID), data, nil)
	_ = batch.Set(pk, []byte(strconv.FormatUint(t.ID, 10)), nil)
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("create_thread_failed", "thread", t.ID, "error", err)
		return models.Thread{}, false, err
	}
	logger.Info("thread_created", "thread", t.ID)
	return t, true, nil
}

// GetThread returns the stored thread for a given id.
func GetThread(id uint64) (models.Thread, error) {
	if db == nil {
		return models.Thread{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(threadMetaKey(id))
	if err == pebble.ErrNotFound {
		return models.Thread{}, dmerr.NotFoundf("thread %d", id)
	}
	if err != nil {
		return models.Thread{}, err
	}
	defer closer.Close()
	var t models.Thread
	if err := json.Unmarshal(v, &t); err != nil {
		return models.Thread{}, fmt.Errorf("invalid thread metadata: %w", err)
	}
	return t, nil
}

// PutThread overwrites the stored thread metadata. Computed list fields are
// stripped so they never leak into storage.
func PutThread(t models.Thread) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	t.NumUnread = 0
	t.LastMessage = ""
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal thread: %w", err)
	}
	if err := db.Set(threadMetaKey(t.ID), data, pebble.Sync); err != nil {
		logger.Error("save_thread_failed", "thread", t.ID, "error", err)
		return err
	}
	return nil
}

// ListThreadsFor returns all threads that user participates in, newest
// first (thread ids are monotonic, so id order matches creation order).
func ListThreadsFor(user string) ([]models.Thread, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("thread:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Thread
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if !bytes.HasSuffix(iter.Key(), []byte(":meta")) {
			continue
		}
		var t models.Thread
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		if t.HasParticipant(user) {
			out = append(out, t)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	// reverse into created-desc order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DropPair removes the pair index entry for (a,b), if any. Called when a
// participant leaves so the pair can form a fresh thread later.
func DropPair(a, b string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete(PairKey(a, b), pebble.Sync)
}

// DeleteThreadCascade removes the thread metadata, its pair index entry and
// every message (rows and id index) in a single atomic batch.
func DeleteThreadCascade(t models.Thread) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	batch := db.NewBatch()

	// drop message id index entries first; they are discovered by scanning
	// the thread's message rows
	prefix := threadMsgPrefix(t.ID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		_ = batch.Delete(msgIdxKey(m.ID), nil)
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		return err
	}
	iter.Close()

	upper := append(append([]byte(nil), prefix...), 0xff)
	_ = batch.DeleteRange(prefix, upper, nil)
	_ = batch.Delete(threadMetaKey(t.ID), nil)
	if len(t.Participants) == 2 {
		_ = batch.Delete(PairKey(t.Participants[0], t.Participants[1]), nil)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("delete_thread_failed", "thread", t.ID, "error", err)
		return err
	}
	logger.Info("thread_deleted", "thread", t.ID)
	return nil
}

// AppendMessage inserts a new unread message into a thread and indexes it
// by message id.
func AppendMessage(threadID uint64, sender, text string) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	now := time.Now().UTC().UnixNano()
	m := models.Message{
		ID:        atomic.AddUint64(&msgSeq, 1),
		Thread:    threadID,
		Sender:    sender,
		Text:      text,
		IsRead:    false,
		CreatedTS: now,
		UpdatedTS: now,
	}
	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	batch := db.NewBatch()
	_ = batch.Set(msgKey(threadID, m.ID), data, nil)
	_ = batch.Set(msgIdxKey(m.ID), []byte(strconv.FormatUint(threadID, 10)), nil)
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("save_message_failed", "thread", threadID, "msg", m.ID, "error", err)
		return models.Message{}, err
	}
	logger.Info("message_saved", "thread", threadID, "msg", m.ID)
	return m, nil
}

// GetMessage looks a message up by id via the message index.
func GetMessage(id uint64) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(msgIdxKey(id))
	if err == pebble.ErrNotFound {
		return models.Message{}, dmerr.NotFoundf("message %d", id)
	}
	if err != nil {
		return models.Message{}, err
	}
	threadID, perr := strconv.ParseUint(string(v), 10, 64)
	closer.Close()
	if perr != nil {
		return models.Message{}, fmt.Errorf("corrupt message index %d: %w", id, perr)
	}
	mv, mcloser, err := db.Get(msgKey(threadID, id))
	if err == pebble.ErrNotFound {
		return models.Message{}, dmerr.NotFoundf("message %d", id)
	}
	if err != nil {
		return models.Message{}, err
	}
	defer mcloser.Close()
	var m models.Message
	if err := json.Unmarshal(mv, &m); err != nil {
		return models.Message{}, fmt.Errorf("invalid stored message: %w", err)
	}
	return m, nil
}

// PutMessage overwrites a stored message in place.
func PutMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set(msgKey(m.Thread, m.ID), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "thread", m.Thread, "msg", m.ID, "error", err)
		return err
	}
	return nil
}

// DeleteMessage removes a message row and its id index entry.
func DeleteMessage(m models.Message) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	batch := db.NewBatch()
	_ = batch.Delete(msgKey(m.Thread, m.ID), nil)
	_ = batch.Delete(msgIdxKey(m.ID), nil)
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("delete_message_failed", "thread", m.Thread, "msg", m.ID, "error", err)
		return err
	}
	logger.Info("message_deleted", "thread", m.Thread, "msg", m.ID)
	return nil
}

// ListMessages returns messages for a thread, newest first. A limit > 0
// bounds the result to the most recent messages.
func ListMessages(threadID uint64, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := threadMsgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.Message
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(out) {
		out = out[len(out)-limit:]
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// UnreadCount counts unread messages in a thread, all senders included.
func UnreadCount(threadID uint64) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := threadMsgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if !m.IsRead {
			n++
		}
	}
	return n, iter.Error()
}

// LastMessageText returns the text of the newest message in a thread, and
// whether the thread has any messages at all.
func LastMessageText(threadID uint64) (string, bool, error) {
	if db == nil {
		return "", false, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := threadMsgPrefix(threadID)
	upper := append(append([]byte(nil), prefix...), 0xff)
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	if err != nil {
		return "", false, err
	}
	defer iter.Close()
	if !iter.Last() {
		return "", false, iter.Error()
	}
	var m models.Message
	if err := json.Unmarshal(iter.Value(), &m); err != nil {
		return "", false, fmt.Errorf("invalid stored message: %w", err)
	}
	return m.Text, true, iter.Error()
}

// MarkRead flips is_read to true for every unread message in the thread not
// sent by exceptSender. A watermark > 0 bounds the transition to messages
// with id <= watermark. The whole transition commits as one batch; it
// returns the number of messages flipped and is idempotent.
func MarkRead(threadID uint64, exceptSender string, watermark uint64) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := threadMsgPrefix(threadID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	batch := db.NewBatch()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			continue
		}
		if watermark > 0 && m.ID > watermark {
			// ids ascend with the key order; nothing further can match
			break
		}
		if m.IsRead || m.Sender == exceptSender {
			continue
		}
		m.IsRead = true
		data, merr := json.Marshal(m)
		if merr != nil {
			continue
		}
		_ = batch.Set(msgKey(threadID, m.ID), data, nil)
		n++
	}
	if err := iter.Error(); err != nil {
		iter.Close()
		_ = batch.Close()
		return 0, err
	}
	iter.Close()
	if n == 0 {
		_ = batch.Close()
		return 0, nil
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("mark_read_failed", "thread", threadID, "error", err)
		return 0, err
	}
	logger.Info("messages_marked_read", "thread", threadID, "count", n, "watermark", watermark)
	return n, nil
}

// CountThreads returns the total number of stored threads.
func CountThreads() (int, error) {
	return countWithSuffix([]byte("thread:"), []byte(":meta"))
}

// CountMessages returns the total number of stored messages.
func CountMessages() (int, error) {
	return countWithSuffix([]byte("msgidx:"), nil)
}

func countWithSuffix(prefix, suffix []byte) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		if suffix != nil && !bytes.HasSuffix(iter.Key(), suffix) {
			continue
		}
		n++
	}
	return n, iter.Error()
}
