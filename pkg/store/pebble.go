package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/lenslink/messaging/pkg/logger"
	"github.com/lenslink/messaging/pkg/metrics"
	"github.com/lenslink/messaging/pkg/models"
	"github.com/lenslink/messaging/pkg/utils"
)

var db *pebble.DB

// seq breaks ordering ties when multiple messages land on the same
// nanosecond timestamp; the key suffix makes iteration order deterministic.
var seq uint64

var (
	// ErrNotFound is returned when a message id is unknown.
	ErrNotFound = errors.New("store: message not found")
	// ErrNotRecipient is returned when a caller tries to mark a message it
	// did not receive.
	ErrNotRecipient = errors.New("store: reader is not the recipient")
)

const (
	convPrefix      = "conv:"
	msgIndexPrefix  = "msgid:"
	violationPrefix = "moderation:user:"
)

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
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
func Ready() bool { return db != nil }

// logKey builds the time-ordered message key for a pair.
// Format: conv:<pair>:msg:<unix_nano %020d>-<seq %06d>.
func logKey(pair string, ts int64, s uint64) string {
	return fmt.Sprintf("%s%s:msg:%020d-%06d", convPrefix, pair, ts, s)
}

// AppendMessage persists a new encrypted message. The timestamp is taken at
// call time and the id is generated here; the caller never controls either.
func AppendMessage(senderID, recipientID string, ciphertext []byte) (models.Message, error) {
	if db == nil {
		return models.Message{}, fmt.Errorf("pebble not opened; call store.Open first")
	}
	m := models.Message{
		ID:          utils.GenMessageID(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Ciphertext:  ciphertext,
		CreatedTS:   time.Now().UTC().UnixNano(),
	}
	key := logKey(utils.PairKey(senderID, recipientID), m.CreatedTS, atomic.AddUint64(&seq, 1))
	data, err := json.Marshal(m)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("save_message_failed", "key", key, "error", err)
		return models.Message{}, err
	}
	// index by id so the read flag can be flipped later without scanning
	if err := db.Set([]byte(msgIndexPrefix+m.ID), []byte(key), pebble.Sync); err != nil {
		logger.Error("save_message_index_failed", "id", m.ID, "error", err)
		return models.Message{}, err
	}
	metrics.MessagesStored.Inc()
	logger.Info("message_saved", "id", m.ID, "key", key)
	return m, nil
}

// ListBetween returns all messages exchanged between the two users, in both
// directions, ascending by append time (seq breaks timestamp ties).
func ListBetween(userA, userB string) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(convPrefix + utils.PairKey(userA, userB) + ":msg:")
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
			return nil, fmt.Errorf("invalid stored message at %s: %w", iter.Key(), err)
		}
		out = append(out, m)
	}
	return out, iter.Error()
}

// GetMessage looks a message up by id via the id index.
func GetMessage(id string) (models.Message, error) {
	m, _, err := getMessageWithKey(id)
	return m, err
}

func getMessageWithKey(id string) (models.Message, string, error) {
	if db == nil {
		return models.Message{}, "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	kv, closer, err := db.Get([]byte(msgIndexPrefix + id))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, "", ErrNotFound
		}
		return models.Message{}, "", err
	}
	key := string(kv)
	_ = closer.Close()

	v, closer, err := db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return models.Message{}, "", ErrNotFound
		}
		return models.Message{}, "", err
	}
	defer closer.Close()
	var m models.Message
	if err := json.Unmarshal(v, &m); err != nil {
		return models.Message{}, "", fmt.Errorf("invalid stored message: %w", err)
	}
	return m, key, nil
}

// MarkRead flips the read flag of a message. Only the recipient may do so;
// anyone else (including the sender) gets ErrNotRecipient. Marking an
// already-read message is a no-op.
func MarkRead(id, readerID string) error {
	m, key, err := getMessageWithKey(id)
	if err != nil {
		return err
	}
	if m.RecipientID != readerID {
		return ErrNotRecipient
	}
	if m.Read {
		return nil
	}
	m.Read = true
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := db.Set([]byte(key), data, pebble.Sync); err != nil {
		logger.Error("mark_read_failed", "id", id, "error", err)
		return err
	}
	return nil
}

// ListConversations derives the user's conversation list from the message
// log alone. The pair and timestamp are parsed out of the keys, so no
// separate conversation entity is stored that could drift from the log.
// Results are distinct by counterparty, newest activity first.
func ListConversations(userID string) ([]models.ConversationSummary, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(convPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	latest := map[string]int64{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := iter.Key()
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		pair, ts, ok := parseLogKey(string(k))
		if !ok {
			continue
		}
		other := utils.Counterparty(pair, userID)
		if other == "" {
			continue
		}
		// keys iterate ascending per pair, so the last seen wins
		if ts > latest[other] {
			latest[other] = ts
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	out := make([]models.ConversationSummary, 0, len(latest))
	for other, ts := range latest {
		out = append(out, models.ConversationSummary{CounterpartyID: other, LastActivityTS: ts})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastActivityTS != out[j].LastActivityTS {
			return out[i].LastActivityTS > out[j].LastActivityTS
		}
		return out[i].CounterpartyID < out[j].CounterpartyID
	})
	return out, nil
}

// parseLogKey extracts the pair and timestamp from a message log key.
func parseLogKey(k string) (pair string, ts int64, ok bool) {
	rest := strings.TrimPrefix(k, convPrefix)
	i := strings.Index(rest, ":msg:")
	if i <= 0 {
		return "", 0, false
	}
	pair = rest[:i]
	tsPart := rest[i+len(":msg:"):]
	dash := strings.IndexByte(tsPart, '-')
	if dash <= 0 {
		return "", 0, false
	}
	n, err := strconv.ParseInt(tsPart[:dash], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return pair, n, true
}

// GetViolation returns the persisted violation record for a user, or nil
// when the user has no moderation history.
func GetViolation(userID string) (*models.ViolationRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(violationPrefix + userID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()
	var rec models.ViolationRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("invalid stored violation record: %w", err)
	}
	return &rec, nil
}

// SaveViolation writes a violation record synchronously. Callers are
// responsible for per-user serialization (see moderation.Ledger).
func SaveViolation(rec models.ViolationRecord) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := db.Set([]byte(violationPrefix+rec.UserID), data, pebble.Sync); err != nil {
		logger.Error("save_violation_failed", "user", rec.UserID, "error", err)
		return err
	}
	return nil
}

// ListViolations returns every stored violation record. Used by the
// moderation sweep to refresh gauges; records are never deleted.
func ListViolations() ([]models.ViolationRecord, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte(violationPrefix)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []models.ViolationRecord
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var rec models.ViolationRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("invalid stored violation record at %s: %w", iter.Key(), err)
		}
		out = append(out, rec)
	}
	return out, iter.Error()
}
