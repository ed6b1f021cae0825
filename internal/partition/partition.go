// Package partition persists the metadata a sequencer needs to resume after
// a process restart: which topic/partition it owns and where its position
// counter was when it last shut down.
package partition

import (
	"encoding/json"
	"fmt"
	"time"

	pebblestore "github.com/xieyihong/zeebe/internal/storage/pebble"
)

// Meta records a partition's identity and the watermark a new Sequencer
// should seed its position counter from.
type Meta struct {
	Topic           string `json:"topic"`
	Partition       uint32 `json:"partition"`
	InitialPosition int64  `json:"initialPosition"`
	CreatedAtMs     int64  `json:"createdAtMs"`
	UpdatedAtMs     int64  `json:"updatedAtMs"`
}

var metaPrefix = []byte("partmeta/")

func metaKey(topic string, part uint32) []byte {
	k := make([]byte, 0, len(metaPrefix)+len(topic)+8)
	k = append(k, metaPrefix...)
	k = append(k, topic...)
	k = append(k, '/')
	k = append(k, []byte(fmt.Sprintf("%d", part))...)
	return k
}

// Ensure creates a partition meta record if absent, returning the existing
// record unchanged if one is already there. Idempotent across restarts.
func Ensure(db *pebblestore.DB, topic string, part uint32) (Meta, error) {
	key := metaKey(topic, part)
	if b, err := db.Get(key); err == nil && len(b) > 0 {
		var m Meta
		if err := json.Unmarshal(b, &m); err == nil {
			return m, nil
		}
	}
	now := time.Now().UnixMilli()
	m := Meta{Topic: topic, Partition: part, InitialPosition: 1, CreatedAtMs: now, UpdatedAtMs: now}
	if err := put(db, key, m); err != nil {
		return Meta{}, err
	}
	return m, nil
}

// Advance records the new watermark for topic/part after a position range
// has been durably written, so the next process restart resumes from it.
func Advance(db *pebblestore.DB, topic string, part uint32, nextInitialPosition int64) error {
	key := metaKey(topic, part)
	m, err := Ensure(db, topic, part)
	if err != nil {
		return err
	}
	if nextInitialPosition <= m.InitialPosition {
		return nil
	}
	m.InitialPosition = nextInitialPosition
	m.UpdatedAtMs = time.Now().UnixMilli()
	return put(db, key, m)
}

func put(db *pebblestore.DB, key []byte, m Meta) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return db.Set(key, b)
}
