package queue

import (
	"sort"
	"strings"
	"time"
)

// Action kinds. The set is closed: the replayer dispatches on it
// exhaustively and rejects anything else.
const (
	KindRecordWear = "record-wear"
	KindRecordWash = "record-wash"
)

// Action is a pending mutation awaiting submission to the server.
// The JSON shape is the persisted wire format and must stay stable
// across restarts of the agent.
type Action struct {
	Type    string  `json:"type"`
	Payload Payload `json:"payload"`
}

// Payload carries the mutation arguments. Date is captured at enqueue
// time so that a multi-day offline period does not drift the day the
// user actually pressed the button.
type Payload struct {
	ClothesIDs []string `json:"clothesIds"`
	QueuedAt   int64    `json:"queuedAt"`
	Date       string   `json:"date,omitempty"`
}

// NewAction builds an action stamped with the current time. When date
// is empty the wear/wash applies to today, captured now rather than at
// replay time.
func NewAction(kind string, clothesIDs []string, date string) Action {
	now := time.Now()
	if date == "" {
		date = now.Format("2006-01-02")
	}
	return Action{
		Type: kind,
		Payload: Payload{
			ClothesIDs: clothesIDs,
			QueuedAt:   now.UnixMilli(),
			Date:       date,
		},
	}
}

// Valid reports whether the action kind is one the replayer knows.
func (a Action) Valid() bool {
	return a.Type == KindRecordWear || a.Type == KindRecordWash
}

// Key returns the dedup identity of the action: kind plus the sorted
// target set. Two actions with equal keys describe the same intent and
// only the most recent one should survive in the queue.
func (a Action) Key() string {
	ids := make([]string, len(a.Payload.ClothesIDs))
	copy(ids, a.Payload.ClothesIDs)
	sort.Strings(ids)
	return a.Type + "|" + strings.Join(ids, ",")
}
