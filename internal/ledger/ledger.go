// Package ledger keeps the per-peer ordered history of confirmed messages and
// the holding area for optimistically-sent messages awaiting acknowledgement.
package ledger

import (
	"sync"

	"nexuschat/internal/protocol"
)

// Direction marks which side of the conversation produced a record.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Record is one confirmed message in a peer's thread.
type Record struct {
	PeerID    int64
	Direction Direction
	Payload   protocol.MessagePayload
}

type pendingEntry struct {
	payload protocol.MessagePayload
}

// Ledger owns the confirmed history and the pending-outbound map. A pending
// entry for a (peer, serial) pair lives in exactly one of the two at any time.
type Ledger struct {
	mu      sync.Mutex
	history map[int64][]Record
	pending map[int64]map[string]pendingEntry
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		history: make(map[int64][]Record),
		pending: make(map[int64]map[string]pendingEntry),
	}
}

// threadID files self-addressed traffic under the sentinel rather than the
// real id so a note-to-self does not pollute a peer's thread.
func threadID(from, to int64) int64 {
	if from == to {
		return protocol.SelfPeerID
	}
	return to
}

// RecordDelivered appends a confirmed message to a peer's thread. Pass
// from == to for self-addressed traffic.
func (l *Ledger) RecordDelivered(from, to int64, direction Direction, payload protocol.MessagePayload) {
	peer := threadID(from, to)
	if direction == Received && peer != protocol.SelfPeerID {
		peer = from
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.history[peer] = append(l.history[peer], Record{
		PeerID:    peer,
		Direction: direction,
		Payload:   payload,
	})
}

// BeginPending registers an optimistically-sent message under its serial.
func (l *Ledger) BeginPending(peerID int64, serial string, payload protocol.MessagePayload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.pending[peerID]
	if entries == nil {
		entries = make(map[string]pendingEntry)
		l.pending[peerID] = entries
	}
	entries[serial] = pendingEntry{payload: payload}
}

// ConfirmPending moves a pending entry into the confirmed history as Sent.
// Confirming an unknown serial is a no-op, so a duplicate acknowledgement
// cannot duplicate the history entry.
func (l *Ledger) ConfirmPending(peerID int64, serial string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := l.pending[peerID]
	entry, ok := entries[serial]
	if !ok {
		return false
	}
	delete(entries, serial)

	l.history[peerID] = append(l.history[peerID], Record{
		PeerID:    peerID,
		Direction: Sent,
		Payload:   entry.payload,
	})
	return true
}

// DropPending discards a pending entry without recording it. Used when the
// send failed or timed out.
func (l *Ledger) DropPending(peerID int64, serial string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	entries := l.pending[peerID]
	if _, ok := entries[serial]; !ok {
		return false
	}
	delete(entries, serial)
	return true
}

// History returns a copy of a peer's confirmed thread in order.
func (l *Ledger) History(peerID int64) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	records := l.history[peerID]
	out := make([]Record, len(records))
	copy(out, records)
	return out
}

// PendingCount reports how many sends for a peer still await acknowledgement.
func (l *Ledger) PendingCount(peerID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending[peerID])
}

// HasPending reports whether a specific serial is still awaiting its ack.
func (l *Ledger) HasPending(peerID int64, serial string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.pending[peerID][serial]
	return ok
}

// Snapshot returns every thread keyed by peer id, for publishing to the UI.
func (l *Ledger) Snapshot() map[int64][]Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[int64][]Record, len(l.history))
	for peer, records := range l.history {
		thread := make([]Record, len(records))
		copy(thread, records)
		out[peer] = thread
	}
	return out
}

// Clear drops all history and pending entries. Used on logout.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.history = make(map[int64][]Record)
	l.pending = make(map[int64]map[string]pendingEntry)
}
