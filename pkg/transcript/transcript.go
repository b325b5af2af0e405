// Package transcript merges streamed transcription deltas into a stable
// chat log: one growing message per speaker per turn.
package transcript

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the chat log.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Update is emitted after every change. A final update carries no text and
// marks the end of a turn.
type Update struct {
	Text    string `json:"text"`
	IsUser  bool   `json:"isUser"`
	IsFinal bool   `json:"isFinal"`
}

// Reconciler owns the per-role accumulators and the message log.
type Reconciler struct {
	mu        sync.Mutex
	user      string
	assistant string
	turn      uint64
	lastTurn  uint64
	messages  []Message

	now    func() time.Time
	notify func(Update, []Message)
}

// New creates an empty reconciler. onUpdate, if non-nil, is called after
// each change with the update and a snapshot of the log.
func New(onUpdate func(Update, []Message)) *Reconciler {
	return &Reconciler{
		now:    time.Now,
		notify: onUpdate,
	}
}

// AddUser appends a user transcription delta.
func (r *Reconciler) AddUser(delta string) {
	r.add(RoleUser, delta)
}

// AddAssistant appends an assistant transcription delta.
func (r *Reconciler) AddAssistant(delta string) {
	r.add(RoleAssistant, delta)
}

func (r *Reconciler) add(role Role, delta string) {
	if delta == "" {
		return
	}

	r.mu.Lock()
	var text string
	if role == RoleUser {
		r.user += delta
		text = r.user
	} else {
		r.assistant += delta
		text = r.assistant
	}

	n := len(r.messages)
	if n > 0 && r.messages[n-1].Role == role && r.lastTurn == r.turn {
		r.messages[n-1].Text = text
	} else {
		r.messages = append(r.messages, Message{
			ID:        uuid.NewString(),
			Role:      role,
			Text:      text,
			Timestamp: r.now(),
		})
		r.lastTurn = r.turn
	}
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.emit(Update{Text: text, IsUser: role == RoleUser}, snapshot)
}

// CompleteTurn resets both accumulators. The next delta starts a new
// message even if the same role spoke last.
func (r *Reconciler) CompleteTurn() {
	r.mu.Lock()
	r.user = ""
	r.assistant = ""
	r.turn++
	snapshot := r.snapshotLocked()
	r.mu.Unlock()

	r.emit(Update{IsFinal: true}, snapshot)
}

// Reset clears the accumulators without touching the log.
func (r *Reconciler) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = ""
	r.assistant = ""
	r.turn++
}

// Messages returns a copy of the log.
func (r *Reconciler) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Reconciler) snapshotLocked() []Message {
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

func (r *Reconciler) emit(u Update, messages []Message) {
	if r.notify != nil {
		r.notify(u, messages)
	}
}
