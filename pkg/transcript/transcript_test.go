package transcript

import (
	"strings"
	"testing"
)

type recorder struct {
	updates []Update
	last    []Message
}

func (r *recorder) on(u Update, m []Message) {
	r.updates = append(r.updates, u)
	r.last = m
}

func TestDeltasMergeIntoOneMessage(t *testing.T) {
	rec := &recorder{}
	r := New(rec.on)

	r.AddAssistant("Hello")
	r.AddAssistant(", I am")
	r.AddAssistant(" Bella.")

	msgs := r.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Text != "Hello, I am Bella." || msgs[0].Role != RoleAssistant {
		t.Errorf("message = %+v", msgs[0])
	}
	if len(rec.updates) != 3 {
		t.Fatalf("got %d updates, want 3", len(rec.updates))
	}
	if u := rec.updates[2]; u.Text != "Hello, I am Bella." || u.IsUser || u.IsFinal {
		t.Errorf("last update = %+v", u)
	}
}

func TestInterleavedRolesWithinTurn(t *testing.T) {
	r := New(nil)

	r.AddUser("I want")
	r.AddAssistant("Sure")
	r.AddUser(" a table")

	msgs := r.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	// The user accumulator keeps growing across the interleave.
	if msgs[2].Text != "I want a table" {
		t.Errorf("third message = %q, want %q", msgs[2].Text, "I want a table")
	}
}

func TestCompleteTurn(t *testing.T) {
	rec := &recorder{}
	r := New(rec.on)

	r.AddUser("Book for two")
	r.CompleteTurn()

	final := rec.updates[len(rec.updates)-1]
	if final != (Update{IsFinal: true}) {
		t.Errorf("final update = %+v", final)
	}
	if n := len(r.Messages()); n != 1 {
		t.Fatalf("CompleteTurn created a message: %d", n)
	}

	// Same role after a turn boundary starts a new entry.
	r.AddUser("Tomorrow")
	msgs := r.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].Text != "Tomorrow" {
		t.Errorf("second message = %q", msgs[1].Text)
	}
	if msgs[0].ID == msgs[1].ID {
		t.Error("messages share an id")
	}
}

func TestOneTrailingMessagePerRolePerTurn(t *testing.T) {
	r := New(nil)
	deltas := []string{"a", "bb", "", "ccc", "d"}

	for turn := 0; turn < 3; turn++ {
		for _, d := range deltas {
			r.AddAssistant(d)
		}
		r.CompleteTurn()
	}

	msgs := r.Messages()
	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	want := strings.Join(deltas, "")
	for i, m := range msgs {
		if m.Text != want {
			t.Errorf("message %d = %q, want %q", i, m.Text, want)
		}
	}
}

func TestEmptyDeltaIgnored(t *testing.T) {
	rec := &recorder{}
	r := New(rec.on)
	r.AddUser("")
	if len(rec.updates) != 0 || len(r.Messages()) != 0 {
		t.Error("empty delta produced output")
	}
}

func TestResetClearsAccumulators(t *testing.T) {
	r := New(nil)
	r.AddAssistant("half a sen")
	r.Reset()
	r.AddAssistant("New")

	msgs := r.Messages()
	if len(msgs) != 2 || msgs[1].Text != "New" {
		t.Errorf("messages after reset = %+v", msgs)
	}
}

func TestMessagesReturnsCopy(t *testing.T) {
	r := New(nil)
	r.AddUser("hi")
	msgs := r.Messages()
	msgs[0].Text = "changed"
	if r.Messages()[0].Text != "hi" {
		t.Error("Messages exposed internal state")
	}
}
