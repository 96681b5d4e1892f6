package session

import (
	"context"
	"fmt"
	"testing"

	"pgregory.net/rapid"
)

func TestMachine_OnlySuccessfulEntriesAppend(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(nil)
		m := f.machine
		if _, err := m.BeginSession(); err != nil {
			rt.Fatalf("BeginSession returned error: %v", err)
		}

		outcomes := rapid.SliceOf(rapid.Bool()).Draw(rt, "outcomes")
		var want []string
		for i, ok := range outcomes {
			text := fmt.Sprintf("entry %d", i)
			if !ok {
				f.parser.fail[text] = true
			}
			_, err := m.SubmitTextEntry(context.Background(), text)
			if ok != (err == nil) {
				rt.Fatalf("entry %d: success=%v err=%v", i, ok, err)
			}
			if ok {
				want = append(want, text)
			}
			f.timers.fireAll()
		}

		got := m.Snapshot().Session.Exercises
		if len(got) != len(want) {
			rt.Fatalf("expected %d exercises, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i].Name != want[i] {
				rt.Fatalf("exercise %d: expected %q, got %q", i, want[i], got[i].Name)
			}
		}
	})
}
