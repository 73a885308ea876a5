package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestRegistryDispatch(t *testing.T) {
	var got []string
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "Quit", Handler: func() { got = append(got, "quit") }})
	r.AddView("chat", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "Back", Handler: func() { got = append(got, "back") }})
	r.AddView("roster", &Action{Key: tcell.KeyEnter, Description: "Open", Handler: func() { got = append(got, "open") }})

	r.HandleEvent("roster", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone))
	r.HandleEvent("roster", tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	if r.HandleEvent("chat", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Error("unbound key reported as handled")
	}

	want := []string{"quit", "back", "open"}
	if len(got) != len(want) {
		t.Fatalf("handled = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("handled[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistryHints(t *testing.T) {
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: '?', Description: "Help"})
	r.AddGlobal(&Action{Key: tcell.KeyCtrlC, Description: "Quit", Hidden: true})
	r.AddView("roster", &Action{Key: tcell.KeyEnter, Description: "Open"})
	r.AddView("roster", &Action{Key: tcell.KeyRune, Rune: 'f', Label: "f", Description: "Filter"})

	hints := r.Hints("roster")
	if len(hints) != 3 {
		t.Fatalf("hints = %+v", hints)
	}
	if hints[0].Key != "Enter" || hints[1].Key != "f" || hints[2].Key != "?" {
		t.Errorf("hint order = %+v", hints)
	}
}
