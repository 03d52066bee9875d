package connectivity

import "testing"

func TestTransitionsNotifySubscribers(t *testing.T) {
	m := New(true)

	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })

	m.SetOnline(false)
	m.SetOnline(false) // repeated report, no transition
	m.SetOnline(true)

	want := []bool{false, true}
	if len(got) != len(want) {
		t.Fatalf("got %d notifications, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestIsOnlineReflectsLastReport(t *testing.T) {
	m := New(false)
	if m.IsOnline() {
		t.Error("expected initial offline state")
	}

	m.SetOnline(true)
	if !m.IsOnline() {
		t.Error("expected online after transition")
	}
}
