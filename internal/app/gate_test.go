package app

import "testing"

func TestChangeGate(t *testing.T) {
	var g changeGate

	steps := []struct {
		data []byte
		want bool
	}{
		{[]byte{}, true},
		{[]byte{}, false},
		{[]byte{1, 2, 3}, true},
		{[]byte{1, 2, 3}, false},
		{[]byte{1, 2, 4}, true},
		{[]byte{1, 2}, true},
		{[]byte{1, 2}, false},
	}
	for i, s := range steps {
		if got := g.changed(s.data); got != s.want {
			t.Errorf("step %d: changed(%v) = %v, want %v", i, s.data, got, s.want)
		}
	}
}

func TestChangeGate_CopiesSnapshot(t *testing.T) {
	var g changeGate
	data := []byte{1, 2, 3}
	g.changed(data)

	data[0] = 9
	if !g.changed(data) {
		t.Error("mutating the caller's buffer changed the stored snapshot")
	}
}

func TestChangeGate_Reset(t *testing.T) {
	var g changeGate
	g.changed([]byte{1, 2, 3})
	g.reset()
	if !g.changed([]byte{1, 2, 3}) {
		t.Error("first frame after reset did not pass")
	}
}
