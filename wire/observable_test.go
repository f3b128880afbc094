package wire

import "testing"

func TestJustEmptyErr(t *testing.T) {
	obs := &recordingObserver{}
	Just("v").Subscribe(obs)
	if len(obs.next) != 1 || obs.next[0] != "v" || !obs.completed {
		t.Fatalf("Just: %+v", obs)
	}

	obs = &recordingObserver{}
	Empty().Subscribe(obs)
	if len(obs.next) != 0 || !obs.completed {
		t.Fatalf("Empty: %+v", obs)
	}

	obs = &recordingObserver{}
	Err(errBoom{}).Subscribe(obs)
	if obs.err != (errBoom{}) || obs.completed {
		t.Fatalf("Err: %+v", obs)
	}
}
