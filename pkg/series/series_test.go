package series

import "testing"

func TestColorForIsDeterministic(t *testing.T) {
	if ColorFor(7) != ColorFor(7) {
		t.Fatal("expected the same color for the same code")
	}
}

func TestColorForCyclesThroughPalette(t *testing.T) {
	n := len(palette)

	if ColorFor(1) != palette[0] {
		t.Fatalf("expected code 1 to map to the first palette color")
	}
	if ColorFor(1) != ColorFor(1+n) {
		t.Fatalf("expected colors to repeat after %d codes", n)
	}
	if ColorFor(1) == ColorFor(2) {
		t.Fatal("expected adjacent codes to get different colors")
	}
}
