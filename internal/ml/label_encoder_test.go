package ml

import (
	"errors"
	"testing"
)

func TestFitLabelEncoderSortsUnique(t *testing.T) {
	enc, err := FitLabelEncoder([]string{"nurse", "engineer", "teacher", "engineer", "nurse"})
	if err != nil {
		t.Fatalf("FitLabelEncoder: %v", err)
	}

	want := []string{"engineer", "nurse", "teacher"}
	if len(enc.Classes) != len(want) {
		t.Fatalf("classes = %v, want %v", enc.Classes, want)
	}
	for i, c := range want {
		if enc.Classes[i] != c {
			t.Errorf("classes[%d] = %q, want %q", i, enc.Classes[i], c)
		}
	}
}

func TestFitLabelEncoderRejectsSingleClass(t *testing.T) {
	_, err := FitLabelEncoder([]string{"nurse", "nurse", "nurse"})
	if !errors.Is(err, ErrInsufficientClasses) {
		t.Fatalf("err = %v, want ErrInsufficientClasses", err)
	}
}

func TestLabelEncoderRoundTrip(t *testing.T) {
	enc, err := FitLabelEncoder([]string{"b", "a", "c"})
	if err != nil {
		t.Fatalf("FitLabelEncoder: %v", err)
	}

	for i, class := range enc.Classes {
		idx, err := enc.Transform(class)
		if err != nil {
			t.Fatalf("Transform(%q): %v", class, err)
		}
		if idx != i {
			t.Errorf("Transform(%q) = %d, want %d", class, idx, i)
		}
		if got := enc.Inverse(idx); got != class {
			t.Errorf("Inverse(%d) = %q, want %q", idx, got, class)
		}
	}
}

func TestLabelEncoderUnknownLabel(t *testing.T) {
	enc, _ := FitLabelEncoder([]string{"a", "b"})
	if _, err := enc.Transform("z"); err == nil {
		t.Fatal("Transform of unknown label succeeded")
	}
}
