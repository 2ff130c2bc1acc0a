package ml

import "testing"

func TestStratifiedSplitProportions(t *testing.T) {
	// 10 samples of class 0, 5 of class 1.
	y := make([]int, 15)
	for i := 10; i < 15; i++ {
		y[i] = 1
	}

	train, test := StratifiedSplit(y, 0.2, 42)

	if len(train)+len(test) != len(y) {
		t.Fatalf("split covers %d samples, want %d", len(train)+len(test), len(y))
	}

	counts := func(idx []int) (c0, c1 int) {
		for _, i := range idx {
			if y[i] == 0 {
				c0++
			} else {
				c1++
			}
		}
		return
	}

	testC0, testC1 := counts(test)
	if testC0 != 2 {
		t.Errorf("test samples of class 0 = %d, want 2", testC0)
	}
	if testC1 != 1 {
		t.Errorf("test samples of class 1 = %d, want 1", testC1)
	}

	seen := make(map[int]bool)
	for _, i := range append(append([]int(nil), train...), test...) {
		if seen[i] {
			t.Fatalf("index %d appears in both splits", i)
		}
		seen[i] = true
	}
}

func TestStratifiedSplitDeterministic(t *testing.T) {
	y := []int{0, 0, 0, 1, 1, 1, 2, 2, 2, 0, 1, 2}

	train1, test1 := StratifiedSplit(y, 0.25, 7)
	train2, test2 := StratifiedSplit(y, 0.25, 7)

	if len(train1) != len(train2) || len(test1) != len(test2) {
		t.Fatal("repeated splits differ in size")
	}
	for i := range train1 {
		if train1[i] != train2[i] {
			t.Fatalf("train[%d] = %d vs %d for same seed", i, train1[i], train2[i])
		}
	}
	for i := range test1 {
		if test1[i] != test2[i] {
			t.Fatalf("test[%d] = %d vs %d for same seed", i, test1[i], test2[i])
		}
	}
}

func TestStratifiedSplitTinyClassStaysInTrain(t *testing.T) {
	y := []int{0, 0, 0, 0, 0, 1}
	train, test := StratifiedSplit(y, 0.2, 1)

	for _, i := range test {
		if y[i] == 1 {
			t.Fatal("singleton class leaked into the test split")
		}
	}
	found := false
	for _, i := range train {
		if y[i] == 1 {
			found = true
		}
	}
	if !found {
		t.Fatal("singleton class missing from the training split")
	}
}
