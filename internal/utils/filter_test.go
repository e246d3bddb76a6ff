package utils

import (
	"reflect"
	"testing"
)

func TestFilterArray(t *testing.T) {
	got := FilterArray([]int{1, 2, 3, 4}, func(v int) bool { return v%2 == 0 })
	if !reflect.DeepEqual(got, []int{2, 4}) {
		t.Errorf("expected [2 4], got %v", got)
	}
}

func TestUnique(t *testing.T) {
	got := Unique([]int64{3, 1, 3, 2, 1})
	if !reflect.DeepEqual(got, []int64{3, 1, 2}) {
		t.Errorf("expected [3 1 2], got %v", got)
	}
}
