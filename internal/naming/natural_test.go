package naming

import (
	"slices"
	"testing"
)

func TestCompareNaturalNumericRuns(t *testing.T) {
	cases := []struct {
		a, b string
	}{
		{"img2.jpg", "img10.jpg"},
		{"cosfan.cc_002.jpg", "cosfan.cc_010.jpg"},
		{"v9.mp4", "v11.mp4"},
		{"a1b2.jpg", "a1b10.jpg"},
	}
	for _, tc := range cases {
		if !NaturalLess(tc.a, tc.b) {
			t.Errorf("NaturalLess(%q, %q) = false, want true", tc.a, tc.b)
		}
		if NaturalLess(tc.b, tc.a) {
			t.Errorf("NaturalLess(%q, %q) = true, want false", tc.b, tc.a)
		}
	}
}

func TestCompareNaturalDirectoryFirst(t *testing.T) {
	if !NaturalLess("a/img99.jpg", "b/img1.jpg") {
		t.Error("expected directory order to dominate file order")
	}
	if CompareNatural("x/y.jpg", "x/y.jpg") != 0 {
		t.Error("identical paths should compare equal")
	}
	if NaturalLess("img1.jpg", "img1.jpg") {
		t.Error("NaturalLess must be irreflexive")
	}
}

func TestSortNatural(t *testing.T) {
	paths := []string{
		"set/img10.jpg",
		"set/img2.jpg",
		"cover.jpg",
		"set/img1.jpg",
	}
	SortNatural(paths)
	want := []string{
		"cover.jpg",
		"set/img1.jpg",
		"set/img2.jpg",
		"set/img10.jpg",
	}
	if !slices.Equal(paths, want) {
		t.Fatalf("SortNatural = %v, want %v", paths, want)
	}
}

func TestSortNaturalDeterministicOnNumericTies(t *testing.T) {
	first := []string{"img2.jpg", "img02.jpg"}
	second := []string{"img02.jpg", "img2.jpg"}
	SortNatural(first)
	SortNatural(second)
	if !slices.Equal(first, second) {
		t.Fatalf("tie ordering depends on input order: %v vs %v", first, second)
	}
	if first[0] != "img02.jpg" {
		t.Fatalf("expected zero-padded name first, got %v", first)
	}
}
