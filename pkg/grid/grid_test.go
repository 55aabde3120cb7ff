package grid

import (
	"slices"
	"testing"
)

func TestGetGridCoords(t *testing.T) {
	tests := []struct {
		index int
		cols  int
		wantX int
		wantY int
	}{
		{0, 64, 0, 0},
		{1, 64, 1, 0},
		{63, 64, 63, 0},
		{64, 64, 0, 1},
		{127, 64, 63, 1},
		{1023, 64, 63, 15},
		{0, 2, 0, 0},
		{1, 2, 1, 0},
		{2, 2, 0, 1},
		{5, 2, 1, 2},
	}

	for _, tc := range tests {
		gotX, gotY := GetGridCoords(tc.index, tc.cols)
		if gotX != tc.wantX || gotY != tc.wantY {
			t.Errorf("GetGridCoords(%d, %d) = (%d, %d); want (%d, %d)", tc.index, tc.cols, gotX, gotY, tc.wantX, tc.wantY)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		cols  int
		want  []string
	}{
		{"short", []string{"abc"}, 5, []string{"abc"}},
		{"exact", []string{"abcde"}, 5, []string{"abcde"}},
		{"split", []string{"abcdefg"}, 3, []string{"abc", "def", "g"}},
		{"empty kept", []string{"", "ab"}, 3, []string{"", "ab"}},
		{"runes", []string{"héllo"}, 2, []string{"hé", "ll", "o"}},
		{"no limit", []string{"abcdef"}, 0, []string{"abcdef"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Wrap(tt.lines, tt.cols); !slices.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTail(t *testing.T) {
	lines := []string{"a", "b", "c"}
	if got := Tail(lines, 2); !slices.Equal(got, []string{"b", "c"}) {
		t.Errorf("Tail 2: got %q", got)
	}
	if got := Tail(lines, 5); !slices.Equal(got, lines) {
		t.Errorf("Tail 5: got %q", got)
	}
	if got := Tail(lines, 0); got != nil {
		t.Errorf("Tail 0: got %q, want nil", got)
	}
}
