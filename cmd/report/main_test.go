package main

import "testing"

func TestMapFormat(t *testing.T) {
	tests := []struct {
		target   string
		fallback string
		want     string
	}{
		{"map.png", "svg", "png"},
		{"out/AL-2013.SVG", "png", "svg"},
		{"map.pdf", "png", "pdf"},
		{"map.jpeg", "png", "png"},
		{"map", "svg", "svg"},
	}

	for _, tt := range tests {
		if got := mapFormat(tt.target, tt.fallback); got != tt.want {
			t.Errorf("mapFormat(%q, %q) = %q, want %q", tt.target, tt.fallback, got, tt.want)
		}
	}
}
