package db

import (
	"slices"
	"testing"
)

func TestEncodeDecodeVector(t *testing.T) {
	v := []float32{1, -2.5, 0.125}
	enc := EncodeVector(v)
	if len(enc) != 12 {
		t.Fatalf("expected 12 bytes, got %d", len(enc))
	}
	if got := DecodeVector(enc); !slices.Equal(got, v) {
		t.Errorf("DecodeVector() = %v, want %v", got, v)
	}
	if got := DecodeVector(enc[:7]); len(got) != 1 {
		t.Errorf("partial blob decoded to %d values", len(got))
	}
}
