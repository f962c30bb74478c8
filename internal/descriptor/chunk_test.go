package descriptor

import (
	"reflect"
	"testing"

	"github.com/vula-mesh/vula/internal/errs"
)

func TestChunkUnchunk(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		length int
		want   map[string]string
	}{
		{
			name:   "fits whole",
			fields: map[string]string{"a": "1", "b": "0123456789"},
			length: 10,
			want:   map[string]string{"a": "1", "b00": "012345", "b01": "6789"},
		},
		{
			name:   "tighter chunks",
			fields: map[string]string{"a": "1", "b": "0123456789"},
			length: 7,
			want:   map[string]string{"a": "1", "b00": "012", "b01": "345", "b02": "678", "b03": "9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Chunk(tt.fields, tt.length)
			if err != nil {
				t.Fatalf("Chunk: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Chunk(%v, %d) = %v, want %v", tt.fields, tt.length, got, tt.want)
			}
		})
	}
}

func TestChunkTooSmall(t *testing.T) {
	fields := map[string]string{"a": "1", "b": "0123456789"}
	_, err := Chunk(fields, 4)
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.DescriptorTooLarge {
		t.Fatalf("expected DescriptorTooLarge, got %v", err)
	}
}

func TestChunkUnchunkRoundTrip(t *testing.T) {
	fields := map[string]string{"a": "1", "b": "0123456789"}
	chunked, err := Chunk(fields, 5)
	if err != nil {
		t.Fatalf("Chunk: %v", err)
	}
	got := Unchunk(chunked)
	if !reflect.DeepEqual(got, fields) {
		t.Fatalf("round-trip mismatch: got %v, want %v", got, fields)
	}
}

func TestUnchunkIgnoresNonChunkedKeys(t *testing.T) {
	in := map[string]string{"a01": "23", "a00": "01", "a02": "45", "hostname": "alice.local."}
	want := map[string]string{"a": "012345", "hostname": "alice.local."}
	got := Unchunk(in)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Unchunk(%v) = %v, want %v", in, got, want)
	}
}
