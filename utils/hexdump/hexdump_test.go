package hexdump

import (
	"strings"
	"testing"
)

func TestDump(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{
			name: "empty",
			in:   nil,
			want: "     0  1  2  3  4  5  6  7",
		},
		{
			name: "short row",
			in:   []byte("VA\x00\x03Eli"),
			want: "     0  1  2  3  4  5  6  7\n" +
				"  0  56 41 00 03 45 6c 69",
		},
		{
			name: "two rows",
			in:   []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9},
			want: "     0  1  2  3  4  5  6  7\n" +
				"  0  00 01 02 03 04 05 06 07\n" +
				"  8  08 09",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Dump(tt.in); got != tt.want {
				t.Errorf("Dump(%q) =\n%s\nwant:\n%s", tt.in, got, tt.want)
			}
		})
	}
}

func TestDumpWideOffsets(t *testing.T) {
	data := make([]byte, 130)
	out := Dump(data)

	wantLines := 1 + (len(data)+7)/8
	if got := strings.Count(out, "\n") + 1; got != wantLines {
		t.Fatalf("Dump produced %d lines, want %d", got, wantLines)
	}
	if want := "\n128  00 00"; !strings.Contains(out, want) {
		t.Errorf("Dump missing row %q in:\n%s", want, out)
	}
}
