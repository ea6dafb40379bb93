package core

import (
	"testing"

	"github.com/gogpu/wgpucore/hal"
)

func TestUTF8ByteToUTF16Table(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr bool
	}{
		{name: "ascii only", src: "fn main() {}"},
		{name: "two-byte code point", src: "café"},      // e9 is U+00E9, 2 bytes UTF-8, 1 UTF-16 unit
		{name: "three-byte code point", src: "中文"}, // 2 CJK chars, 3 bytes each, 1 UTF-16 unit each
		{name: "astral code point", src: "\U0001F600"},       // 4 bytes UTF-8, 2 UTF-16 units (surrogate pair)
		{name: "invalid utf8", src: "\xff\xfe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := utf8ByteToUTF16Table(tt.src)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(table) != len(tt.src)+1 {
				t.Fatalf("table length = %d, want %d", len(table), len(tt.src)+1)
			}
			if table[0] != 0 {
				t.Fatalf("table[0] = %d, want 0", table[0])
			}
		})
	}
}

func TestUTF8ByteToUTF16TableAstralRoundTrip(t *testing.T) {
	src := "x\U0001F600y"
	table, err := utf8ByteToUTF16Table(src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 'x' occupies byte 0, costs 1 unit.
	// the emoji occupies bytes 1-4 (4 bytes UTF-8), costs 2 units.
	// 'y' occupies byte 5, begins at unit offset 1+2=3.
	if table[1] != 1 {
		t.Fatalf("table[1] = %d, want 1", table[1])
	}
	if table[5] != 3 {
		t.Fatalf("table[5] = %d, want 3", table[5])
	}
	if table[6] != 4 {
		t.Fatalf("table[6] (end) = %d, want 4", table[6])
	}
}

func TestConvertDiagnosticsToUTF16(t *testing.T) {
	src := "x\U0001F600y"
	diags := []hal.Diagnostic{
		{LineNumber: 1, LinePos: 1, Offset: 0, Length: 1},
		{LineNumber: 1, LinePos: 2, Offset: 1, Length: 4},
		{LineNumber: 1, LinePos: 6, Offset: 5, Length: 1},
	}

	got, err := ConvertDiagnosticsToUTF16(src, diags)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct{ offset, length uint32 }{
		{0, 1},
		{1, 2},
		{3, 1},
	}
	for i, w := range want {
		if got[i].Offset != w.offset || got[i].Length != w.length {
			t.Errorf("diag[%d] = {offset:%d length:%d}, want {offset:%d length:%d}",
				i, got[i].Offset, got[i].Length, w.offset, w.length)
		}
	}
}

func TestConvertDiagnosticsToUTF16InvalidSource(t *testing.T) {
	_, err := ConvertDiagnosticsToUTF16("\xff\xfe", []hal.Diagnostic{{Offset: 0, Length: 1}})
	if err == nil {
		t.Fatal("expected error for invalid UTF-8 source")
	}
}

func TestCheckEnableDirectivesAllowed(t *testing.T) {
	src := "enable f16;\nfn main() {}"
	if _, err := checkEnableDirectives(src, []string{"f16"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckEnableDirectivesDisallowed(t *testing.T) {
	src := "enable f16;\nfn main() {}"
	diag, err := checkEnableDirectives(src, nil)
	if err == nil {
		t.Fatal("expected error for disallowed extension")
	}
	if diag.Severity != hal.SeverityError {
		t.Errorf("severity = %v, want SeverityError", diag.Severity)
	}
	if diag.LineNumber != 1 {
		t.Errorf("LineNumber = %d, want 1", diag.LineNumber)
	}
}
