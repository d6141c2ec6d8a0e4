package symbolize

import (
	"os"
	"testing"
)

func TestReadAt(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "readat")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString("hello world"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		bufLen  int
		offset  int64
		wantN   int
		wantErr bool
	}{
		{name: "full read", bufLen: 5, offset: 0, wantN: 5},
		{name: "read at offset", bufLen: 5, offset: 6, wantN: 5},
		{name: "short read at EOF", bufLen: 20, offset: 6, wantN: 5},
		{name: "at EOF exactly", bufLen: 4, offset: 11, wantN: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.bufLen)
			n, err := readAt(f, buf, tt.offset)
			if (err != nil) != tt.wantErr {
				t.Fatalf("readAt() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.wantN {
				t.Errorf("readAt() n = %d, want %d", n, tt.wantN)
			}
		})
	}
}

func TestReadAtExact(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "readatexact")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString("0123456789"); err != nil {
		t.Fatal(err)
	}

	if !readAtExact(f, make([]byte, 10), 0) {
		t.Error("readAtExact() = false for a fully satisfiable read, want true")
	}
	if readAtExact(f, make([]byte, 5), 8) {
		t.Error("readAtExact() = true for a short read at EOF, want false")
	}
	if readAtExact(f, make([]byte, 1), 100) {
		t.Error("readAtExact() = true reading past EOF, want false")
	}
}

func TestScopedFD_ReleaseIsIdempotent(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "scopedfd")
	if err != nil {
		t.Fatal(err)
	}
	sfd := newScopedFD(f)
	sfd.release()
	sfd.release() // must not panic or double-close

	var nilFD *scopedFD
	nilFD.release() // must not panic on a nil receiver
}
