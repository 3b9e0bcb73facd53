package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestAppendAndReadBack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "economy")

	entries := []Entry{
		{UserID: "u1", Kind: "ORDER_SERVED", Amount: 18, Metadata: map[string]any{"recipe": "pizza"}},
		{UserID: "u1", Kind: "ORDER_TIMEOUT", Amount: -8},
	}
	for _, e := range entries {
		if err := w.Append(e); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, "economy-*.jsonl.zst"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one journal file, got %v (err=%v)", matches, err)
	}

	f, err := os.Open(matches[0])
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer dec.Close()

	var read []Entry
	sc := bufio.NewScanner(dec.IOReadCloser())
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("unmarshal line %q: %v", sc.Text(), err)
		}
		read = append(read, e)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(read) != 2 {
		t.Fatalf("read %d entries, want 2", len(read))
	}
	if read[0].Kind != "ORDER_SERVED" || read[0].Amount != 18 || read[0].Time == "" {
		t.Fatalf("first entry mismatch: %+v", read[0])
	}
	if read[1].Kind != "ORDER_TIMEOUT" || read[1].Amount != -8 {
		t.Fatalf("second entry mismatch: %+v", read[1])
	}
}
