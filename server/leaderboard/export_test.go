package leaderboard

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"speedcad/server/participant"
)

func TestWriteXLSX(t *testing.T) {
	first := submitted(idA, "Ann Lee", 60, 90*time.Second)
	first.College = "NUDT"
	w := 102.0
	first.SubmittedWeight = &w
	second := submitted(idB, "Bob", 40.5, 0)
	second.TimeSubmitted = nil
	second.SubmittedWeight = nil

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, Rank([]participant.Participant{second, first})); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, h := range ExportHeaders {
		if rows[0][i] != h {
			t.Errorf("header %d = %q, want %q", i, rows[0][i], h)
		}
	}

	wantFirst := []string{"1", "Ann Lee", "NUDT", "60", "2026-03-14 09:01:30", "102"}
	for i, v := range wantFirst {
		if rows[1][i] != v {
			t.Errorf("row 1 col %d = %q, want %q", i, rows[1][i], v)
		}
	}
	if rows[2][0] != "2" || rows[2][4] != "-" || rows[2][5] != "-" {
		t.Errorf("row 2 = %v", rows[2])
	}
}
