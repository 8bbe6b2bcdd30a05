package logs

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type recorder struct {
	topic   string
	payload interface{}
}

func (r *recorder) Publish(topic string, payload interface{}) {
	r.topic = topic
	r.payload = payload
}

func TestWriterPublishesWithoutDB(t *testing.T) {
	rec := &recorder{}
	w := NewWriter(nil, rec, "logs")
	w.now = func() time.Time { return time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC) }

	w.Write(TypeAdminOp, LevelInfo, "admin", "10.0.0.1", "competition started", map[string]string{"material": "PLA"})

	if rec.topic != "logs" {
		t.Fatalf("topic = %q", rec.topic)
	}
	entry, ok := rec.payload.(LogEntry)
	if !ok {
		t.Fatalf("payload type = %T", rec.payload)
	}
	if entry.Actor != "admin" || entry.CreatedAt != "2026-03-14 09:30:00" {
		t.Errorf("entry = %+v", entry)
	}
	var details map[string]string
	if err := json.Unmarshal(entry.Details, &details); err != nil || details["material"] != "PLA" {
		t.Errorf("details = %s, %v", entry.Details, err)
	}
}

func TestNilWriterIsNoop(t *testing.T) {
	var w *Writer
	w.Write(TypeLogin, LevelInfo, "x", "", "ignored", nil)
}

func TestParseFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		query    string
		page     int
		pageSize int
	}{
		{"", 1, 50},
		{"page=3&pageSize=20", 3, 20},
		{"page=-1&pageSize=500", 1, 50},
		{"page=abc&pageSize=5", 1, 50},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest("GET", "/api/admin/logs?"+tt.query, nil)
		f := ParseFilter(c)
		if f.Page != tt.page || f.PageSize != tt.pageSize {
			t.Errorf("ParseFilter(%q) = page %d size %d, want %d %d", tt.query, f.Page, f.PageSize, tt.page, tt.pageSize)
		}
	}
}

func TestBuildQuery(t *testing.T) {
	query, countQuery, args := buildQuery(Filter{Type: "login", Search: "ann", Page: 2, PageSize: 20})

	if !strings.Contains(countQuery, "type = $1") || !strings.Contains(countQuery, "message ILIKE $2") {
		t.Errorf("countQuery = %s", countQuery)
	}
	if !strings.Contains(query, "LIMIT $3 OFFSET $4") {
		t.Errorf("query = %s", query)
	}
	if len(args) != 4 || args[1] != "%ann%" || args[2] != 20 || args[3] != 20 {
		t.Errorf("args = %v", args)
	}

	_, countQuery, args = buildQuery(Filter{Page: 1, PageSize: 50})
	if strings.Contains(countQuery, "AND") || len(args) != 2 || args[1] != 0 {
		t.Errorf("unfiltered countQuery = %s args = %v", countQuery, args)
	}
}
