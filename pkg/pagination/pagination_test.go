package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestFromContext_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=50&offset=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?offset=-5", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	p := FromContext(c)

	if p.Offset != 0 {
		t.Errorf("expected offset 0 for negative input, got %d", p.Offset)
	}
}

func TestFromContext_Garbage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?limit=abc&offset=1x", nil)
	p := FromContext(e.NewContext(req, httptest.NewRecorder()))

	if p.Limit != DefaultLimit || p.Offset != 0 {
		t.Errorf("expected defaults for unparsable input, got %+v", p)
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name     string
		items    []string
		total    int
		params   Params
		hasMore  bool
		nextOffs int
	}{
		{"first of several", []string{"a", "b", "c"}, 10, Params{Limit: 3}, true, 3},
		{"last page", []string{"a", "b", "c"}, 3, Params{Limit: 3}, false, 0},
		{"short middle page", []string{"d"}, 10, Params{Limit: 3, Offset: 3}, true, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pg := NewPage(tt.items, tt.total, tt.params)
			if pg.HasMore != tt.hasMore {
				t.Fatalf("expected has_more %v, got %v", tt.hasMore, pg.HasMore)
			}
			if tt.hasMore && (pg.NextOffset == nil || *pg.NextOffset != tt.nextOffs) {
				t.Errorf("expected next_offset %d, got %v", tt.nextOffs, pg.NextOffset)
			}
			if !tt.hasMore && pg.NextOffset != nil {
				t.Errorf("expected no next_offset, got %d", *pg.NextOffset)
			}
		})
	}
}

func TestNewPage_EmptyIsNotNull(t *testing.T) {
	pg := NewPage[int](nil, 0, Params{Limit: DefaultLimit})
	b, err := json.Marshal(pg)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", b)
	}
}
