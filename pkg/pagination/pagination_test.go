package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextFor(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		limit  int
		offset int
	}{
		{"defaults", "", DefaultLimit, 0},
		{"custom", "?limit=10&offset=30", 10, 30},
		{"max limit", "?limit=500", MaxLimit, 0},
		{"negative offset", "?offset=-5", DefaultLimit, 0},
		{"garbage", "?limit=abc&offset=xyz", DefaultLimit, 0},
		{"page", "?limit=10&page=3", 10, 20},
		{"offset wins over page", "?limit=10&offset=5&page=3", 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := FromContext(contextFor(tt.query))
			if p.Limit != tt.limit || p.Offset != tt.offset {
				t.Errorf("expected limit=%d offset=%d, got limit=%d offset=%d", tt.limit, tt.offset, p.Limit, p.Offset)
			}
		})
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 50, 20, 0)
	if resp.Total != 50 || resp.Limit != 20 || resp.Offset != 0 {
		t.Errorf("unexpected response %+v", resp)
	}
	if !resp.HasMore {
		t.Error("expected HasMore to be true")
	}
	if NewResponse(nil, 20, 20, 0).HasMore {
		t.Error("expected HasMore to be false on the last page")
	}
}

func TestParams_Navigation(t *testing.T) {
	p := Params{Limit: 10, Offset: 5}
	if p.NextOffset() != 15 {
		t.Errorf("expected next offset 15, got %d", p.NextOffset())
	}
	if p.PreviousOffset() != 0 {
		t.Errorf("expected previous offset clamped to 0, got %d", p.PreviousOffset())
	}
	if !p.HasPrevious() {
		t.Error("expected HasPrevious")
	}
	if p.HasNext(15) {
		t.Error("expected no next page at total 15")
	}
}

func TestLinks(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		total int
		rels  []string
	}{
		{"first page", Params{Limit: 10, Offset: 0}, 25, []string{"self", "next"}},
		{"middle page", Params{Limit: 10, Offset: 10}, 25, []string{"self", "next", "previous"}},
		{"last page", Params{Limit: 10, Offset: 20}, 25, []string{"self", "previous"}},
		{"no results", Params{Limit: 10, Offset: 0}, 0, []string{"self"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := tt.p.Links("/api/v1/analyses", tt.total)
			if len(links) != len(tt.rels) {
				t.Fatalf("expected %d links, got %d", len(tt.rels), len(links))
			}
			for i, rel := range tt.rels {
				if links[i].Relation != rel {
					t.Errorf("link %d: expected %q, got %q", i, rel, links[i].Relation)
				}
			}
		})
	}

	resp := NewResponse(nil, 25, 10, 10).WithLinks("/api/v1/analyses")
	if resp.Links[1].URL != "/api/v1/analyses?limit=10&offset=20" {
		t.Errorf("unexpected next link %q", resp.Links[1].URL)
	}
}
