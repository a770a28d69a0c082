package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestFromContext_Defaults(t *testing.T) {
	p := FromContext(newContext("/"))
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := FromContext(newContext("/?limit=5&offset=10"))
	if p.Limit != 5 || p.Offset != 10 {
		t.Errorf("expected 5/10, got %d/%d", p.Limit, p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	p := FromContext(newContext("/?limit=1000"))
	if p.Limit != MaxLimit {
		t.Errorf("expected max limit %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_NegativeOffset(t *testing.T) {
	p := FromContext(newContext("/?offset=-3"))
	if p.Offset != 0 {
		t.Errorf("expected offset 0, got %d", p.Offset)
	}
}

func TestFromContextWithDefault(t *testing.T) {
	tests := []struct {
		target string
		def    int
		want   int
	}{
		{"/", 10, 10},
		{"/?limit=3", 10, 3},
		{"/?limit=abc", 10, 10},
		{"/", 0, DefaultLimit},
		{"/", 500, DefaultLimit},
	}
	for _, tt := range tests {
		if got := FromContextWithDefault(newContext(tt.target), tt.def).Limit; got != tt.want {
			t.Errorf("%s def=%d: expected %d, got %d", tt.target, tt.def, tt.want, got)
		}
	}
}

func TestNewResponse(t *testing.T) {
	resp := NewResponse([]string{"a", "b"}, 10, 2, 0)
	if resp.Total != 10 || !resp.HasMore {
		t.Errorf("unexpected response: %+v", resp)
	}

	last := NewResponse([]string{"j"}, 10, 2, 9)
	if last.HasMore {
		t.Error("expected HasMore=false on last page")
	}
}

func TestPage(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	tests := []struct {
		p    Params
		want []int
	}{
		{Params{Limit: 2, Offset: 0}, []int{1, 2}},
		{Params{Limit: 2, Offset: 4}, []int{5}},
		{Params{Limit: 2, Offset: 5}, []int{}},
		{Params{Limit: 10, Offset: 1}, []int{2, 3, 4, 5}},
	}
	for _, tt := range tests {
		got := Page(items, tt.p)
		if len(got) != len(tt.want) {
			t.Fatalf("Page(%+v) = %v, want %v", tt.p, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Page(%+v) = %v, want %v", tt.p, got, tt.want)
			}
		}
	}
}

func TestParams_HasNext(t *testing.T) {
	p := Params{Limit: 10, Offset: 0}
	if !p.HasNext(11) {
		t.Error("expected next page for total 11")
	}
	if p.HasNext(10) {
		t.Error("expected no next page for total 10")
	}
}
