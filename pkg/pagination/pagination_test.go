package pagination_test

import (
	"net/url"
	"slices"
	"testing"

	"github.com/JaimeStill/docassist/pkg/pagination"
	"github.com/JaimeStill/docassist/pkg/query"
)

func defaultConfig() pagination.Config {
	return pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PAGE_SIZE", "50")

	cfg := pagination.Config{}
	if err := cfg.Finalize(&pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_SIZE"}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.DefaultPageSize != 50 || cfg.MaxPageSize != 100 {
		t.Errorf("got default=%d max=%d", cfg.DefaultPageSize, cfg.MaxPageSize)
	}

	bad := pagination.Config{DefaultPageSize: 200, MaxPageSize: 100}
	if err := bad.Finalize(nil); err == nil {
		t.Error("default exceeding max should fail validation")
	}
}

func TestPageRequestFromQuery(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantPage   int
		wantSize   int
		wantSearch string
		wantSort   []query.SortField
		wantOffset int
	}{
		{"defaults", "", 1, 20, "", nil, 0},
		{"explicit", "page=3&page_size=10", 3, 10, "", nil, 20},
		{"clamped size", "page_size=500", 1, 100, "", nil, 0},
		{"negative page", "page=-2", 1, 20, "", nil, 0},
		{"search trimmed", "search=+anemia+", 1, 20, "anemia", nil, 0},
		{"descending sort", "sort=-createdAt", 1, 20, "", []query.SortField{{Field: "createdAt", Descending: true}}, 0},
		{"ascending sort", "sort=mode", 1, 20, "", []query.SortField{{Field: "mode"}}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, _ := url.ParseQuery(tt.query)
			req := pagination.PageRequestFromQuery(values, defaultConfig())

			if req.Page != tt.wantPage || req.PageSize != tt.wantSize {
				t.Errorf("page=%d size=%d, want %d %d", req.Page, req.PageSize, tt.wantPage, tt.wantSize)
			}
			if got := ""; req.Search != nil {
				got = *req.Search
				if got != tt.wantSearch {
					t.Errorf("search: got %q, want %q", got, tt.wantSearch)
				}
			} else if tt.wantSearch != "" {
				t.Errorf("search: got nil, want %q", tt.wantSearch)
			}
			if !slices.Equal(req.Sort, tt.wantSort) {
				t.Errorf("sort: got %+v, want %+v", req.Sort, tt.wantSort)
			}
			if req.Offset() != tt.wantOffset {
				t.Errorf("offset: got %d, want %d", req.Offset(), tt.wantOffset)
			}
		})
	}
}

func TestNewPageResult(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"empty", 0, 20, 1},
		{"exact", 40, 20, 2},
		{"remainder", 41, 20, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := pagination.NewPageResult[string](nil, tt.total, 1, tt.pageSize)
			if r.TotalPages != tt.wantPages {
				t.Errorf("total pages: got %d, want %d", r.TotalPages, tt.wantPages)
			}
			if r.Data == nil {
				t.Error("nil data should become an empty slice")
			}
		})
	}
}
