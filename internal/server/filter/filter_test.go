package filter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lbmap/internal/server/filter"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
)

func fixtures() []services.Service {
	return []services.Service{
		{Name: "web", ConfigMode: services.ConfigModeHost, Predicate: "web.example.com", Containers: []services.Container{{ID: "w1", IP: "10.0.0.1"}, {ID: "w2", IP: "10.0.0.2"}}},
		{Name: "api", ConfigMode: services.ConfigModePath, Predicate: "/api", Cookie: "SRV", Containers: []services.Container{{ID: "a1", IP: "10.0.1.1"}}},
		{Name: "admin", ConfigMode: "", Predicate: "admin.example.com", Containers: []services.Container{}},
	}
}

func parse(t *testing.T, query string) filter.ServiceFilter {
	t.Helper()
	f, err := filter.ParseServiceFilter(httptest.NewRequest(http.MethodGet, "/services?"+query, nil))
	require.NoError(t, err)
	return f
}

func TestApply(t *testing.T) {
	tests := []struct {
		query string
		want  []string
		total int
	}{
		{"", []string{"admin", "api", "web"}, 3},
		{"name=api", []string{"api"}, 1},
		{"name_contains=AD", []string{"admin"}, 1},
		{"mode=host", []string{"admin", "web"}, 2},
		{"match=a*", []string{"admin", "api"}, 2},
		{"match=%2F%5E%28web%7CAPI%29%24%2F", []string{"api", "web"}, 2},
		{"mode=path", []string{"api"}, 1},
		{"sticky=true", []string{"api"}, 1},
		{"sticky=false", []string{"admin", "web"}, 2},
		{"container=w2", []string{"web"}, 1},
		{"container=10.0.1.1", []string{"api"}, 1},
		{"min_containers=1", []string{"api", "web"}, 2},
		{"max_containers=1", []string{"admin", "api"}, 2},
		{"sort=containers&order=desc", []string{"web", "api", "admin"}, 3},
		{"order=desc", []string{"web", "api", "admin"}, 3},
		{"limit=1&offset=1", []string{"api"}, 3},
		{"offset=10", []string{}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			page, total := parse(t, tt.query).Apply(fixtures())
			assert.Equal(t, tt.want, services.Names(page))
			assert.Equal(t, tt.total, total)
		})
	}
}

func TestParseRejectsBadValues(t *testing.T) {
	for _, query := range []string{
		"mode=weighted",
		"sort=age",
		"order=up",
		"sticky=maybe",
		"limit=-1",
		"offset=x",
		"match=%2F%5B%2F",
	} {
		t.Run(query, func(t *testing.T) {
			_, err := filter.ParseServiceFilter(httptest.NewRequest(http.MethodGet, "/services?"+query, nil))
			assert.True(t, errors.IsValidationError(err))
		})
	}
}
