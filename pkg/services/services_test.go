package services_test

import (
	"encoding/json"
	"testing"

	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceWireFormat(t *testing.T) {
	t.Run("json keys", func(t *testing.T) {
		svc := services.Service{
			Name:       "web",
			ConfigMode: services.ConfigModeHost,
			Predicate:  "web.example.com",
			Containers: []services.Container{{ID: "c1", IP: "10.0.0.1"}},
		}
		data, err := json.Marshal(svc)
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"serviceName":"web","configMode":"host","predicate":"web.example.com","containers":[{"id":"c1","ip":"10.0.0.1"}]}`,
			string(data))
	})

	t.Run("cookie present when sticky", func(t *testing.T) {
		data, err := json.Marshal(services.Service{Name: "api", Cookie: "SRV"})
		require.NoError(t, err)
		assert.Contains(t, string(data), `"cookie":"SRV"`)
	})

	t.Run("yaml live report", func(t *testing.T) {
		doc := `
running:
  - serviceName: web
    id: c1
    ip: 10.0.0.1
candidates:
  - serviceName: api
    configMode: path
    predicate: /api
    containers:
      - id: c9
        ip: 10.0.0.9
`
		var live services.LiveReport
		require.NoError(t, yaml.Unmarshal([]byte(doc), &live))
		require.Len(t, live.Running, 1)
		assert.Equal(t, services.RunningContainer{ServiceName: "web", ID: "c1", IP: "10.0.0.1"}, live.Running[0])
		require.Len(t, live.Candidates, 1)
		assert.Equal(t, services.ConfigModePath, live.Candidates[0].ConfigMode)
		assert.Equal(t, "/api", live.Candidates[0].Predicate)
	})
}

func TestConfigMode(t *testing.T) {
	assert.True(t, services.ConfigModeHost.IsKnown())
	assert.True(t, services.ConfigModePath.IsKnown())
	assert.False(t, services.ConfigMode("tcp").IsKnown())
	assert.False(t, services.ConfigMode("").IsSet())
	assert.True(t, services.ConfigMode("tcp").IsSet())
	assert.Equal(t, "path", services.ConfigModePath.String())
}

func TestServiceCopy(t *testing.T) {
	orig := services.Service{
		Name:       "web",
		Containers: []services.Container{{ID: "c1", IP: "10.0.0.1"}},
	}
	cp := orig.Copy()
	cp.Containers[0].IP = "10.9.9.9"
	assert.Equal(t, "10.0.0.1", orig.Containers[0].IP)

	assert.Nil(t, services.CopyContainers(nil))
	assert.Nil(t, services.CopyServices(nil))

	list := []services.Service{orig}
	listCopy := services.CopyServices(list)
	listCopy[0].Containers = append(listCopy[0].Containers, services.Container{ID: "c2"})
	assert.Len(t, list[0].Containers, 1)
}

func TestCandidateService(t *testing.T) {
	c := services.CandidateService{Name: "api", Cookie: "S", Containers: []services.Container{{ID: "c1"}}}
	svc := c.Service()
	assert.Equal(t, "api", svc.Name)
	assert.True(t, svc.Sticky())
	svc.Containers[0].ID = "changed"
	assert.Equal(t, "c1", c.Containers[0].ID)
}

func TestHelpers(t *testing.T) {
	list := []services.Service{
		{Name: "zeta", Containers: []services.Container{{ID: "b"}, {ID: "a"}}},
		{Name: "alpha"},
	}
	services.SortByName(list)
	assert.Equal(t, []string{"alpha", "zeta"}, services.Names(list))
	assert.Equal(t, []string{"b", "a"}, list[1].ContainerIDs())

	found, ok := services.Find(list, "zeta")
	require.True(t, ok)
	assert.Equal(t, "zeta", found.Name)
	_, ok = services.Find(list, "missing")
	assert.False(t, ok)
}

func TestLiveReportValidate(t *testing.T) {
	tests := []struct {
		name    string
		live    services.LiveReport
		section string
		index   int
		field   string
	}{
		{
			name: "valid",
			live: services.LiveReport{
				Running:    []services.RunningContainer{{ServiceName: "web", ID: "c1"}},
				Candidates: []services.CandidateService{{Name: "web", Containers: []services.Container{{ID: "c1"}}}},
			},
		},
		{
			name:    "running without service name",
			live:    services.LiveReport{Running: []services.RunningContainer{{ServiceName: "web", ID: "c1"}, {ID: "c2"}}},
			section: services.SectionRunning, index: 1, field: "serviceName",
		},
		{
			name:    "running without id",
			live:    services.LiveReport{Running: []services.RunningContainer{{ServiceName: "web", IP: "10.0.0.1"}}},
			section: services.SectionRunning, index: 0, field: "id",
		},
		{
			name:    "candidate without name",
			live:    services.LiveReport{Candidates: []services.CandidateService{{Predicate: "/x"}}},
			section: services.SectionCandidates, index: 0, field: "serviceName",
		},
		{
			name: "candidate container without id",
			live: services.LiveReport{Candidates: []services.CandidateService{
				{Name: "ok"},
				{Name: "api", Containers: []services.Container{{IP: "10.0.0.3"}}},
			}},
			section: services.SectionCandidates, index: 1, field: "containers.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.live.Validate()
			if tt.section == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsMalformedReport(err))
			var mr *errors.MalformedReportError
			require.ErrorAs(t, err, &mr)
			assert.Equal(t, tt.section, mr.Section)
			assert.Equal(t, tt.index, mr.Index)
			assert.Equal(t, tt.field, mr.Field)
		})
	}

	t.Run("empty report is valid", func(t *testing.T) {
		assert.NoError(t, services.LiveReport{}.Validate())
	})
}

func TestLiveReportSets(t *testing.T) {
	live := services.LiveReport{Running: []services.RunningContainer{
		{ServiceName: "web", ID: "c1"},
		{ServiceName: "web", ID: "c2"},
		{ServiceName: "api", ID: "c3"},
	}}
	assert.Len(t, live.RunningNames(), 2)
	assert.Len(t, live.RunningIDs(), 3)
	assert.Contains(t, live.RunningIDs(), "c2")
	assert.Equal(t, services.Container{ID: "c3"}, live.Running[2].Container())
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, services.ValidateName("service", "web-frontend"))
	assert.True(t, errors.IsValidationError(services.ValidateName("service", "")))
	assert.True(t, errors.IsValidationError(services.ValidateName("table", "a/b")))
}
