package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
)

const reportJSON = `{
  "running": [{"serviceName": "web", "id": "c1", "ip": "10.0.0.1"}],
  "candidates": [{"serviceName": "api", "configMode": "path", "predicate": "/api", "containers": [{"id": "a1", "ip": "10.0.1.1"}]}]
}`

const reportYAML = `
running:
  - serviceName: web
    id: c1
    ip: 10.0.0.1
candidates:
  - serviceName: api
    configMode: path
    predicate: /api
    containers:
      - id: a1
        ip: 10.0.1.1
`

func TestDecodeReport(t *testing.T) {
	want := services.LiveReport{
		Running: []services.RunningContainer{{ServiceName: "web", ID: "c1", IP: "10.0.0.1"}},
		Candidates: []services.CandidateService{{
			Name:       "api",
			ConfigMode: services.ConfigModePath,
			Predicate:  "/api",
			Containers: []services.Container{{ID: "a1", IP: "10.0.1.1"}},
		}},
	}

	tests := []struct {
		name, data, format string
	}{
		{"json explicit", reportJSON, services.FormatJSON},
		{"json sniffed", reportJSON, ""},
		{"yaml explicit", reportYAML, services.FormatYAML},
		{"yaml sniffed", reportYAML, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := services.DecodeReport([]byte(tt.data), tt.format, "report")
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeReportErrors(t *testing.T) {
	_, err := services.DecodeReport([]byte(`{"running": [`), services.FormatJSON, "report.json")
	var perr *errors.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "report.json", perr.File)

	_, err = services.DecodeReport([]byte(`{"running": [{"id": "c1"}]}`), "", "")
	assert.True(t, errors.IsMalformedReport(err))

	_, err = services.DecodeReport([]byte(`{}`), "toml", "")
	assert.True(t, errors.IsValidationError(err))
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, services.FormatJSON, services.FormatFor(".json"))
	assert.Equal(t, services.FormatJSON, services.FormatFor("application/json; charset=utf-8"))
	assert.Equal(t, services.FormatYAML, services.FormatFor(".yml"))
	assert.Equal(t, services.FormatYAML, services.FormatFor("application/yaml"))
	assert.Equal(t, "", services.FormatFor(".txt"))
}
