package services

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/lbmap/pkg/errors"
)

// Formats accepted by Decode.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// FormatFor maps a file extension, media type or format name to FormatJSON or
// FormatYAML. Anything unrecognized yields "".
func FormatFor(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "."))
	switch {
	case s == "json" || strings.Contains(s, "json"):
		return FormatJSON
	case s == "yaml" || s == "yml" || strings.Contains(s, "yaml"):
		return FormatYAML
	default:
		return ""
	}
}

// Decode unmarshals JSON or YAML into v. An empty format sniffs the data: a
// leading '{' or '[' means JSON. source names the input in errors.
func Decode(data []byte, format, source string, v any) error {
	if format == "" {
		format = FormatYAML
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
			format = FormatJSON
		}
	}

	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, v)
	case FormatYAML:
		err = yaml.Unmarshal(data, v)
	default:
		return errors.NewValidationError("format", format, "must be json or yaml")
	}
	if err != nil {
		return errors.WrapParse(format, source, err)
	}
	return nil
}

// DecodeReport decodes and validates a live report.
func DecodeReport(data []byte, format, source string) (LiveReport, error) {
	var report LiveReport
	if err := Decode(data, format, source, &report); err != nil {
		return LiveReport{}, err
	}
	if err := report.Validate(); err != nil {
		return LiveReport{}, err
	}
	return report, nil
}
