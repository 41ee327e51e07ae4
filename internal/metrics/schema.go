package metrics

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema/report.schema.json
var reportSchema []byte

// ReportSchema returns the JSON schema every metrics report satisfies.
func ReportSchema() []byte {
	return append([]byte(nil), reportSchema...)
}

// ValidateReportJSON checks an encoded report against ReportSchema. The
// returned slice lists schema violations; err is only set when validation
// could not run.
func ValidateReportJSON(data []byte) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(reportSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate report: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		errs = append(errs, e.String())
	}
	return errs, nil
}

// ValidateReport encodes r and checks it against ReportSchema.
func ValidateReport(r *Report) ([]string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return ValidateReportJSON(data)
}
