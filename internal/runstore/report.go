package runstore

import (
	"fmt"
	"strings"

	"media-normalizer/internal/model"
)

func SaveReport(path string, report model.BatchReport) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("report path is required")
	}
	if err := WriteJSON(path, report); err != nil {
		return fmt.Errorf("save batch report: %w", err)
	}
	return nil
}

func LoadReport(path string) (model.BatchReport, error) {
	var report model.BatchReport
	if err := ReadJSON(path, &report); err != nil {
		return model.BatchReport{}, err
	}
	return report, nil
}
