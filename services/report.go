package services

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charangentem-coder/rental-price-predictor/models"
	"github.com/charangentem-coder/rental-price-predictor/utils"
)

// ReportService renders and persists the evaluation metrics of a training run.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// FormatText renders the plain-text metrics report.
func FormatText(m *models.EvaluationMetrics) string {
	var b strings.Builder
	b.WriteString("Model Evaluation Metrics\n")
	b.WriteString(strings.Repeat("=", 30) + "\n")
	fmt.Fprintf(&b, "Mean Absolute Error (MAE): %.2f\n", m.MeanAbsoluteError)
	fmt.Fprintf(&b, "Root Mean Squared Error (RMSE): %.2f\n", m.RootMeanSquaredError)
	fmt.Fprintf(&b, "R² Score: %.4f\n", m.RSquared)
	return b.String()
}

// WriteText writes the plain-text report to path.
func (s *ReportService) WriteText(path string, m *models.EvaluationMetrics) error {
	if err := writeFile(path, []byte(FormatText(m))); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	s.logger.Info("[report] Metrics saved to %s", path)
	return nil
}

// WriteJSON writes the structured report to path.
func (s *ReportService) WriteJSON(path string, m *models.EvaluationMetrics) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("report: encode: %w", err)
	}
	if err := writeFile(path, append(data, '\n')); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	s.logger.Info("[report] Metrics saved to %s", path)
	return nil
}

// ReadJSON loads a structured report written by WriteJSON.
func ReadJSON(path string) (*models.EvaluationMetrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: read %q: %w", path, err)
	}
	m := &models.EvaluationMetrics{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("report: decode %q: %w", path, err)
	}
	return m, nil
}

// Print writes the end-of-training summary.
func (s *ReportService) Print(w io.Writer, m *models.EvaluationMetrics, modelID, location string) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🏠 RENTAL PRICE MODEL\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Data\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Training records : \033[1m%d\033[0m\n", m.TrainSize)
	fmt.Fprintf(w, "  Test records     : \033[1m%d\033[0m\n", m.TestSize)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Evaluation (held-out)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Mean Absolute Error     : \033[1;32m%.2f\033[0m\n", m.MeanAbsoluteError)
	fmt.Fprintf(w, "  Root Mean Squared Error : \033[1;32m%.2f\033[0m\n", m.RootMeanSquaredError)
	fmt.Fprintf(w, "  R² Score                : \033[1;32m%.4f\033[0m\n", m.RSquared)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Artifact\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  ID       : %s\n", modelID)
	fmt.Fprintf(w, "  Location : %s\n", location)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %q: %w", path, err)
	}
	return nil
}
