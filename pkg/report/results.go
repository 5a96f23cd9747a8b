// pkg/report/results.go
// Machine-readable results written next to the AsciiDoc report

package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
)

// RunData represents the structured run results for JSON storage
type RunData struct {
	Hostname       string      `json:"hostname"`
	Node           string      `json:"node"`
	OverallPassed  bool        `json:"overall_passed"`
	FixesAttempted bool        `json:"fixes_attempted"`
	FixesSucceeded bool        `json:"fixes_succeeded"`
	RebootRequired bool        `json:"reboot_required"`
	LogPath        string      `json:"log_path,omitempty"`
	Started        time.Time   `json:"started"`
	Finished       time.Time   `json:"finished"`
	Checks         []CheckData `json:"checks"`
}

// CheckData is the final result of one check.
type CheckData struct {
	ID                 string        `json:"id"`
	Name               string        `json:"name"`
	Outcome            string        `json:"outcome"`
	Detail             string        `json:"detail"`
	Attempted          bool          `json:"remediation_attempted"`
	Succeeded          bool          `json:"remediation_succeeded"`
	RequiresReboot     bool          `json:"requires_reboot"`
	Remediated         []string      `json:"remediated,omitempty"`
	ManualIntervention string        `json:"manual_intervention,omitempty"`
	DurationMS         int64         `json:"duration_ms"`
	Findings           []FindingData `json:"findings,omitempty"`
	Suggestions        []string      `json:"suggestions,omitempty"`
}

// FindingData is one evaluated requirement.
type FindingData struct {
	Requirement string `json:"requirement"`
	Outcome     string `json:"outcome"`
	Measured    string `json:"measured,omitempty"`
	Required    string `json:"required,omitempty"`
	Message     string `json:"message"`
}

// NewRunData converts a summary for serialisation.
func NewRunData(s *check.Summary, node string) RunData {
	data := RunData{
		Hostname:       s.Target,
		Node:           node,
		OverallPassed:  s.OverallPassed,
		FixesAttempted: s.FixesAttempted,
		FixesSucceeded: s.FixesSucceeded,
		RebootRequired: s.RebootRequired,
		LogPath:        s.LogPath,
		Started:        s.Started,
		Finished:       s.Finished,
		Checks:         make([]CheckData, len(s.Results)),
	}
	for i, res := range s.Results {
		cd := CheckData{
			ID:                 res.ID.String(),
			Name:               res.ID.Title(),
			Outcome:            res.Outcome.String(),
			Detail:             res.Detail,
			Attempted:          res.Attempted,
			Succeeded:          res.Succeeded,
			RequiresReboot:     res.RequiresReboot,
			ManualIntervention: res.ManualIntervention,
			DurationMS:         res.Duration.Milliseconds(),
			Suggestions:        res.Suggestions,
		}
		for _, c := range res.Remediated {
			cd.Remediated = append(cd.Remediated, c.String())
		}
		for _, f := range res.Findings {
			cd.Findings = append(cd.Findings, FindingData{
				Requirement: f.Requirement,
				Outcome:     f.Outcome.String(),
				Measured:    f.Measured,
				Required:    f.Required,
				Message:     f.Message,
			})
		}
		data.Checks[i] = cd
	}
	return data
}

// ResultsPath returns the JSON file kept under .data next to outputPath.
func ResultsPath(outputPath string) string {
	return filepath.Join(filepath.Dir(outputPath), ".data", filepath.Base(outputPath)+".json")
}

// SaveResults saves run results to a JSON file
func SaveResults(outputPath string, s *check.Summary, node string) (string, error) {
	jsonFile := ResultsPath(outputPath)
	if err := os.MkdirAll(filepath.Dir(jsonFile), 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	jsonData, err := json.MarshalIndent(NewRunData(s, node), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run results: %w", err)
	}
	if err := os.WriteFile(jsonFile, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write run results: %w", err)
	}
	return jsonFile, nil
}
