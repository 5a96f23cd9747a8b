// pkg/report/asciidoc_report.go

package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gitlab.consulting.redhat.com/ksa/preinstall-check/pkg/check"
)

// ResultKey represents the level of importance for a result in a report summary
type ResultKey string

const (
	// ResultKeyNoChange indicates the requirement is met
	ResultKeyNoChange ResultKey = "nochange"

	// ResultKeyRecommended indicates a warning that does not block installation
	ResultKeyRecommended ResultKey = "recommended"

	// ResultKeyRequired indicates a failed requirement
	ResultKeyRequired ResultKey = "required"

	// ResultKeyAdvisory indicates an applied automatic fix
	ResultKeyAdvisory ResultKey = "advisory"

	// ResultKeyNotApplicable indicates a skipped check
	ResultKeyNotApplicable ResultKey = "na"
)

// keyFormats holds the colour and label of each result key.
var keyFormats = map[ResultKey]struct {
	color string
	label string
	desc  string
}{
	ResultKeyRequired:      {"#FF0000", "Changes Required", "Requirement not met. Installation must not proceed until it is fixed."},
	ResultKeyRecommended:   {"#FEFE20", "Changes Recommended", "Requirement could not be verified or is only partially met. Review before installing."},
	ResultKeyAdvisory:      {"#80E5FF", "Fixed Automatically", "Requirement was fixed during this run. A reboot may be required."},
	ResultKeyNotApplicable: {"#A6B9BF", "Not Applicable", "Check was skipped for this run."},
	ResultKeyNoChange:      {"#00FF00", "No Change", "Requirement met."},
}

var keyOrder = []ResultKey{ResultKeyRequired, ResultKeyRecommended, ResultKeyAdvisory, ResultKeyNotApplicable, ResultKeyNoChange}

// Item is one row of the readiness report.
type Item struct {
	ID              string
	Name            string
	Check           check.ID
	Key             ResultKey
	Message         string
	Detail          string
	Recommendations []string
}

// AsciiDocReport generates the AsciiDoc readiness report of one run
type AsciiDocReport struct {
	OutputPath string
	Hostname   string
	Title      string
	Node       string
	Generated  time.Time

	summary *check.Summary
	Items   []*Item
}

// NewAsciiDocReport creates a new AsciiDoc report
func NewAsciiDocReport(outputPath string) *AsciiDocReport {
	return &AsciiDocReport{OutputPath: outputPath, Generated: time.Now()}
}

// Initialize sets up the report with hostname, node profile and title
func (r *AsciiDocReport) Initialize(hostname, node, title string) {
	r.Hostname = hostname
	r.Node = node
	r.Title = title
}

// AddSummary turns every result of the run into report items, one per
// evaluated requirement.
func (r *AsciiDocReport) AddSummary(s *check.Summary) {
	r.summary = s
	for _, res := range s.Results {
		r.Items = append(r.Items, itemsFor(res)...)
	}
}

func itemsFor(res check.Result) []*Item {
	fixNote := remediationNote(res)

	if len(res.Findings) == 0 {
		item := &Item{
			ID:      res.ID.String(),
			Name:    res.ID.Title(),
			Check:   res.ID,
			Key:     keyFor(res, res.Outcome),
			Message: res.Detail,
			Detail:  fixNote,
		}
		item.Recommendations = append(item.Recommendations, res.Suggestions...)
		if res.ManualIntervention != "" {
			item.Recommendations = append(item.Recommendations, "Manual intervention required: "+res.ManualIntervention)
		}
		return []*Item{item}
	}

	items := make([]*Item, 0, len(res.Findings))
	for i, f := range res.Findings {
		item := &Item{
			ID:      fmt.Sprintf("%s-%d", res.ID, i+1),
			Name:    f.Requirement,
			Check:   res.ID,
			Key:     keyFor(res, f.Outcome),
			Message: f.Message,
		}

		var detail strings.Builder
		if f.Measured != "" {
			detail.WriteString("Measured: " + f.Measured + "\n")
		}
		if f.Required != "" {
			detail.WriteString("Required: " + f.Required + "\n")
		}
		detail.WriteString(fixNote)
		item.Detail = detail.String()

		if f.Suggestion != "" && f.Outcome != check.Pass {
			item.Recommendations = append(item.Recommendations, f.Suggestion)
		}
		if res.ManualIntervention != "" && f.Outcome == check.Fail {
			item.Recommendations = append(item.Recommendations, "Manual intervention required: "+res.ManualIntervention)
		}
		items = append(items, item)
	}
	return items
}

func keyFor(res check.Result, o check.Outcome) ResultKey {
	switch o {
	case check.Fail:
		return ResultKeyRequired
	case check.Warn:
		return ResultKeyRecommended
	case check.Skipped:
		return ResultKeyNotApplicable
	}
	if res.Succeeded {
		return ResultKeyAdvisory
	}
	return ResultKeyNoChange
}

func remediationNote(res check.Result) string {
	if !res.Attempted {
		return ""
	}
	fixes := make([]string, len(res.Remediated))
	for i, c := range res.Remediated {
		fixes[i] = c.String()
	}
	note := fmt.Sprintf("Automatic fix attempted: %s (succeeded: %t)\n", strings.Join(fixes, ", "), res.Succeeded)
	if res.RequiresReboot {
		note += "Reboot required: yes\n"
	}
	return note
}

// Generate generates the report and writes it to the output path
func (r *AsciiDocReport) Generate() (string, error) {
	outputDir := filepath.Dir(r.OutputPath)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := os.WriteFile(r.OutputPath, []byte(r.generateReportContent()), 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return r.OutputPath, nil
}

// generateReportContent creates the full report content
func (r *AsciiDocReport) generateReportContent() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("= %s\n\n", r.Title))
	sb.WriteString("ifdef::env-github[]\n:tip-caption: :bulb:\n:note-caption: :information_source:\n:important-caption: :heavy_exclamation_mark:\n:caution-caption: :fire:\n:warning-caption: :warning:\nendif::[]\n\n")

	sb.WriteString(r.generateOverviewSection())
	sb.WriteString(r.generateKeySection())
	sb.WriteString(r.generateSummarySection())

	grouped := r.itemsByCheck()
	for _, id := range check.AllIDs() {
		if items := grouped[id]; len(items) > 0 {
			sb.WriteString(r.generateCategorySection(id, items))
		}
	}

	// Reset bgcolor for future tables
	sb.WriteString("// Reset bgcolor for future tables\n[grid=none,frame=none]\n|===\n|{set:cellbgcolor!}\n|===\n\n")
	return sb.String()
}

func (r *AsciiDocReport) generateOverviewSection() string {
	var sb strings.Builder
	sb.WriteString("= Run Overview\n\n")
	sb.WriteString("[cols=\"1,3\"]\n|===\n")
	sb.WriteString("|Hostname\n|" + r.Hostname + "\n\n")
	if r.Node != "" {
		sb.WriteString("|Node type\n|" + r.Node + "\n\n")
	}
	sb.WriteString("|Generated\n|" + r.Generated.Format("2006-01-02 15:04:05") + "\n\n")

	if s := r.summary; s != nil {
		verdict := "FAILED"
		if s.OverallPassed {
			verdict = "PASSED"
		}
		sb.WriteString("|Result\n|" + verdict + "\n\n")
		sb.WriteString(fmt.Sprintf("|Checks\n|%d run, %d passed, %d warnings, %d failed, %d skipped\n\n",
			s.Total, s.Count(check.Pass), s.Count(check.Warn), s.Count(check.Fail), s.Count(check.Skipped)))
		sb.WriteString(fmt.Sprintf("|Automatic fixes\n|attempted: %t, succeeded: %t\n\n", s.FixesAttempted, s.FixesSucceeded))
		if s.RebootRequired {
			sb.WriteString("|Reboot required\n|yes\n\n")
		}
		if s.LogPath != "" {
			sb.WriteString("|Log file\n|" + s.LogPath + "\n\n")
		}
	}
	sb.WriteString("|===\n\n")
	return sb.String()
}

// generateKeySection creates the color-coded key section
func (r *AsciiDocReport) generateKeySection() string {
	var sb strings.Builder

	sb.WriteString("= Key\n\n")
	sb.WriteString("[cols=\"1,3\", options=header]\n|===\n|Value\n|Description\n\n")
	for _, key := range keyOrder {
		f := keyFormats[key]
		sb.WriteString(fmt.Sprintf("|\n{set:cellbgcolor:%s}\n%s\n|\n{set:cellbgcolor!}\n%s\n\n", f.color, f.label, f.desc))
	}
	sb.WriteString("|===\n\n")
	return sb.String()
}

// generateSummarySection lists every item in one table
func (r *AsciiDocReport) generateSummarySection() string {
	var sb strings.Builder

	sb.WriteString("= Summary\n\n")
	sb.WriteString(tableHeader())
	grouped := r.itemsByCheck()
	for _, id := range check.AllIDs() {
		for _, item := range grouped[id] {
			sb.WriteString(tableRow(item))
		}
	}
	sb.WriteString("|===\n\n<<<\n\n{set:cellbgcolor!}\n\n")
	return sb.String()
}

// generateCategorySection creates a section for one check
func (r *AsciiDocReport) generateCategorySection(id check.ID, items []*Item) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# %s\n\n", id.Title()))
	sb.WriteString(tableHeader())
	for _, item := range items {
		sb.WriteString(tableRow(item))
	}
	sb.WriteString("|===\n\n")

	for _, item := range items {
		sb.WriteString(formatItemDetail(item))
	}
	sb.WriteString("<<<\n\n{set:cellbgcolor!}\n\n")
	return sb.String()
}

func tableHeader() string {
	return "[cols=\"1,2,2,3\", options=header]\n|===\n|*Category*\n|*Item Evaluated*\n|*Observed Result*\n|*Recommendation*\n\n"
}

func tableRow(item *Item) string {
	var sb strings.Builder
	sb.WriteString("// ------------------------ITEM START\n")
	sb.WriteString("// Category\n")
	sb.WriteString("|\n{set:cellbgcolor!}\n" + item.Check.Title() + "\n\n")
	sb.WriteString("// Item Evaluated\n")
	sb.WriteString("a|\n<<" + anchor(item) + "," + item.Name + ">>\n\n")
	sb.WriteString("| " + escapeCell(item.Message) + " \n\n")
	sb.WriteString(getResultFormatting(item.Key) + "\n\n")
	sb.WriteString("// ------------------------ITEM END\n\n")
	return sb.String()
}

// formatItemDetail formats detailed information about an item
func formatItemDetail(item *Item) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[[%s]]\n== %s\n\n", anchor(item), item.Name))
	sb.WriteString(getStatusTable(item.Key) + "\n\n")
	if item.Detail != "" {
		sb.WriteString(formatAsCodeBlock(item.Detail))
	}

	sb.WriteString("**Observation**\n\n")
	sb.WriteString(item.Message + "\n\n")

	sb.WriteString("**Recommendation**\n\n")
	if len(item.Recommendations) == 0 {
		sb.WriteString("None\n\n")
	}
	for _, rec := range item.Recommendations {
		sb.WriteString(rec + "\n\n")
	}
	return sb.String()
}

func (r *AsciiDocReport) itemsByCheck() map[check.ID][]*Item {
	grouped := make(map[check.ID][]*Item)
	for _, item := range r.Items {
		grouped[item.Check] = append(grouped[item.Check], item)
	}
	return grouped
}

func anchor(item *Item) string {
	return "item-" + item.ID
}

// escapeCell keeps table separators in messages from splitting the cell.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}

// getResultFormatting returns formatted AsciiDoc for a result key (used in tables)
func getResultFormatting(key ResultKey) string {
	f, ok := keyFormats[key]
	if !ok {
		f = keyFormats[ResultKeyRecommended]
	}
	return fmt.Sprintf("| \n{set:cellbgcolor:%s}\n%s", f.color, f.label)
}

// getStatusTable returns a colored status table for a result key (used in detailed sections)
func getStatusTable(key ResultKey) string {
	f, ok := keyFormats[key]
	if !ok {
		f = keyFormats[ResultKeyRecommended]
	}
	return fmt.Sprintf("[cols=\"^\"] \n|===\n|\n{set:cellbgcolor:%s}\n%s\n|===", f.color, f.label)
}

// formatAsCodeBlock formats text as a literal source block
func formatAsCodeBlock(content string) string {
	content = strings.TrimRight(content, " \t\n") + "\n"
	return fmt.Sprintf("[source, text]\n----\n%s----\n\n", content)
}
