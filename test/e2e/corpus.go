// Package e2e provides end-to-end tests driving the full ingestion stack with
// a corpus of real files in every generated format.
package e2e

import (
	"fmt"
	"os"
	"path/filepath"
)

// CorpusFile is one source file in the ingestion corpus.
type CorpusFile struct {
	Name string // file name including extension
	Ext  string
	Text string // text the file carries
	// Phrase is a signature unique to this file that must survive conversion
	// to Markdown, so tests can assert the right content ended up on the
	// right document.
	Phrase string
}

// Corpus holds the source files for end-to-end ingestion tests.
type Corpus struct {
	Files      []CorpusFile
	TotalFiles int
}

// BuildCorpus returns a corpus cycling through every generated extension.
// Each file carries a unique signature phrase embedded in its content.
func BuildCorpus() *Corpus {
	files := buildFiles()
	return &Corpus{
		Files:      files,
		TotalFiles: len(files),
	}
}

func buildFiles() []CorpusFile {
	topics := []struct {
		title   string
		phrase  string
		content string
	}{
		{"Quarterly Revenue Report", "quarterly revenue figures", "Revenue grew across all regions this quarter. The quarterly revenue figures include subscription and license income."},
		{"Vendor Contract", "vendor contract renewal terms", "This agreement covers managed hosting services. The vendor contract renewal terms require ninety days of notice."},
		{"Sprint Planning Notes", "sprint planning decisions", "The team reviewed the roadmap on Tuesday. These sprint planning decisions cover the next two iterations."},
		{"Employee Handbook", "remote work policy", "New hires should read this chapter first. The remote work policy allows three days per week from home."},
		{"Research Abstract", "protein folding simulation", "The study examines computational screening methods. Our protein folding simulation ran on a shared compute cluster."},
		{"Invoice March", "invoice payment due date", "Services rendered during March are itemized below. The invoice payment due date is thirty days after receipt."},
		{"Product Roadmap", "roadmap milestone targets", "Planned features are grouped by quarter. The roadmap milestone targets were agreed with every stakeholder."},
		{"Incident Report", "database failover incident", "Service degraded for eleven minutes on Friday. The database failover incident was caused by a stale health check."},
		{"Onboarding Checklist", "onboarding account provisioning", "Complete each step during the first week. The onboarding account provisioning covers email and repository access."},
		{"Architecture Overview", "ingestion service topology", "Components communicate over a small internal API. The ingestion service topology keeps conversion behind a queue."},
		{"Travel Expense Policy", "travel expense reimbursement", "Receipts must be submitted within two weeks. The travel expense reimbursement excludes personal entertainment."},
		{"Press Release Draft", "product launch announcement", "Embargoed until the first of the month. The product launch announcement highlights the new offline mode."},
		{"Security Audit Summary", "security audit findings", "The external review finished last week. The security audit findings list two medium severity issues."},
		{"Lease Agreement", "office lease termination clause", "The premises are described in appendix A. The office lease termination clause requires six months of notice."},
		{"Grant Proposal", "research grant budget", "Funding is requested for a two year project. The research grant budget covers equipment and one position."},
		{"Board Meeting Minutes", "board approved budget", "All members were present at the call. The board approved budget increases headcount for support."},
		{"Maintenance Schedule", "scheduled maintenance window", "Systems are patched on a rolling basis. The scheduled maintenance window falls on the second Sunday."},
		{"Customer Survey Results", "customer satisfaction scores", "Responses were collected over four weeks. The customer satisfaction scores improved in every segment."},
		{"API Migration Guide", "endpoint deprecation timeline", "Version one remains available for a year. The endpoint deprecation timeline is published in the changelog."},
		{"Warehouse Inventory", "warehouse stock levels", "Counts were taken at the end of the month. The warehouse stock levels show a shortage of packaging."},
		{"Training Curriculum", "compliance training modules", "Completion is tracked per employee. The compliance training modules must be renewed annually."},
		{"Patent Application", "claim covering deduplication", "Prior art is discussed in section three. The claim covering deduplication describes content addressed storage."},
		{"Release Notes", "bug fixes and regressions", "This build ships behind a feature flag. The bug fixes and regressions section lists twelve entries."},
		{"Insurance Policy", "liability coverage limits", "The policy renews automatically each year. The liability coverage limits were raised after the audit."},
		{"Recipe Collection", "slow roasted vegetables", "Each recipe serves four people. The slow roasted vegetables need ninety minutes in the oven."},
		{"Conference Agenda", "keynote speaker schedule", "Registration opens at eight in the morning. The keynote speaker schedule spans both conference days."},
		{"Performance Review", "annual performance objectives", "Feedback was gathered from five peers. The annual performance objectives emphasize mentoring and delivery."},
		{"Data Retention Policy", "log retention period", "Backups are encrypted at rest. The log retention period is ninety days for application logs."},
		{"Marketing Plan", "campaign conversion goals", "Channels are ranked by historical performance. The campaign conversion goals double the newsletter signups."},
		{"Lab Protocol", "sample preparation steps", "Work under the fume hood at all times. The sample preparation steps require calibrated pipettes."},
		{"Shipping Manifest", "container customs declaration", "The vessel departs on the fifteenth. The container customs declaration lists machine parts and tooling."},
		{"Style Guide", "documentation tone guidelines", "Write for readers in a hurry. The documentation tone guidelines prefer short declarative sentences."},
		{"Budget Forecast", "operating expense forecast", "Figures assume stable exchange rates. The operating expense forecast includes the new data center."},
		{"User Manual", "printer troubleshooting steps", "Keep this manual near the device. The printer troubleshooting steps start with the power cycle."},
		{"Course Syllabus", "distributed systems seminar", "Weekly readings are listed per session. The distributed systems seminar ends with a project demo."},
		{"Legal Brief", "appellate court filing", "The motion was served to all parties. The appellate court filing argues procedural error."},
		{"Sales Projections", "regional sales pipeline", "Estimates are weighted by stage. The regional sales pipeline grew strongest in the north."},
		{"Recruiting Pipeline", "candidate interview stages", "Roles are open across three teams. The candidate interview stages include a practical exercise."},
		{"Network Diagram Notes", "firewall rule inventory", "Segments are isolated per environment. The firewall rule inventory is reviewed every quarter."},
		{"Catering Order", "dietary restriction options", "Lunch is delivered at noon sharp. The dietary restriction options cover vegan and gluten free meals."},
		{"Book Chapter Draft", "harbor at first light", "The ferry crossing opens the chapter. The harbor at first light is described from the pilot house."},
		{"Energy Usage Report", "datacenter power consumption", "Readings are sampled every minute. The datacenter power consumption dropped after the cooling retrofit."},
		{"Accessibility Review", "screen reader compatibility", "Testing covered the three main flows. The screen reader compatibility issues cluster in the upload form."},
		{"Disaster Recovery Plan", "failover runbook steps", "Backups are restored to a warm standby. The failover runbook steps are rehearsed twice a year."},
		{"Translation Glossary", "approved terminology list", "Entries are sorted by source term. The approved terminology list keeps product names untranslated."},
		{"Hardware Order", "workstation procurement request", "Quotes were collected from two suppliers. The workstation procurement request covers eight developer machines."},
		{"Newsletter Draft", "monthly community highlights", "The issue goes out on Friday. The monthly community highlights feature three contributed plugins."},
		{"Retrospective Notes", "action items from retrospective", "The board was grouped into themes. The action items from retrospective have owners and due dates."},
	}

	exts := SupportedFileExtensions
	out := make([]CorpusFile, 0, len(topics))
	for i, topic := range topics {
		ext := exts[i%len(exts)]
		out = append(out, CorpusFile{
			Name:   fmt.Sprintf("corpus-%03d%s", i+1, ext),
			Ext:    ext,
			Text:   topic.title + "\n\n" + topic.content,
			Phrase: topic.phrase,
		})
	}
	return out
}

// WriteTo materializes every corpus file under dir and returns the absolute
// path of each, keyed by file name.
func (c *Corpus) WriteTo(dir string) (map[string]string, error) {
	paths := make(map[string]string, len(c.Files))
	for _, f := range c.Files {
		data, err := WriteMinimalFile(f.Ext, f.Text)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", f.Name, err)
		}
		path := filepath.Join(dir, f.Name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", f.Name, err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		paths[f.Name] = abs
	}
	return paths, nil
}
