package output

import (
	"time"

	"github.com/joelanford/axscan/utils/scanner"
)

type Verdict string

const (
	VerdictSafe    Verdict = "safe"
	VerdictWarning Verdict = "warning"
)

type ScanSummary struct {
	InputFiles []string     `json:"inputFiles" yaml:"inputFiles"`
	Verdict    Verdict      `json:"verdict" yaml:"verdict"`
	Results    []ScanResult `json:"results" yaml:"results"`
	Stats      ScanStats    `json:"stats" yaml:"stats"`
}

type ScanResult = scanner.FileResult

type ScanStats struct {
	FilesScanned  int     `json:"filesScanned" yaml:"filesScanned"`
	FilesHit      int     `json:"filesHit" yaml:"filesHit"`
	FilesErrored  int     `json:"filesErrored" yaml:"filesErrored"`
	TotalFindings int     `json:"totalFindings" yaml:"totalFindings"`
	Duration      float64 `json:"duration" yaml:"duration"`
}

type SummaryWriter interface {
	WriteSummary(ScanSummary) error
}

// NewSummary aggregates a batch. With hitsOnly, clean files are counted but
// left out of Results.
func NewSummary(batch scanner.Batch, duration time.Duration, hitsOnly bool) ScanSummary {
	sum := ScanSummary{
		InputFiles: make([]string, 0, len(batch)),
		Verdict:    VerdictSafe,
		Results:    make([]ScanResult, 0, len(batch)),
	}
	for _, r := range batch {
		sum.InputFiles = append(sum.InputFiles, r.FileName)
		sum.Stats.FilesScanned++
		if r.Error != "" {
			sum.Stats.FilesErrored++
		}
		if len(r.Findings) > 0 {
			sum.Stats.FilesHit++
			sum.Stats.TotalFindings += len(r.Findings)
		}
		if !hitsOnly || len(r.Findings) > 0 || r.Error != "" {
			sum.Results = append(sum.Results, r)
		}
	}
	if !batch.Safe() {
		sum.Verdict = VerdictWarning
	}
	sum.Stats.Duration = duration.Seconds()
	return sum
}
