package ingest

import (
	"io"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
)

// FileSummary is the outcome of one feed file.
type FileSummary struct {
	File               string `json:"file"`
	Site               string `json:"site"`
	Events             int    `json:"events"`
	Inserted           int    `json:"inserted"`
	Duplicate          int    `json:"duplicate"`
	InvalidCoordinates int    `json:"invalid_coordinates"`
	Failed             int    `json:"failed"`
	Backup             string `json:"backup,omitempty"`
	Err                error  `json:"-"`
}

// Summary aggregates a run.
type Summary struct {
	Files              int           `json:"files"`
	Events             int           `json:"events"`
	Inserted           int           `json:"inserted"`
	Duplicate          int           `json:"duplicate"`
	InvalidCoordinates int           `json:"invalid_coordinates"`
	Failed             int           `json:"failed"`
	FailedFiles        []string      `json:"failed_files,omitempty"`
	PerFile            []FileSummary `json:"per_file"`
}

// Add folds a file result into the totals.
func (s *Summary) Add(fs FileSummary) {
	s.Files++
	s.Events += fs.Events
	s.Inserted += fs.Inserted
	s.Duplicate += fs.Duplicate
	s.InvalidCoordinates += fs.InvalidCoordinates
	s.Failed += fs.Failed
	if fs.Err != nil {
		s.FailedFiles = append(s.FailedFiles, fs.File)
	}
	s.PerFile = append(s.PerFile, fs)
}

// Render writes the per-file table followed by the totals.
func (s *Summary) Render(w io.Writer) {
	files := table.NewWriter()
	files.SetOutputMirror(w)
	files.SetTitle("Feed files")
	files.AppendHeader(table.Row{"File", "Site", "Events", "Inserted", "Duplicates", "Invalid coords", "Failed", "Backup"})
	for _, fs := range s.PerFile {
		backup := ""
		if fs.Backup != "" {
			backup = filepath.Base(fs.Backup)
		}
		files.AppendRow(table.Row{fs.File, fs.Site, fs.Events, fs.Inserted, fs.Duplicate, fs.InvalidCoordinates, fs.Failed, backup})
	}
	files.AppendFooter(table.Row{"Total", "", s.Events, s.Inserted, s.Duplicate, s.InvalidCoordinates, s.Failed, ""})
	files.SetStyle(table.StyleRounded)
	files.Render()

	totals := table.NewWriter()
	totals.SetOutputMirror(w)
	totals.SetTitle("Ingestion summary")
	totals.AppendRows([]table.Row{
		{"Files processed", s.Files},
		{"Events seen", s.Events},
		{"Inserted", s.Inserted},
		{"Duplicates", s.Duplicate},
		{"Invalid coordinates", s.InvalidCoordinates},
		{"Failed", s.Failed},
	})
	if len(s.FailedFiles) > 0 {
		totals.AppendRow(table.Row{"Failed files", len(s.FailedFiles)})
	}
	totals.SetStyle(table.StyleRounded)
	totals.Render()
}
