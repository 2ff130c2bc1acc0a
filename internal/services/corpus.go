package services

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
)

// CorpusRecord is the outcome of extracting one labelled PDF.
type CorpusRecord struct {
	Text       string `json:"-"`
	Profession string `json:"profession"`
	Filename   string `json:"filename"`
	Status     string `json:"status"` // success | failed
}

// CorpusStats summarises one corpus build.
type CorpusStats struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// CorpusBuilder turns {profession -> folder} mappings into labelled training
// samples by extracting text from every PDF in each folder.
type CorpusBuilder interface {
	Build(sources map[string]string, progress func(done, total int, file string), cancelled func() bool) ([]CorpusRecord, CorpusStats, error)
}

type corpusBuilder struct {
	parser PDFParserService
}

func NewCorpusBuilder(parser PDFParserService) CorpusBuilder {
	return &corpusBuilder{parser: parser}
}

// Build implements CorpusBuilder. Professions are visited in sorted order so
// repeated builds over the same folders produce the same record sequence.
// A file that fails extraction becomes a failed record, not an error; a
// missing or unreadable folder is an error.
func (b *corpusBuilder) Build(
	sources map[string]string,
	progress func(done, total int, file string),
	cancelled func() bool,
) ([]CorpusRecord, CorpusStats, error) {
	if progress == nil {
		progress = func(int, int, string) {}
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}
	if len(sources) == 0 {
		return nil, CorpusStats{}, ml.ErrEmptyCorpus
	}

	professions := make([]string, 0, len(sources))
	for p := range sources {
		professions = append(professions, p)
	}
	sort.Strings(professions)

	type labelledFile struct {
		profession string
		path       string
	}
	var files []labelledFile
	for _, profession := range professions {
		folder := sources[profession]
		paths, err := listPDFs(folder)
		if err != nil {
			return nil, CorpusStats{}, fmt.Errorf("failed to read corpus folder for %q: %w", profession, err)
		}
		for _, p := range paths {
			files = append(files, labelledFile{profession: profession, path: p})
		}
	}
	if len(files) == 0 {
		return nil, CorpusStats{}, ml.ErrEmptyCorpus
	}

	var records []CorpusRecord
	stats := CorpusStats{Total: len(files)}
	for i, lf := range files {
		if cancelled() {
			return nil, CorpusStats{}, ml.ErrCancelled
		}

		record := CorpusRecord{
			Profession: lf.profession,
			Filename:   filepath.Base(lf.path),
			Status:     "success",
		}
		text, err := b.parser.ExtractText(lf.path)
		if err != nil {
			record.Status = "failed"
			stats.Failed++
		} else {
			record.Text = text
			stats.Succeeded++
		}
		records = append(records, record)
		progress(i+1, len(files), record.Filename)
	}

	return records, stats, nil
}

// Samples filters a record set down to the labelled texts usable for training.
func Samples(records []CorpusRecord) []ml.Sample {
	var samples []ml.Sample
	for _, r := range records {
		if r.Status != "success" {
			continue
		}
		samples = append(samples, ml.Sample{Text: r.Text, Label: r.Profession})
	}
	return samples
}

// listPDFs returns the *.pdf files of a folder, extension matched
// case-insensitively, sorted by name.
func listPDFs(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(folder, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}
