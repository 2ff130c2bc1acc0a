package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
)

// stubParser maps file base names to extracted text; names in failures
// simulate unreadable documents.
type stubParser struct {
	texts    map[string]string
	failures map[string]bool
}

func (p *stubParser) ExtractText(filePath string) (string, error) {
	base := filepath.Base(filePath)
	if p.failures[base] {
		return "", fmt.Errorf("no text content found in PDF")
	}
	if text, ok := p.texts[base]; ok {
		return text, nil
	}
	return "generic resume text", nil
}

func writeCorpusDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCorpusBuildLabelsAndProgress(t *testing.T) {
	engDir := writeCorpusDir(t, "a.pdf", "b.PDF", "notes.txt")
	medDir := writeCorpusDir(t, "c.pdf")

	parser := &stubParser{texts: map[string]string{
		"a.pdf": "golang services",
		"b.PDF": "kubernetes cluster",
		"c.pdf": "patient care",
	}}
	builder := NewCorpusBuilder(parser)

	var progressCalls int
	records, stats, err := builder.Build(
		map[string]string{"engineering": engDir, "medicine": medDir},
		func(done, total int, file string) {
			progressCalls++
			if total != 3 {
				t.Errorf("progress total = %d, want 3", total)
			}
			if done != progressCalls {
				t.Errorf("progress done = %d, want %d", done, progressCalls)
			}
		},
		nil,
	)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if stats.Total != 3 || stats.Succeeded != 3 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want 3/3/0", stats)
	}
	if progressCalls != 3 {
		t.Errorf("progress called %d times, want 3", progressCalls)
	}

	byLabel := map[string]int{}
	for _, r := range records {
		byLabel[r.Profession]++
		if r.Status != "success" {
			t.Errorf("record %s status = %s", r.Filename, r.Status)
		}
	}
	if byLabel["engineering"] != 2 || byLabel["medicine"] != 1 {
		t.Errorf("records per label = %v, want engineering:2 medicine:1", byLabel)
	}
}

func TestCorpusBuildFailedExtractionIsRecorded(t *testing.T) {
	dir := writeCorpusDir(t, "good.pdf", "bad.pdf")
	other := writeCorpusDir(t, "ok.pdf")

	parser := &stubParser{failures: map[string]bool{"bad.pdf": true}}
	builder := NewCorpusBuilder(parser)

	records, stats, err := builder.Build(
		map[string]string{"engineering": dir, "medicine": other}, nil, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if stats.Failed != 1 || stats.Succeeded != 2 {
		t.Errorf("stats = %+v, want 1 failed, 2 succeeded", stats)
	}

	samples := Samples(records)
	if len(samples) != 2 {
		t.Errorf("Samples returned %d entries, want failed record excluded", len(samples))
	}
	for _, r := range records {
		if r.Filename == "bad.pdf" && r.Status != "failed" {
			t.Errorf("bad.pdf status = %s, want failed", r.Status)
		}
	}
}

func TestCorpusBuildMissingFolder(t *testing.T) {
	builder := NewCorpusBuilder(&stubParser{})
	_, _, err := builder.Build(map[string]string{"engineering": "/definitely/not/here"}, nil, nil)
	if err == nil {
		t.Fatal("Build over a missing folder succeeded")
	}
}

func TestCorpusBuildEmpty(t *testing.T) {
	builder := NewCorpusBuilder(&stubParser{})

	if _, _, err := builder.Build(nil, nil, nil); !errors.Is(err, ml.ErrEmptyCorpus) {
		t.Fatalf("err for no sources = %v, want ErrEmptyCorpus", err)
	}

	empty := t.TempDir()
	if _, _, err := builder.Build(map[string]string{"engineering": empty}, nil, nil); !errors.Is(err, ml.ErrEmptyCorpus) {
		t.Fatalf("err for folder without PDFs = %v, want ErrEmptyCorpus", err)
	}
}

func TestCorpusBuildCancellation(t *testing.T) {
	dir := writeCorpusDir(t, "a.pdf", "b.pdf", "c.pdf")
	builder := NewCorpusBuilder(&stubParser{})

	calls := 0
	_, _, err := builder.Build(
		map[string]string{"engineering": dir},
		nil,
		func() bool {
			calls++
			return calls > 1
		},
	)
	if !errors.Is(err, ml.ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}
