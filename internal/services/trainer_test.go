package services

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
	"github.com/Yonsn76/cv-clasification-sub000/internal/models"
	"github.com/Yonsn76/cv-clasification-sub000/internal/modelstore"
)

// stubCorpus returns canned records without touching the filesystem.
type stubCorpus struct {
	records []CorpusRecord
	err     error
}

func (s *stubCorpus) Build(sources map[string]string, progress func(int, int, string), cancelled func() bool) ([]CorpusRecord, CorpusStats, error) {
	if cancelled != nil && cancelled() {
		return nil, CorpusStats{}, ml.ErrCancelled
	}
	if s.err != nil {
		return nil, CorpusStats{}, s.err
	}
	if progress != nil {
		for i := range s.records {
			progress(i+1, len(s.records), s.records[i].Filename)
		}
	}
	stats := CorpusStats{Total: len(s.records)}
	for _, r := range s.records {
		if r.Status == "success" {
			stats.Succeeded++
		} else {
			stats.Failed++
		}
	}
	return s.records, stats, nil
}

func separableRecords() []CorpusRecord {
	eng := []string{"golang backend services deployment", "kubernetes cluster pipeline golang", "database latency backend compiler", "services deployment kubernetes database", "compiler pipeline golang latency", "backend cluster services golang"}
	med := []string{"patient surgery clinical hospital", "nursing treatment pharmacy patient", "clinical hospital nursing surgery", "pharmacy treatment patient clinical", "hospital surgery nursing pharmacy", "treatment clinical hospital patient"}
	var out []CorpusRecord
	for i := range eng {
		out = append(out,
			CorpusRecord{Text: eng[i], Profession: "engineering", Filename: "e.pdf", Status: "success"},
			CorpusRecord{Text: med[i], Profession: "medicine", Filename: "m.pdf", Status: "success"},
		)
	}
	return out
}

// recordingObserver captures lifecycle events and signals completion.
type recordingObserver struct {
	mu        sync.Mutex
	progress  []int
	epochs    int
	errMsg    string
	completed bool
	done      chan struct{}
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{done: make(chan struct{})}
}

func (o *recordingObserver) OnProgress(percent int, message string) {
	o.mu.Lock()
	o.progress = append(o.progress, percent)
	o.mu.Unlock()
}

func (o *recordingObserver) OnEpoch(current, total int, m ml.EpochMetrics) {
	o.mu.Lock()
	o.epochs++
	o.mu.Unlock()
}

func (o *recordingObserver) OnComplete(result ml.TrainResult) {
	o.mu.Lock()
	o.completed = true
	o.mu.Unlock()
	close(o.done)
}

func (o *recordingObserver) OnError(message string) {
	o.mu.Lock()
	o.errMsg = message
	o.mu.Unlock()
	close(o.done)
}

func (o *recordingObserver) wait(t *testing.T) {
	t.Helper()
	select {
	case <-o.done:
	case <-time.After(60 * time.Second):
		t.Fatal("timed out waiting for training to finish")
	}
}

func newTestTrainer(t *testing.T, corpus CorpusBuilder) (TrainerService, *modelstore.Store) {
	t.Helper()
	store, err := modelstore.New(
		filepath.Join(t.TempDir(), "saved_models"),
		filepath.Join(t.TempDir(), "saved_deep_models"),
	)
	if err != nil {
		t.Fatalf("modelstore.New: %v", err)
	}
	return NewTrainerService(corpus, store, filepath.Join(t.TempDir(), "bert_cache"), 4), store
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "My Model", want: "my_model"},
		{in: "  tech-2024  ", want: "tech-2024"},
		{in: "already_fine", want: "already_fine"},
		{in: "", wantErr: true},
		{in: "..", wantErr: true},
		{in: "a/b", wantErr: true},
		{in: "ñandú", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Slugify(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Slugify(%q) succeeded with %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Slugify(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnqueueValidation(t *testing.T) {
	trainer, store := newTestTrainer(t, &stubCorpus{records: separableRecords()})

	sources := map[string]string{"engineering": "/tmp/x"}

	if _, err := trainer.Enqueue(models.TrainRequest{Name: "m1", Variant: "quantum", Sources: sources}, nil); !errors.Is(err, ml.ErrUnknownVariant) {
		t.Errorf("unknown variant err = %v", err)
	}
	if _, err := trainer.Enqueue(models.TrainRequest{Name: "..", Variant: "knn", Sources: sources}, nil); !errors.Is(err, ErrInvalidName) {
		t.Errorf("bad name err = %v", err)
	}
	if _, err := trainer.Enqueue(models.TrainRequest{Name: "m1", Variant: "knn"}, nil); !errors.Is(err, ErrNoSources) {
		t.Errorf("no sources err = %v", err)
	}

	// Occupy the slug, then enqueue against it.
	var samples []ml.Sample
	for _, r := range separableRecords() {
		samples = append(samples, ml.Sample{Text: r.Text, Label: r.Profession})
	}
	model, result, err := ml.TrainClassical(samples, ml.ClassicalConfig{Variant: ml.VariantNaiveBayes})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveClassical("m1", model, modelstore.Metadata{Variant: string(result.Variant)}); err != nil {
		t.Fatal(err)
	}
	if _, err := trainer.Enqueue(models.TrainRequest{Name: "m1", Variant: "knn", Sources: sources}, nil); !errors.Is(err, ErrModelExists) {
		t.Errorf("duplicate model err = %v", err)
	}
}

func TestTrainJobLifecycleClassical(t *testing.T) {
	trainer, store := newTestTrainer(t, &stubCorpus{records: separableRecords()})
	ctx := context.Background()
	trainer.Start(ctx)
	defer trainer.Stop()

	obs := newRecordingObserver()
	jobID, err := trainer.Enqueue(models.TrainRequest{
		Name:    "NB Classifier",
		Variant: "naive_bayes",
		Sources: map[string]string{"engineering": "/a", "medicine": "/b"},
	}, obs)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	obs.wait(t)

	job, err := trainer.Job(jobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job.State != JobCompleted {
		t.Fatalf("job state = %s (%s), want completed", job.State, job.Error)
	}
	if job.Progress != 100 {
		t.Errorf("job progress = %d, want 100", job.Progress)
	}
	if job.Result == nil || !job.Result.Success {
		t.Fatal("job has no successful result")
	}
	if job.FinishedAt == nil {
		t.Error("job has no finish time")
	}
	if !obs.completed {
		t.Error("observer did not receive OnComplete")
	}
	prev := -1
	for _, p := range obs.progress {
		if p < prev {
			t.Errorf("observer progress went backwards: %d after %d", p, prev)
		}
		prev = p
	}

	if !store.Exists("nb_classifier") {
		t.Fatal("trained model not saved under its slug")
	}
	meta, err := store.GetMetadata("nb_classifier")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.Variant != "naive_bayes" {
		t.Errorf("metadata variant = %q", meta.Variant)
	}
	if meta.NaiveBayesFlavor != "multinomial" {
		t.Errorf("naive_bayes_flavor = %q, want multinomial", meta.NaiveBayesFlavor)
	}
	if meta.IsDeepLearning {
		t.Error("classical model flagged deep")
	}
}

func TestRetrainOverwriteReplacesPackage(t *testing.T) {
	trainer, store := newTestTrainer(t, &stubCorpus{records: separableRecords()})
	trainer.Start(context.Background())
	defer trainer.Stop()

	sources := map[string]string{"engineering": "/a", "medicine": "/b"}

	obs := newRecordingObserver()
	if _, err := trainer.Enqueue(models.TrainRequest{
		Name:    "profession",
		Variant: "naive_bayes",
		Sources: sources,
	}, obs); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	obs.wait(t)

	// Same slug without the flag stays a conflict.
	if _, err := trainer.Enqueue(models.TrainRequest{
		Name:    "profession",
		Variant: "knn",
		Sources: sources,
	}, nil); !errors.Is(err, ErrModelExists) {
		t.Fatalf("retrain without overwrite err = %v, want ErrModelExists", err)
	}

	obs2 := newRecordingObserver()
	jobID, err := trainer.Enqueue(models.TrainRequest{
		Name:      "profession",
		Variant:   "knn",
		Sources:   sources,
		Overwrite: true,
	}, obs2)
	if err != nil {
		t.Fatalf("Enqueue with overwrite: %v", err)
	}
	obs2.wait(t)

	job, err := trainer.Job(jobID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if job.State != JobCompleted {
		t.Fatalf("retrain job state = %s (%s), want completed", job.State, job.Error)
	}

	meta, err := store.GetMetadata("profession")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.Variant != "knn" {
		t.Errorf("variant after retrain = %q, want knn", meta.Variant)
	}
	if len(store.List()) != 1 {
		t.Errorf("store holds %d packages after retrain, want 1", len(store.List()))
	}
}

func TestTrainJobFailureLeavesStoreEmpty(t *testing.T) {
	// Single-class corpus cannot be fitted.
	records := []CorpusRecord{
		{Text: "golang backend", Profession: "engineering", Filename: "a.pdf", Status: "success"},
		{Text: "kubernetes cluster", Profession: "engineering", Filename: "b.pdf", Status: "success"},
	}
	trainer, store := newTestTrainer(t, &stubCorpus{records: records})
	trainer.Start(context.Background())
	defer trainer.Stop()

	obs := newRecordingObserver()
	jobID, err := trainer.Enqueue(models.TrainRequest{
		Name:    "broken",
		Variant: "logistic_regression",
		Sources: map[string]string{"engineering": "/a"},
	}, obs)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	obs.wait(t)

	job, _ := trainer.Job(jobID)
	if job.State != JobFailed {
		t.Fatalf("job state = %s, want failed", job.State)
	}
	if job.Error == "" || obs.errMsg == "" {
		t.Error("failure carried no error message")
	}
	if store.Exists("broken") {
		t.Error("failed run left a package in the store")
	}
}

func TestTrainJobCancelledBeforeStart(t *testing.T) {
	trainer, store := newTestTrainer(t, &stubCorpus{records: separableRecords()})

	obs := newRecordingObserver()
	jobID, err := trainer.Enqueue(models.TrainRequest{
		Name:    "cancelled_model",
		Variant: "knn",
		Sources: map[string]string{"engineering": "/a"},
	}, obs)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := trainer.Cancel(jobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	// The worker starts after the cancel flag is already set.
	trainer.Start(context.Background())
	defer trainer.Stop()

	obs.wait(t)

	job, _ := trainer.Job(jobID)
	if job.State != JobCancelled {
		t.Fatalf("job state = %s, want cancelled", job.State)
	}
	if store.Exists("cancelled_model") {
		t.Error("cancelled run left a package in the store")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	trainer, _ := newTestTrainer(t, &stubCorpus{})
	if err := trainer.Cancel(uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
	if _, err := trainer.Job(uuid.New()); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

// panicObserver blows up on completion; the worker must survive it.
type panicObserver struct{ recordingObserver }

func (o *panicObserver) OnComplete(result ml.TrainResult) {
	defer close(o.done)
	panic("observer bug")
}

func TestObserverPanicRecovered(t *testing.T) {
	trainer, store := newTestTrainer(t, &stubCorpus{records: separableRecords()})
	trainer.Start(context.Background())
	defer trainer.Stop()

	obs := &panicObserver{recordingObserver{done: make(chan struct{})}}
	jobID, err := trainer.Enqueue(models.TrainRequest{
		Name:    "panicky",
		Variant: "naive_bayes",
		Sources: map[string]string{"engineering": "/a"},
	}, obs)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	select {
	case <-obs.done:
	case <-time.After(60 * time.Second):
		t.Fatal("timed out waiting for training to finish")
	}

	job, _ := trainer.Job(jobID)
	if job.State != JobCompleted {
		t.Fatalf("job state = %s, want completed despite observer panic", job.State)
	}
	if !store.Exists("panicky") {
		t.Error("model missing after observer panic")
	}

	// A second job still runs.
	obs2 := newRecordingObserver()
	if _, err := trainer.Enqueue(models.TrainRequest{
		Name:    "after_panic",
		Variant: "naive_bayes",
		Sources: map[string]string{"engineering": "/a"},
	}, obs2); err != nil {
		t.Fatalf("Enqueue after panic: %v", err)
	}
	obs2.wait(t)
	if !obs2.completed {
		t.Error("worker stopped processing after an observer panic")
	}
}
