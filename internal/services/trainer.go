package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Yonsn76/cv-clasification-sub000/internal/ml"
	"github.com/Yonsn76/cv-clasification-sub000/internal/models"
	"github.com/Yonsn76/cv-clasification-sub000/internal/modelstore"
)

// TrainingObserver receives the lifecycle events of one training run. All
// callbacks fire on the worker goroutine; panics inside them are recovered
// and logged so a broken observer cannot kill the worker.
type TrainingObserver interface {
	OnProgress(percent int, message string)
	OnEpoch(current, total int, metrics ml.EpochMetrics)
	OnComplete(result ml.TrainResult)
	OnError(message string)
}

type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// TrainJob is the externally visible state of one training request.
type TrainJob struct {
	ID         uuid.UUID       `json:"id"`
	ModelName  string          `json:"model_name"`
	Variant    ml.Variant      `json:"variant"`
	State      JobState        `json:"state"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Result     *ml.TrainResult `json:"result,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

var (
	ErrJobNotFound  = errors.New("training job not found")
	ErrQueueFull    = errors.New("training queue is full")
	ErrInvalidName  = errors.New("invalid model name")
	ErrModelExists  = errors.New("a model with this name already exists")
	ErrNoSources    = errors.New("at least one profession folder is required")
	ErrTrainStopped = errors.New("trainer is stopped")
)

type TrainerService interface {
	Start(ctx context.Context)
	Stop()
	Enqueue(req models.TrainRequest, obs TrainingObserver) (uuid.UUID, error)
	Job(id uuid.UUID) (*TrainJob, error)
	Cancel(id uuid.UUID) error
}

type trainerService struct {
	corpus       CorpusBuilder
	store        *modelstore.Store
	bertCacheDir string

	jobQueue chan uuid.UUID
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	jobs    map[uuid.UUID]*trainJob
	stopped bool
}

type trainJob struct {
	TrainJob
	request   models.TrainRequest
	observer  TrainingObserver
	cancelled atomic.Bool
}

func NewTrainerService(corpus CorpusBuilder, store *modelstore.Store, bertCacheDir string, queueSize int) TrainerService {
	if queueSize <= 0 {
		queueSize = 10
	}
	return &trainerService{
		corpus:       corpus,
		store:        store,
		bertCacheDir: bertCacheDir,
		jobQueue:     make(chan uuid.UUID, queueSize),
		stopChan:     make(chan struct{}),
		jobs:         make(map[uuid.UUID]*trainJob),
	}
}

// Start implements TrainerService. Training runs are CPU-bound and share the
// model store, so a single worker drains the queue.
func (t *trainerService) Start(ctx context.Context) {
	log.Println("🚀 Starting training worker")
	t.wg.Add(1)
	go t.processJobs(ctx)
}

// Stop implements TrainerService.
func (t *trainerService) Stop() {
	log.Println("🛑 Stopping training worker...")
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
	close(t.stopChan)
	t.wg.Wait()
	log.Println("✅ Training worker stopped")
}

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Slugify normalises a model name into a package directory name.
func Slugify(name string) (string, error) {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "_")
	if !slugPattern.MatchString(slug) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return slug, nil
}

// Enqueue implements TrainerService. Validation happens here, synchronously,
// so the caller gets a 4xx instead of a failed job for bad input.
func (t *trainerService) Enqueue(req models.TrainRequest, obs TrainingObserver) (uuid.UUID, error) {
	variant, err := ml.ParseVariant(req.Variant)
	if err != nil {
		return uuid.Nil, err
	}
	slug, err := Slugify(req.Name)
	if err != nil {
		return uuid.Nil, err
	}
	if len(req.Sources) == 0 {
		return uuid.Nil, ErrNoSources
	}
	// Re-training an existing slug replaces its package, but only when the
	// caller asks for it.
	if t.store.Exists(slug) && !req.Overwrite {
		return uuid.Nil, fmt.Errorf("%w: %s", ErrModelExists, slug)
	}

	job := &trainJob{
		TrainJob: TrainJob{
			ID:         uuid.New(),
			ModelName:  slug,
			Variant:    variant,
			State:      JobQueued,
			EnqueuedAt: time.Now(),
		},
		request:  req,
		observer: obs,
	}

	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return uuid.Nil, ErrTrainStopped
	}
	t.jobs[job.ID] = job
	t.mu.Unlock()

	select {
	case t.jobQueue <- job.ID:
		log.Printf("📥 Training job %s enqueued (model %s, variant %s)\n", job.ID, slug, variant)
		return job.ID, nil
	default:
		t.mu.Lock()
		delete(t.jobs, job.ID)
		t.mu.Unlock()
		return uuid.Nil, ErrQueueFull
	}
}

// Job implements TrainerService; the returned snapshot is a copy.
func (t *trainerService) Job(id uuid.UUID) (*TrainJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	snapshot := job.TrainJob
	return &snapshot, nil
}

// Cancel implements TrainerService. The flag is checked between corpus files
// and between epochs; a running job stops at the next checkpoint.
func (t *trainerService) Cancel(id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	job.cancelled.Store(true)
	return nil
}

func (t *trainerService) processJobs(ctx context.Context) {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopChan:
			return
		case <-ctx.Done():
			return
		case id := <-t.jobQueue:
			t.mu.Lock()
			job := t.jobs[id]
			t.mu.Unlock()
			if job == nil {
				continue
			}
			t.runJob(job)
		}
	}
}

func (t *trainerService) runJob(job *trainJob) {
	log.Printf("👷 Training job %s started (model %s)\n", job.ID, job.ModelName)
	t.update(job, func(j *TrainJob) {
		j.State = JobRunning
		j.Message = "building corpus"
	})

	model, result, err := t.train(job)
	now := time.Now()

	switch {
	case errors.Is(err, ml.ErrCancelled):
		t.update(job, func(j *TrainJob) {
			j.State = JobCancelled
			j.Error = err.Error()
			j.FinishedAt = &now
		})
		t.notify(job, func(o TrainingObserver) { o.OnError("training cancelled") })
		log.Printf("🛑 Training job %s cancelled\n", job.ID)
		return
	case err != nil:
		t.update(job, func(j *TrainJob) {
			j.State = JobFailed
			j.Error = err.Error()
			j.FinishedAt = &now
		})
		t.notify(job, func(o TrainingObserver) { o.OnError(err.Error()) })
		log.Printf("❌ Training job %s failed: %v\n", job.ID, err)
		return
	}

	if err := t.saveModel(job, model, result); err != nil {
		t.update(job, func(j *TrainJob) {
			j.State = JobFailed
			j.Error = err.Error()
			j.FinishedAt = &now
		})
		t.notify(job, func(o TrainingObserver) { o.OnError(err.Error()) })
		log.Printf("❌ Training job %s failed to save model: %v\n", job.ID, err)
		return
	}

	t.update(job, func(j *TrainJob) {
		j.State = JobCompleted
		j.Progress = 100
		j.Message = "training complete"
		j.Result = result
		j.FinishedAt = &now
	})
	t.notify(job, func(o TrainingObserver) { o.OnComplete(*result) })
	log.Printf("✅ Training job %s completed (model %s, accuracy %.4f)\n", job.ID, job.ModelName, result.Accuracy)
}

// train builds the corpus and runs the variant's pipeline. Corpus progress is
// mapped onto 0-20%; the trainers report the remaining 20-100%.
func (t *trainerService) train(job *trainJob) (ml.Model, *ml.TrainResult, error) {
	req := job.request

	records, stats, err := t.corpus.Build(req.Sources,
		func(done, total int, file string) {
			percent := done * 20 / total
			t.progress(job, percent, fmt.Sprintf("extracting %s (%d/%d)", file, done, total))
		},
		job.cancelled.Load,
	)
	if err != nil {
		return nil, nil, err
	}
	if stats.Failed > 0 {
		log.Printf("⚠️  Corpus for job %s: %d of %d files failed extraction\n", job.ID, stats.Failed, stats.Total)
	}
	samples := Samples(records)
	if len(samples) == 0 {
		return nil, nil, ml.ErrEmptyCorpus
	}
	if job.cancelled.Load() {
		return nil, nil, ml.ErrCancelled
	}

	if job.Variant.IsDeep() {
		return t.trainNeural(job, samples)
	}
	return t.trainClassical(job, samples)
}

func (t *trainerService) trainClassical(job *trainJob, samples []ml.Sample) (ml.Model, *ml.TrainResult, error) {
	cfg := ml.ClassicalConfig{
		Variant:      job.Variant,
		Hyperparams:  job.request.Hyperparams,
		TestFraction: job.request.TestFraction,
		Progress: func(percent int, message string) {
			t.progress(job, 20+percent*80/100, message)
		},
	}
	model, result, err := ml.TrainClassical(samples, cfg)
	if err != nil {
		return nil, nil, err
	}
	return model, result, nil
}

func (t *trainerService) trainNeural(job *trainJob, samples []ml.Sample) (ml.Model, *ml.TrainResult, error) {
	hp := ml.Hyperparams(job.request.Hyperparams)
	cfg := ml.NeuralConfig{
		Variant:      job.Variant,
		Epochs:       job.request.Epochs,
		BatchSize:    job.request.BatchSize,
		TestFraction: job.request.TestFraction,
		MaxLen:       hp.Int("max_length", 0),
		VocabSize:    hp.Int("vocab_size", 0),
		BertCacheDir: t.bertCacheDir,
		EncoderName:  hp.String("encoder_name", ""),
		OnEpoch: func(m ml.EpochMetrics) bool {
			percent := 20 + m.Epoch*80/m.Total
			t.update(job, func(j *TrainJob) {
				j.Progress = percent
				j.Message = fmt.Sprintf("epoch %d/%d loss=%.4f val_loss=%.4f", m.Epoch, m.Total, m.Loss, m.ValLoss)
			})
			t.notify(job, func(o TrainingObserver) { o.OnEpoch(m.Epoch, m.Total, m) })
			return !job.cancelled.Load()
		},
	}
	model, result, err := ml.TrainNeural(samples, cfg)
	if err != nil {
		return nil, nil, err
	}
	return model, result, nil
}

func (t *trainerService) saveModel(job *trainJob, model ml.Model, result *ml.TrainResult) error {
	req := job.request
	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Name
	}

	meta := modelstore.Metadata{
		Name:           job.ModelName,
		DisplayName:    displayName,
		Family:         job.Variant.Family(),
		Variant:        string(job.Variant),
		CreatedAt:      time.Now().UTC(),
		Classes:        result.Classes,
		ClassCount:     len(result.Classes),
		FeatureCount:   result.FeatureCount,
		MaxLength:      result.MaxLength,
		Hyperparams:    req.Hyperparams,
		TrainSize:      result.TrainSize,
		Accuracy:       result.Accuracy,
		IsDeepLearning: job.Variant.IsDeep(),
		FormatVersion:  modelstore.FormatVersion,
	}
	if job.Variant == ml.VariantNaiveBayes {
		meta.NaiveBayesFlavor = "multinomial"
	}

	switch m := model.(type) {
	case *ml.ClassicalModel:
		return t.store.SaveClassical(job.ModelName, m, meta)
	case *ml.NeuralModel:
		return t.store.SaveNeural(job.ModelName, m, meta)
	default:
		return fmt.Errorf("unsupported model type %T", model)
	}
}

func (t *trainerService) progress(job *trainJob, percent int, message string) {
	t.update(job, func(j *TrainJob) {
		if percent > j.Progress {
			j.Progress = percent
		}
		j.Message = message
	})
	t.notify(job, func(o TrainingObserver) { o.OnProgress(percent, message) })
}

func (t *trainerService) update(job *trainJob, fn func(*TrainJob)) {
	t.mu.Lock()
	fn(&job.TrainJob)
	t.mu.Unlock()
}

// notify delivers one observer event, swallowing observer panics.
func (t *trainerService) notify(job *trainJob, fn func(TrainingObserver)) {
	if job.observer == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️  Training observer panicked on job %s: %v\n", job.ID, r)
		}
	}()
	fn(job.observer)
}
