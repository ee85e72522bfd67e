package worker

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/pilcrowbooks/pilcrow/pkg/config"
	"github.com/pilcrowbooks/pilcrow/pkg/database"
	"github.com/pilcrowbooks/pilcrow/pkg/ingestion"
	"github.com/pilcrowbooks/pilcrow/pkg/jobs"
	"github.com/pilcrowbooks/pilcrow/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/uptrace/bun"
)

var processID = randStringBytes(8)

// Refresher re-fetches metadata for every book in the catalog.
type Refresher interface {
	RefreshMetadataWithProgress(ctx context.Context, progress ingestion.ProgressFunc) (*ingestion.RefreshResult, error)
}

type Worker struct {
	config *config.Config
	log    logger.Logger

	processFuncs map[string]func(ctx context.Context, job *models.Job) error

	jobService *jobs.Service
	refresher  Refresher

	// ctx is canceled on shutdown so that long-running jobs stop between books.
	ctx    context.Context
	cancel context.CancelFunc

	queue          chan *models.Job
	shutdown       chan struct{}
	doneFetching   chan struct{}
	doneProcessing chan struct{}
}

func New(cfg *config.Config, db *bun.DB, refresher Refresher) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	if cfg.DatabaseDebug {
		ctx = database.WithLogging(ctx)
	}

	w := &Worker{
		config: cfg,
		log:    logger.New(),

		jobService: jobs.NewService(db),
		refresher:  refresher,

		ctx:    ctx,
		cancel: cancel,

		queue:          make(chan *models.Job, cfg.WorkerProcesses),
		shutdown:       make(chan struct{}),
		doneFetching:   make(chan struct{}),
		doneProcessing: make(chan struct{}, cfg.WorkerProcesses),
	}

	w.processFuncs = map[string]func(ctx context.Context, job *models.Job) error{
		models.JobTypeRefreshMetadata: w.ProcessRefreshMetadataJob,
	}

	return w
}

func (w *Worker) Start() {
	go w.fetchJobs()
	for i := 0; i < w.config.WorkerProcesses; i++ {
		go w.processJobs()
	}
}

func (w *Worker) fetchJobs() {
	duration := w.config.WorkerPollInterval
	timer := time.NewTimer(duration)

	for {
		select {
		case <-w.shutdown:
			// We're shutting down, so stop adding more jobs to the queue.
			timer.Stop()
			w.doneFetching <- struct{}{}
			return
		case <-timer.C:
			j, err := w.jobService.ListJobs(w.ctx, jobs.ListJobsOptions{
				Limit:              pointerutil.Int(1),
				Statuses:           []string{models.JobStatusPending, models.JobStatusInProgress},
				ProcessIDToExclude: &processID,
			})
			if err != nil {
				w.log.Err(err).Error("list jobs error")
				timer.Reset(duration)
				continue
			}
			for _, job := range j {
				select {
				case w.queue <- job:
				case <-w.shutdown:
					w.doneFetching <- struct{}{}
					return
				}
			}
			timer.Reset(duration)
		}
	}
}

func (w *Worker) processJobs() {
	for {
		select {
		case <-w.shutdown:
			w.doneProcessing <- struct{}{}
			return
		case job := <-w.queue:
			w.processJob(job)
		}
	}
}

func (w *Worker) processJob(queued *models.Job) {
	// Prep the context to be passed down to the process function.
	id, err := uuid.NewRandom()
	if err != nil {
		w.log.Err(err).Error("new uuid error")
		return
	}
	log := w.log.ID(id.String()).Root(logger.Data{"job_id": queued.ID, "type": queued.Type, "process_id": processID})
	ctx := log.WithContext(w.ctx)

	// The queued copy can be stale if the fetcher listed it again before an
	// earlier claim landed.
	job, err := w.jobService.RetrieveJob(ctx, jobs.RetrieveJobOptions{ID: &queued.ID})
	if err != nil {
		log.Err(err).Error("retrieve job error")
		return
	}
	if job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed ||
		(job.ProcessID != nil && *job.ProcessID == processID) {
		return
	}

	// Update job to be in progress and claimed by this process.
	job.Status = models.JobStatusInProgress
	job.ProcessID = &processID

	err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"status", "process_id"},
	})
	if err != nil {
		log.Err(err).Error("update job error")
		return
	}

	// Find and invoke the appropriate process function.
	fn, ok := w.processFuncs[job.Type]
	if !ok {
		log.Error("can't find process function for type")
		w.finish(ctx, job, models.JobStatusFailed)
		return
	}
	err = fn(ctx, job)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// Left in progress so that the next process picks it back up.
			log.Info("job interrupted by shutdown")
			return
		}
		log.Err(err).Error("process error")
		w.finish(ctx, job, models.JobStatusFailed)
		return
	}

	// Update job to be completed so that it's not picked up anymore.
	w.finish(ctx, job, models.JobStatusCompleted)
}

func (w *Worker) finish(ctx context.Context, job *models.Job, status string) {
	job.Status = status
	columns := []string{"status"}
	if job.DataParsed != nil {
		columns = append(columns, "data")
	}

	err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: columns,
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Error("update job error")
	}
}

// ProcessRefreshMetadataJob refreshes every book and records the per-book
// outcome in the job's data.
func (w *Worker) ProcessRefreshMetadataJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)
	log.Info("processing refresh metadata job")

	progress := func(done, total int) {
		if total == 0 {
			return
		}
		job.Progress = done * 100 / total
		err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
			Columns: []string{"progress"},
		})
		if err != nil {
			log.Err(err).Warn("update job progress error")
		}
	}

	result, err := w.refresher.RefreshMetadataWithProgress(ctx, progress)
	if result != nil {
		data := &models.JobRefreshMetadataData{
			Total:   result.Total,
			Updated: result.Updated,
		}
		for _, f := range result.Failed {
			data.Failed = append(data.Failed, models.JobRefreshFailedBook{
				BookID: f.BookID,
				ISBN:   f.ISBN,
				Error:  f.Error,
			})
		}
		job.DataParsed = data
	}
	if err != nil {
		return errors.WithStack(err)
	}

	job.Progress = 100
	err = w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"progress", "data"},
	})
	return errors.WithStack(err)
}

func (w *Worker) Shutdown() {
	close(w.shutdown)
	w.cancel()

	<-w.doneFetching
	for i := 0; i < w.config.WorkerProcesses; i++ {
		<-w.doneProcessing
	}
}

const letterBytes = "abcdef0123456789"

func randStringBytes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letterBytes[rand.Intn(len(letterBytes))]
	}
	return string(b)
}
