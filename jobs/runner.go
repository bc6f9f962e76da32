package jobs

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	cron "github.com/robfig/cron"
	"github.com/sirupsen/logrus"
)

type Job interface {
	Run()
}

type CronJob interface {
	Schedule() string
	Job
}

// Runner executes background jobs on a cron, guarding against overlapping
// runs of the same job.
type Runner struct {
	cron     *cron.Cron
	cronJobs []CronJob
	running  mapset.Set[CronJob]
	mu       sync.Mutex
}

func NewRunner(cronJobs []CronJob) *Runner {
	return &Runner{
		cron:     cron.New(),
		cronJobs: cronJobs,
		running:  mapset.NewSet[CronJob](),
	}
}

// Run schedules the jobs and starts the cron in its own goroutines.
func (r *Runner) Run() {
	for _, job := range r.cronJobs {
		err := r.cron.AddFunc(job.Schedule(), func() {
			r.mu.Lock()
			if r.running.Contains(job) {
				r.mu.Unlock()
				logrus.Warn("job is still running, skipping this tick")
				return
			}
			r.running.Add(job)
			r.mu.Unlock()

			defer func() {
				r.mu.Lock()
				defer r.mu.Unlock()
				r.running.Remove(job)
			}()

			job.Run()
		})
		if err != nil {
			logrus.Errorf("failed to add job to cron: %v", err)
			panic(err)
		}
	}

	r.cron.Start()
}

func (r *Runner) Stop() {
	logrus.Infof("stopping all jobs")
	r.cron.Stop()
}
