package anim

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moneybot/moneybotd/internal/model"
)

// Phase timings from the production animation: gold token rain, green
// success flash, then back to the connection-appropriate idle face.
const (
	DefaultCelebration = 2200 * time.Millisecond
	DefaultSuccess     = 1500 * time.Millisecond
)

// Renderer is the display collaborator. Implementations own the visual
// detail; the worker only sequences phases.
type Renderer interface {
	Celebrate(ev model.SaleEvent)
	Success()
	Idle()
}

// Phases holds the per-phase durations, injectable for tests.
type Phases struct {
	Celebration time.Duration
	Success     time.Duration
}

func DefaultPhases() Phases {
	return Phases{Celebration: DefaultCelebration, Success: DefaultSuccess}
}

// Worker drains the queue and plays one full sequence per event. The
// sequence is non-interruptible: events arriving mid-animation wait in the
// queue for the next iteration.
type Worker struct {
	queue    *Queue
	renderer Renderer
	phases   Phases
	sleep    func(time.Duration)
	log      *logrus.Entry
}

func NewWorker(queue *Queue, renderer Renderer, phases Phases, logger *logrus.Logger) *Worker {
	if phases.Celebration <= 0 {
		phases.Celebration = DefaultCelebration
	}
	if phases.Success <= 0 {
		phases.Success = DefaultSuccess
	}
	return &Worker{
		queue:    queue,
		renderer: renderer,
		phases:   phases,
		sleep:    time.Sleep,
		log:      logger.WithField("component", "anim"),
	}
}

// Run blocks until the queue is closed. Intended to be its own goroutine.
func (w *Worker) Run() {
	for {
		ev, ok := w.queue.Dequeue()
		if !ok {
			w.log.Debug("queue closed, worker exiting")
			return
		}
		w.play(ev)
	}
}

func (w *Worker) play(ev model.SaleEvent) {
	w.log.WithFields(logrus.Fields{
		"event_id": ev.EventID,
		"pending":  w.queue.Len(),
	}).Info("playing sale animation")

	w.renderer.Celebrate(ev)
	w.sleep(w.phases.Celebration)

	w.renderer.Success()
	w.sleep(w.phases.Success)

	w.renderer.Idle()
}
