// Package worker offloads renders to a background goroutine, one at a time.
//
// A Worker never queues: while a render is in flight Submit fails with
// ErrBusy and the caller is expected to retry after the current Job is done.
// A running render cannot be cancelled.
package worker

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mandel "github.com/marben/histomandel"
)

var ErrBusy = errors.New("render in flight")

// Job is the future of one submitted render.
type Job struct {
	Request mandel.Request

	done    chan struct{}
	img     *image.RGBA
	elapsed time.Duration
	err     error
}

// Done is closed once the render has finished.
func (j *Job) Done() <-chan struct{} { return j.done }

// Result returns the outcome of a finished job. It must only be called after Done is closed.
func (j *Job) Result() (*image.RGBA, time.Duration, error) {
	return j.img, j.elapsed, j.err
}

// Wait blocks until the job finishes or ctx ends. An expired ctx only stops
// the waiting; the render itself keeps running to completion.
func (j *Job) Wait(ctx context.Context) (*image.RGBA, error) {
	select {
	case <-j.done:
		return j.img, j.err
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}
}

// Stats are the lifetime counters of a Worker.
type Stats struct {
	Submitted int
	Rejected  int
	Failed    int
}

type Worker struct {
	name     string
	renderer mandel.Renderer

	current *Job
	stats   Stats
	m       sync.Mutex
}

func New(name string, r mandel.Renderer) *Worker {
	return &Worker{name: name, renderer: r}
}

// Submit starts rendering req in the background.
// It returns ErrBusy if another job has not finished yet.
func (w *Worker) Submit(req mandel.Request) (*Job, error) {
	w.m.Lock()
	defer w.m.Unlock()

	if w.current != nil {
		w.stats.Rejected++
		return nil, ErrBusy
	}
	job := &Job{Request: req, done: make(chan struct{})}
	w.current = job
	w.stats.Submitted++

	go w.run(job)
	return job, nil
}

// Render submits req and waits for the result.
func (w *Worker) Render(ctx context.Context, req mandel.Request) (*image.RGBA, error) {
	job, err := w.Submit(req)
	if err != nil {
		return nil, err
	}
	return job.Wait(ctx)
}

// InFlight reports whether a job is currently rendering.
func (w *Worker) InFlight() bool {
	w.m.Lock()
	defer w.m.Unlock()
	return w.current != nil
}

func (w *Worker) Stats() Stats {
	w.m.Lock()
	defer w.m.Unlock()
	return w.stats
}

func (w *Worker) run(job *Job) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			job.img, job.err = nil, fmt.Errorf("render panicked: %v", r)
		}
		job.elapsed = time.Since(start)

		w.m.Lock()
		w.current = nil
		if job.err != nil {
			w.stats.Failed++
		}
		s := w.stats
		w.m.Unlock()

		if job.err != nil {
			log.Printf("worker %s: render failed: %v", w.name, job.err)
		} else {
			log.Printf("worker %s: rendered %dx%d in %s (renders: %d, rejected: %d)",
				w.name, job.Request.Viewport.Width, job.Request.Viewport.Height, job.elapsed, s.Submitted, s.Rejected)
		}
		close(job.done)
	}()

	job.img, job.err = w.renderer.Render(job.Request)
}
