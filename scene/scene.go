// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package scene ties a render loop to the queue of work that must run on
// its thread. A Scene owns the thread it is run on for the duration of Run.
package scene

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/devblok/korusync/core"
	"github.com/devblok/korusync/frame"
	"github.com/devblok/korusync/material"
	log "github.com/sirupsen/logrus"
)

// ErrRunning is returned by Run when the scene is already running.
var ErrRunning = errors.New("scene: already running")

// Renderer draws a frame. It is called on the owning thread after the
// frame's tasks have run.
type Renderer interface {
	Render(frame int64) error
}

// RenderFunc adapts a function to a Renderer.
type RenderFunc func(frame int64) error

// Render implements Renderer.
func (f RenderFunc) Render(frame int64) error {
	return f(frame)
}

// New creates a scene with its own task queue and material manager.
func New(cfg core.Configuration, logger *log.Logger) *Scene {
	if logger == nil {
		logger = log.StandardLogger()
	}
	entry := logger.WithField("component", "scene")

	s := &Scene{
		cfg: cfg,
		log: entry,
	}
	s.queue = frame.NewQueue(frame.WithLogger(entry))
	s.materials = material.NewManager(s)
	return s
}

// Scene is a rendering context: one owning thread, one queue, one set of
// materials.
type Scene struct {
	cfg core.Configuration
	log *log.Entry

	queue     *frame.Queue
	materials *material.Manager

	running atomic.Bool
	frames  atomic.Int64
}

// OfferTask queues t for the owning thread. Called from the owning thread
// outside of a frame's task pass, t runs before OfferTask returns.
func (s *Scene) OfferTask(t frame.Task) {
	s.queue.Submit(t)
}

// Materials returns the material manager of the scene.
func (s *Scene) Materials() *material.Manager {
	return s.materials
}

// Queue returns the task queue of the scene.
func (s *Scene) Queue() *frame.Queue {
	return s.queue
}

// Frames returns the number of frames run so far.
func (s *Scene) Frames() int64 {
	return s.frames.Load()
}

// Run binds the calling goroutine to the scene and runs frames until ctx is
// done. Each frame drains the task queue, then renders. Tasks still pending
// when ctx is done run before Run returns. r may be nil.
func (s *Scene) Run(ctx context.Context, r Renderer) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer s.running.Store(false)

	if err := s.queue.Bind(); err != nil {
		return err
	}
	defer s.queue.Release()

	timeService := core.NewTime(s.cfg.Time)
	defer timeService.Stop()

	s.log.WithField("fps", timeService.Fps()).Info("scene loop started")
	started := time.Now()

FrameLoop:
	for {
		select {
		case <-ctx.Done():
			break FrameLoop
		case <-timeService.FpsTicker().C:
			s.frame(r)
		}
	}

	n, _ := s.queue.Drain()
	stats := s.queue.Stats()
	s.log.WithFields(log.Fields{
		"frames":   s.Frames(),
		"elapsed":  time.Since(started).Round(time.Millisecond),
		"flushed":  n,
		"executed": stats.Executed,
		"failed":   stats.Failed,
	}).Info("scene loop stopped")
	return nil
}

func (s *Scene) frame(r Renderer) {
	num := s.frames.Add(1)
	ran, _ := s.queue.Drain()
	if ran > 0 {
		s.log.WithFields(log.Fields{"frame": num, "tasks": ran}).Debug("frame tasks run")
	}
	if r == nil {
		return
	}
	if err := r.Render(num); err != nil {
		s.log.WithError(err).WithField("frame", num).Error("render failed")
	}
}
