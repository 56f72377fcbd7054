// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package scene_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/devblok/korusync/core"
	"github.com/devblok/korusync/frame"
	"github.com/devblok/korusync/gfx"
	"github.com/devblok/korusync/gfx/headless"
	"github.com/devblok/korusync/material"
	"github.com/devblok/korusync/scene"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var phong = gfx.ProgramSource{
	Name:     "phong",
	Vertex:   "void main() { gl_Position = vec4(0); }",
	Fragment: "void main() {}",
}

func testConfiguration() core.Configuration {
	cfg := core.DefaultConfiguration
	cfg.Time.FramesPerSecond = 500
	return cfg
}

// runScene runs s on its own goroutine until the returned stop is called.
func runScene(t *testing.T, s *scene.Scene, r scene.Renderer) (stop func() error) {
	first := make(chan struct{})
	var once sync.Once
	wrapped := scene.RenderFunc(func(num int64) error {
		once.Do(func() { close(first) })
		if r != nil {
			return r.Render(num)
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- s.Run(ctx, wrapped) }()

	select {
	case <-first:
	case err := <-result:
		if errors.Is(err, frame.ErrThreadUnsupported) {
			t.Skip(err)
		}
		t.Fatalf("scene stopped early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("scene did not start")
	}

	return func() error {
		cancel()
		return <-result
	}
}

func TestMaterialsAttachOnSceneThread(t *testing.T) {
	s := scene.New(testConfiguration(), nil)
	dev := headless.NewDevice(s.Queue().IsOwner)
	stop := runScene(t, s, nil)

	const workers = 4
	added := make([][]*material.Standard, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				m := material.NewStandard(dev, phong, material.DefaultProperties)
				s.Materials().AddMaterial(m)
				added[w] = append(added[w], m)
				if i%5 == 0 {
					s.Materials().RemoveMaterial(m)
				}
			}
		}(w)
	}
	wg.Wait()
	require.NoError(t, stop())

	assert.Equal(t, workers*20, s.Materials().Len())
	for _, list := range added {
		for i, m := range list {
			assert.Equal(t, i%5 != 0, m.Attached())
			assert.Equal(t, i%5 != 0, s.Materials().HasMaterial(m))
		}
	}
	assert.Zero(t, s.Queue().Stats().Failed)
	assert.Zero(t, s.Queue().Pending())
	assert.Equal(t, workers*20, dev.Live())
	assert.NotZero(t, s.Frames())
}

func TestOfferTaskFromRendererRunsImmediately(t *testing.T) {
	s := scene.New(testConfiguration(), nil)
	dev := headless.NewDevice(s.Queue().IsOwner)
	m := material.NewStandard(dev, phong, material.DefaultProperties)

	attachedInFrame := make(chan bool, 1)
	var once sync.Once
	stop := runScene(t, s, scene.RenderFunc(func(int64) error {
		once.Do(func() {
			s.Materials().AddMaterial(m)
			attachedInFrame <- m.Attached()
		})
		return nil
	}))

	select {
	case attached := <-attachedInFrame:
		assert.True(t, attached)
	case <-time.After(5 * time.Second):
		t.Fatal("renderer was not called")
	}
	require.NoError(t, stop())
}

func TestPendingTasksFlushedOnStop(t *testing.T) {
	s := scene.New(testConfiguration(), nil)
	var ran []int
	for i := 0; i < 3; i++ {
		i := i
		s.OfferTask(frame.Func(func() error {
			ran = append(ran, i)
			return nil
		}))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Run(ctx, nil)
	if errors.Is(err, frame.ErrThreadUnsupported) {
		t.Skip(err)
	}
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, ran)
}

func TestRunTwice(t *testing.T) {
	s := scene.New(testConfiguration(), nil)
	stop := runScene(t, s, nil)
	assert.ErrorIs(t, s.Run(context.Background(), nil), scene.ErrRunning)
	require.NoError(t, stop())
}

func TestRenderAndTaskErrorsAreLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := scene.New(testConfiguration(), logger)

	var once sync.Once
	rendered := make(chan struct{})
	stop := runScene(t, s, scene.RenderFunc(func(int64) error {
		var err error
		once.Do(func() {
			s.OfferTask(frame.Func(func() error { return errors.New("lost device") }))
			err = errors.New("swapchain out of date")
			close(rendered)
		})
		return err
	}))
	<-rendered
	require.NoError(t, stop())

	var messages []string
	for _, e := range hook.AllEntries() {
		if e.Level == log.ErrorLevel {
			messages = append(messages, e.Message)
			assert.Equal(t, "scene", e.Data["component"])
		}
	}
	assert.ElementsMatch(t, []string{"frame task failed", "render failed"}, messages)
}
