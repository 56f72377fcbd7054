// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"bytes"
	"context"
	"flag"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
	"sync"
	"time"

	"github.com/devblok/korusync/core"
	"github.com/devblok/korusync/gfx/headless"
	"github.com/devblok/korusync/material"
	"github.com/devblok/korusync/scene"
	"github.com/devblok/korusync/utility/kar"
	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
)

func init() {
	runtime.LockOSThread()
}

var (
	envFile      = flag.String("env", "", "Load configuration from an env file")
	duration     = flag.Duration("duration", 5*time.Second, "How long to churn materials")
	cpuProfile   = flag.String("cpuprof", "", "Profile CPU usage to file")
	traceProfile = flag.String("trace", "", "Trace output for profiling")
)

// builtin holds the materials used when no archive is configured.
var builtin = packr.NewBox("./assets")

func main() {
	flag.Parse()
	os.Exit(run())
}

// run returns the process exit code. Fatal errors are logged and returned
// so that profiles and the library are closed before exiting.
func run() int {
	var envFiles []string
	if *envFile != "" {
		envFiles = append(envFiles, *envFile)
	}
	configuration, err := core.LoadConfiguration(envFiles...)
	if err != nil {
		log.Error(err)
		return 1
	}

	logger, err := core.NewLogger(configuration.Log, os.Stderr)
	if err != nil {
		log.Error(err)
		return 1
	}

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			logger.Error(err)
			return 1
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			logger.Error(err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	if *traceProfile != "" {
		f, err := os.Create(*traceProfile)
		if err != nil {
			logger.Error(err)
			return 1
		}
		defer f.Close()
		if err := trace.Start(f); err != nil {
			logger.Error(err)
			return 1
		}
		defer trace.Stop()
	}

	sc := scene.New(configuration, logger)
	device := headless.NewDevice(sc.Queue().IsOwner)

	library, err := openLibrary(configuration.Scene.MaterialArchive, device)
	if err != nil {
		logger.Error(err)
		return 1
	}
	defer library.Close()

	names := library.Names()
	if len(names) == 0 {
		logger.Error("no materials in library")
		return 1
	}
	logger.WithField("materials", names).Info("material library loaded")

	workCtx, stopWork := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stopWork()
	workCtx, cancelWork := context.WithTimeout(workCtx, *duration)
	defer cancelWork()

	sceneCtx, stopScene := context.WithCancel(context.Background())
	defer stopScene()

	programSync := sync.WaitGroup{}
	for w := 0; w < configuration.Scene.Workers; w++ {
		programSync.Add(1)
		go churn(workCtx, &programSync, logger.WithField("worker", w), sc.Materials(), library, names, int64(w))
	}
	go func() {
		programSync.Wait()
		stopScene()
	}()

	/* Scene loop */
	frameLog := logger.WithField("component", "frame-counter")
	renderer := scene.RenderFunc(func(frame int64) error {
		if frame%int64(max(configuration.Time.FramesPerSecond, 1)) == 0 {
			frameLog.WithFields(log.Fields{
				"frame":     frame,
				"materials": sc.Materials().Len(),
				"programs":  device.Live(),
				"pending":   sc.Queue().Pending(),
			}).Info("frame")
		}
		return nil
	})
	if err := sc.Run(sceneCtx, renderer); err != nil {
		logger.Error(err)
		return 1
	}

	stats := sc.Queue().Stats()
	logger.WithFields(log.Fields{
		"submitted":  stats.Submitted,
		"executed":   stats.Executed,
		"failed":     stats.Failed,
		"compiled":   device.Compiled(),
		"released":   device.Released(),
		"registered": sc.Materials().Len(),
	}).Info("done")
	return 0
}

// churn adds and removes library materials until ctx is done. Every add is
// matched by a remove before churn returns.
func churn(ctx context.Context, wg *sync.WaitGroup, l *log.Entry, manager *material.Manager, library *material.Library, names []string, seed int64) {
	defer wg.Done()
	rnd := rand.New(rand.NewSource(seed))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		m, err := library.LoadMaterial(names[rnd.Intn(len(names))])
		if err != nil {
			l.WithError(err).Error("material load failed")
			continue
		}
		manager.AddMaterial(m)
		time.Sleep(time.Duration(rnd.Intn(20)) * time.Millisecond)
		manager.RemoveMaterial(m)
	}
}

// openLibrary maps the archive at file, or packs the built-in assets when
// file is empty.
func openLibrary(file string, device *headless.Device) (*material.Library, error) {
	if file != "" {
		return material.OpenLibrary(file, device)
	}

	builder := kar.NewBuilder(kar.Header{
		Author:      "koru",
		DateCreated: time.Now().Unix(),
		Version:     1,
	})
	for _, name := range builtin.List() {
		data, err := builtin.Find(name)
		if err != nil {
			return nil, err
		}
		if err := builder.Add(filepath.ToSlash(name), bytes.NewReader(data)); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := builder.WriteTo(&buf); err != nil {
		return nil, err
	}
	ar, err := kar.Open(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	return material.NewLibrary(ar, device), nil
}
