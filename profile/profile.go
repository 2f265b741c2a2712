// Package profile provides a simple way to generate pprof compatible solve
// profiles: where relaxation attempts and search nodes are spent, per call
// site.
//
// Sessions are driven from the coordinating goroutine; sampling events may
// arrive from worker goroutines and are serialized through a worker routine.
package profile

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/google/pprof/profile"

	"github.com/tamarack-opt/tamarack/logger"
)

var (
	sessions       []*Profile // active sessions
	activeSessions uint32
)

// sample value columns
const (
	colAttempts = iota
	colNodes
	nbColumns
)

// Profile represents an active solve profiling session.
type Profile struct {
	// defaults to ./tamarack.pprof
	// if blank, profile is not written to disk
	filePath string

	// actual pprof profile struct
	// details on pprof format: https://github.com/google/pprof/blob/main/proto/README.md
	pprof profile.Profile

	functions map[string]*profile.Function
	locations map[uint64]*profile.Location

	nbSamples [nbColumns]int

	chDone chan struct{}
}

// Option defines configuration options for Profile.
type Option func(*Profile)

// WithPath controls the profile destination file. If blank, profile is not
// written.
//
// Defaults to ./tamarack.pprof.
func WithPath(path string) Option {
	return func(p *Profile) {
		p.filePath = path
	}
}

// WithNoOutput indicates that the profile is not going to be written to
// disk.
//
// This is equivalent to WithPath("")
func WithNoOutput() Option {
	return func(p *Profile) {
		p.filePath = ""
	}
}

// Start creates a new active profiling session. When Stop() is called, this
// session is removed from active profiling sessions and may be serialized
// to disk as a pprof compatible file (see WithPath option).
//
// It is allowed to create multiple overlapping profiling sessions in one
// solve.
func Start(options ...Option) *Profile {

	// start the worker first time a profiling session starts.
	onceInit.Do(func() {
		go worker()
	})

	p := Profile{
		functions: make(map[string]*profile.Function),
		locations: make(map[uint64]*profile.Location),
		filePath:  filepath.Join(".", "tamarack.pprof"),
		chDone:    make(chan struct{}),
	}
	p.pprof.SampleType = []*profile.ValueType{
		{Type: "attempts", Unit: "count"},
		{Type: "nodes", Unit: "count"},
	}
	p.pprof.Mapping = []*profile.Mapping{{ID: 1, File: "tamarack"}}

	for _, option := range options {
		option(&p)
	}

	log := logger.Logger()
	if p.filePath == "" {
		log.Warn().Msg("tamarack profiling enabled [not writing to disk]")
	} else {
		log.Info().Str("path", p.filePath).Msg("tamarack profiling enabled")
	}

	// add the session to active sessions
	chCommands <- command{p: &p}
	atomic.AddUint32(&activeSessions, 1)

	return &p
}

// Stop removes the profile from active sessions and may write the pprof
// file to disk. See WithPath option.
func (p *Profile) Stop() {
	log := logger.Logger()

	if p.chDone == nil {
		log.Fatal().Msg("tamarack profile stopped multiple times")
	}

	// ask worker routine to remove ourselves from the active sessions
	chCommands <- command{p: p, remove: true}

	// wait for worker routine to remove us.
	<-p.chDone
	p.chDone = nil

	// if filePath is set, serialize profile to disk in pprof format
	if p.filePath != "" {
		f, err := os.Create(p.filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create tamarack profile")
		}
		if err := p.pprof.Write(f); err != nil {
			log.Error().Err(err).Msg("writing profile")
		}
		f.Close()
		log.Info().Str("path", p.filePath).Msg("tamarack profiling disabled")
	} else {
		log.Warn().Msg("tamarack profiling disabled [not writing to disk]")
	}
}

// NbAttempts returns the number of relaxation attempts collected by the
// profile session.
func (p *Profile) NbAttempts() int {
	return p.nbSamples[colAttempts]
}

// NbNodes returns the number of search nodes collected by the profile
// session.
func (p *Profile) NbNodes() int {
	return p.nbSamples[colNodes]
}

// RecordAttempt adds a relaxation-attempt sample (with count == 1) to all
// the active profiling sessions.
func RecordAttempt() {
	record(colAttempts)
}

// RecordNode adds a search-node sample (with count == 1) to all the active
// profiling sessions.
func RecordNode() {
	record(colNodes)
}

func record(column int) {
	if n := atomic.LoadUint32(&activeSessions); n == 0 {
		return // do nothing, no active session.
	}

	// collect the stack and send it async to the worker
	pc := make([]uintptr, 20)
	n := runtime.Callers(3, pc)
	if n == 0 {
		return
	}
	pc = pc[:n]
	chCommands <- command{pc: pc, column: column}
}

func (p *Profile) getLocation(frame *runtime.Frame) *profile.Location {
	l, ok := p.locations[uint64(frame.PC)]
	if !ok {
		// first let's see if we have the function.
		f, ok := p.functions[frame.File+frame.Function]
		if !ok {
			fe := strings.Split(frame.Function, "/")
			fName := fe[len(fe)-1]
			f = &profile.Function{
				ID:         uint64(len(p.functions) + 1),
				Name:       fName,
				SystemName: frame.Function,
				Filename:   frame.File,
			}

			p.functions[frame.File+frame.Function] = f
			p.pprof.Function = append(p.pprof.Function, f)
		}

		l = &profile.Location{
			ID:   uint64(len(p.locations) + 1),
			Line: []profile.Line{{Function: f, Line: int64(frame.Line)}},
		}
		p.locations[uint64(frame.PC)] = l
		p.pprof.Location = append(p.pprof.Location, l)
	}

	return l
}
