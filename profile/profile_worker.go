package profile

import (
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/pprof/profile"
)

// this channel serializes session management and sampling events, so the
// callers (executor and search, possibly on worker goroutines) can sample
// asynchronously while the profile structs stay single-writer.
var chCommands = make(chan command, 100)
var onceInit sync.Once

type command struct {
	p      *Profile
	pc     []uintptr
	column int
	remove bool
}

func worker() {
	for c := range chCommands {
		if c.p != nil {
			if c.remove {
				for i := 0; i < len(sessions); i++ {
					if sessions[i] == c.p {
						sessions[i] = sessions[len(sessions)-1]
						sessions = sessions[:len(sessions)-1]
						break
					}
				}
				close(c.p.chDone)

				// decrement active sessions
				atomic.AddUint32(&activeSessions, ^uint32(0))
			} else {
				sessions = append(sessions, c.p)
			}
			continue
		}

		collectSample(c.pc, c.column)
	}
}

// collectSample must be called from the worker go routine
func collectSample(pc []uintptr, column int) {
	// for each session we may have a distinct sample, since ids of functions and locations may mismatch
	samples := make([]*profile.Sample, len(sessions))
	for i := range samples {
		value := make([]int64, nbColumns)
		value[column] = 1
		samples[i] = &profile.Sample{Value: value}
	}

	frames := runtime.CallersFrames(pc)
	// Loop to get frames.
	// A fixed number of pcs can expand to an indefinite number of Frames.
	for {
		frame, more := frames.Next()

		if strings.HasSuffix(frame.Function, "minlp.Solve") {
			// we stop; previous frame was the caller of the orchestrator
			break
		}

		if strings.HasSuffix(frame.Function, ".func1") {
			// filter anonymous funcs (worker goroutine trampolines)
			continue
		}

		for i := range samples {
			samples[i].Location = append(samples[i].Location, sessions[i].getLocation(&frame))
		}

		if !more {
			break
		}
	}

	for i := range sessions {
		sessions[i].pprof.Sample = append(sessions[i].pprof.Sample, samples[i])
		sessions[i].nbSamples[column]++
	}
}
