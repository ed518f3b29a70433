package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okian/pulse/internal/testevents"
)

// Default configuration constants.
const (
	defaultAttempts     = 20
	defaultMaxReps      = 100
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultDrainTimeout = time.Minute
	defaultPollInterval = 100 * time.Millisecond
	defaultTestTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:9080", "Base URL of the service")
		workout   = flag.String("workout", "wod-row", "Workout id to attempt")
		scale     = flag.String("scale", "RX", "Scale code")
		athletes  = flag.String("athletes", "ath-ana,ath-ben,ath-cy", "Comma-separated athlete ids")
		attempts  = flag.Int("attempts", defaultAttempts, "Attempts per athlete")
		maxReps   = flag.Int("max-reps", defaultMaxReps, "Upper bound of generated rep counts")
		validator = flag.String("validator", "usr-coach", "Validator recorded on VALIDATE events")
		workers   = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout   = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		drain     = flag.Duration("drain", defaultDrainTimeout, "Time allowed for the workers to apply events")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Generator seed")
		logFile   = flag.String("log", "", "Log file for test output (default: test_log_TIMESTAMP.log)")
		verbose   = flag.Bool("verbose", false, "Enable verbose logging")
		help      = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		testevents.ShowHelp()
		return
	}

	log, err := testevents.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	config := &testevents.Config{
		BaseURL:            strings.TrimRight(*baseURL, "/"),
		WorkoutID:          *workout,
		Scale:              strings.ToUpper(*scale),
		Athletes:           splitList(*athletes),
		AttemptsPerAthlete: *attempts,
		MaxReps:            *maxReps,
		Seed:               *seed,
		ValidatorID:        *validator,
		Workers:            *workers,
		Timeout:            *timeout,
		DrainTimeout:       *drain,
		PollInterval:       defaultPollInterval,
		Logger:             log,
	}

	if _, err := testevents.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
