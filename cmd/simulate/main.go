// Command simulate runs one capture screen against the simulated engine
// and camera and prints every snapshot change.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"time"

	"vitals-scan-be/internal/pkg/logger"
	camsim "vitals-scan-be/pkg/camera/simulated"
	"vitals-scan-be/pkg/capture"
	"vitals-scan-be/pkg/vitals"
	vitalsim "vitals-scan-be/pkg/vitals/simulated"

	"github.com/benbjohnson/clock"
	"github.com/fatih/color"
)

var scenarios = map[string]func(*vitalsim.Script){
	"steady": func(*vitalsim.Script) {},
	"late-face": func(s *vitalsim.Script) {
		s.Face = vitalsim.FaceAfter(4 * time.Second)
	},
	"face-loss": func(s *vitalsim.Script) {
		s.Face = vitalsim.FaceLost(15*time.Second, 19*time.Second)
	},
	"measurement-error": func(s *vitalsim.Script) {
		s.Errors = []vitalsim.ScheduledError{{
			At:  10 * time.Second,
			Err: vitals.Error{Domain: vitals.DomainMeasurement, Code: vitals.CodeInvalidFrames, Message: "invalid frames"},
		}}
	},
	"oom": func(s *vitalsim.Script) {
		s.Errors = []vitalsim.ScheduledError{{
			At:  12 * time.Second,
			Err: vitals.Error{Domain: vitals.DomainMeasurement, Code: 9000, Message: "Aborted(OOM)"},
		}}
	},
}

type navigator struct {
	done chan struct{}
	once sync.Once
}

func (n *navigator) leave() {
	n.once.Do(func() { close(n.done) })
}

func (n *navigator) ShowResults(result vitals.Result) {
	color.Green("\n== Results ==")
	names := make([]string, 0, len(result))
	for name := range result {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %-16s %v\n", name, result[name].Value)
	}
	n.leave()
}

func (n *navigator) Back() {
	color.Yellow("\n== Back to questionnaire ==")
	n.leave()
}

func main() {
	processing := flag.Int("processing-time", 20, "measurement length in seconds")
	scenario := flag.String("scenario", "steady", "face timeline: "+strings.Join(scenarioNames(), ", "))
	license := flag.String("license", "demo-license-key", "license key handed to the engine")
	verbose := flag.Bool("v", false, "write debug logs to logs/simulate.log")
	flag.Parse()

	configure, ok := scenarios[*scenario]
	if !ok {
		color.Red("unknown scenario %q", *scenario)
		os.Exit(2)
	}
	script := vitalsim.DefaultScript()
	configure(&script)

	var log logger.ILogger = logger.NewNopLogger()
	if *verbose {
		log = logger.NewIsolatedLogger("logs/simulate.log")
	}
	defer log.Sync()

	clk := clock.New()
	nav := &navigator{done: make(chan struct{})}
	orch, err := capture.New(capture.Config{
		LicenseKey:     *license,
		ProcessingTime: time.Duration(*processing) * time.Second,
		StrictGuidance: true,
		Host:           "localhost",
	}, vitalsim.New(clk, script), camsim.NewSource(), nav, log,
		capture.WithClock(clk),
		capture.WithObserver(render()),
	)
	if err != nil {
		color.Red("cannot build capture screen: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	color.Cyan("Simulating %q for %ds (Ctrl+C to exit)", *scenario, *processing)
	// ctx is handled below so an interrupt exits through the confirmation path
	orch.Start(context.Background())

	select {
	case <-nav.done:
	case <-orch.Done():
	case <-ctx.Done():
		orch.ConfirmExit()
		select {
		case <-nav.done:
		case <-time.After(time.Second):
		}
	}
	orch.Close()
	<-orch.Done()
}

// render prints a line whenever something the user would see changes.
func render() func(capture.Snapshot) {
	var last string
	return func(s capture.Snapshot) {
		line := describe(s)
		if line == last {
			return
		}
		last = line

		switch {
		case s.Error != nil && !s.Error.Recoverable:
			color.Red("%s", line)
		case s.Error != nil || s.Warning != nil:
			color.Yellow("%s", line)
		case s.Oval == capture.OvalSuccess:
			color.Green("%s", line)
		case s.Oval == capture.OvalWarning:
			color.Magenta("%s", line)
		default:
			fmt.Println(line)
		}
	}
}

func describe(s capture.Snapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%-10s] %-7s", s.State, s.Oval)
	if s.ShowProgress {
		fmt.Fprintf(&b, " %3d%% %s", s.Progress, bar(s.Progress))
	} else if s.ShowWaiting {
		b.WriteString(" waiting...")
	}
	if s.Instruction != "" {
		fmt.Fprintf(&b, " | %s", s.Instruction)
	}
	if s.Error != nil {
		fmt.Fprintf(&b, " | %s: %s", s.Error.Class, s.Error.Message)
	}
	if s.Warning != nil {
		fmt.Fprintf(&b, " | warning %d", s.Warning.Code)
	}
	return b.String()
}

func bar(progress int) string {
	const width = 20
	n := progress * width / 100
	return "[" + strings.Repeat("#", n) + strings.Repeat(".", width-n) + "]"
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
