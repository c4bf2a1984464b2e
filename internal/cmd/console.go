package cmd

import (
	"fmt"
	"strings"
	"time"

	"stepflow/internal/config"
	"stepflow/internal/event"
	"stepflow/internal/progression"
)

// timeRounding trims step durations for display.
const timeRounding = 10 * time.Millisecond

// progressionConfig maps the loaded config onto progression settings.
func progressionConfig(cfg *config.Config) progression.Config {
	return progression.Config{
		AutoRetryEnabled: cfg.Progression.AutoRetryEnabled,
		MaxRetries:       cfg.Progression.MaxRetries,
		BackoffBase:      cfg.Progression.BackoffBase(),
		MaxBackoff:       cfg.Progression.MaxBackoff(),
	}
}

// subscribeConsole renders run events as styled terminal lines.
func subscribeConsole(bus *event.Bus) {
	bus.Subscribe("step.started", func(e event.Event) {
		if ev, ok := e.(event.StepStartedEvent); ok {
			attempt := ""
			if ev.Attempt > 1 {
				attempt = dimStyle.Render(fmt.Sprintf(" (attempt %d)", ev.Attempt))
			}
			fmt.Printf("%s %s %s%s\n",
				dimStyle.Render("→"), ev.StepID, dimStyle.Render("["+ev.Agent+"]"), attempt)
		}
	})

	bus.Subscribe("step.completed", func(e event.Event) {
		if ev, ok := e.(event.StepCompletedEvent); ok {
			artifacts := ""
			if len(ev.Artifacts) > 0 {
				artifacts = dimStyle.Render(" creates " + strings.Join(ev.Artifacts, ", "))
			}
			fmt.Printf("%s %s%s %s\n",
				okStyle.Render("✓"), ev.StepID, artifacts,
				dimStyle.Render(ev.Duration.Round(timeRounding).String()))
		}
	})

	bus.Subscribe("step.failed", func(e event.Event) {
		if ev, ok := e.(event.StepFailedEvent); ok {
			fmt.Printf("%s %s: %s %s\n",
				failStyle.Render("✗"), ev.StepID, ev.Error,
				dimStyle.Render(fmt.Sprintf("(%d retries left)", ev.RetriesLeft)))
		}
	})

	bus.Subscribe("gate.evaluated", func(e event.Event) {
		ev, ok := e.(event.GateEvaluatedEvent)
		if !ok {
			return
		}
		if ev.Passed {
			fmt.Printf("%s gate passed for %s\n", okStyle.Render("✓"), ev.StepID)
			return
		}
		kind := "soft fail"
		style := warnStyle
		if ev.HardFail {
			kind = "hard fail"
			style = failStyle
		}
		fmt.Printf("%s gate %s for %s: %s\n",
			style.Render("✗"), kind, ev.StepID, strings.Join(ev.Reasons, "; "))
	})
}
