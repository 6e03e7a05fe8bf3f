// Package display draws terminal progress for training and sweeps.
package display

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Progress wraps a go-pretty progress writer rendering in the background.
type Progress struct {
	pw progress.Writer
}

func NewProgress(w io.Writer) *Progress {
	pw := progress.NewWriter()
	pw.SetOutputWriter(w)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(30)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.SetStyle(progress.StyleDefault)
	pw.Style().Visibility.ETA = true
	pw.Style().Visibility.Value = true
	go pw.Render()
	for !pw.IsRenderInProgress() {
		time.Sleep(time.Millisecond)
	}
	return &Progress{pw: pw}
}

func (p *Progress) track(message string, total int) *progress.Tracker {
	t := &progress.Tracker{Message: message, Total: int64(total), Units: progress.UnitsDefault}
	p.pw.AppendTracker(t)
	return t
}

// Stop flushes the final frame and waits for the renderer to exit.
func (p *Progress) Stop() {
	p.pw.Stop()
	for p.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

// TrainingTracker follows environment steps during training.
type TrainingTracker struct {
	tracker *progress.Tracker
}

func (p *Progress) Training(total int) *TrainingTracker {
	return &TrainingTracker{tracker: p.track("Training", total)}
}

// Update moves the tracker to steps, capped at the total.
func (t *TrainingTracker) Update(steps int, meanReturn float64) {
	v := int64(steps)
	if v > t.tracker.Total {
		v = t.tracker.Total
	}
	t.tracker.UpdateMessage(fmt.Sprintf("Training (ep_rew_mean %.1f)", meanReturn))
	t.tracker.SetValue(v)
}

func (t *TrainingTracker) Done() {
	t.tracker.MarkAsDone()
}

// SweepReporter shows one overall tracker across multipliers and one per
// multiplier across seeds.
type SweepReporter struct {
	p       *Progress
	overall *progress.Tracker
	current *progress.Tracker
}

func (p *Progress) Sweep(multipliers int) *SweepReporter {
	return &SweepReporter{
		p:       p,
		overall: p.track("Testing different dt_multip values", multipliers),
	}
}

func (r *SweepReporter) StartMultiplier(_ int, multiplier float64, seeds int) {
	msg := text.FgGreen.Sprintf("Testing with dt_multip = %g", multiplier)
	r.current = r.p.track(msg, seeds)
}

func (r *SweepReporter) SeedDone() {
	r.current.Increment(1)
}

func (r *SweepReporter) FinishMultiplier(int, float64) {
	r.current.MarkAsDone()
	r.overall.Increment(1)
	if r.overall.Value() >= r.overall.Total {
		r.overall.MarkAsDone()
	}
}
