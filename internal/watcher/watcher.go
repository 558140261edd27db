// Package watcher runs the aurora check sequence: daylight gate, camera
// capture, history pruning, activity map scan, change detection, and
// notification.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/Krugou/aurorawatcher/internal/config"
	"github.com/Krugou/aurorawatcher/internal/detect"
	"github.com/Krugou/aurorawatcher/internal/feeds"
	"github.com/Krugou/aurorawatcher/internal/notify"
	"github.com/Krugou/aurorawatcher/internal/stations"
)

// Run outcomes. Callers match on these strings, so they are part of the
// API.
const (
	OutcomeSkippedDaytime = "Skipped (Daytime)"
	OutcomeInProgress     = "Skipped (Run In Progress)"
	OutcomeNoActivity     = "No Activity"
	OutcomeNoChange       = "Aurora Active (No Image Change)"
	OutcomePosted         = "Posted Aurora Update"
)

// Summary is the per-run result record. Created once per run, returned to
// the caller, never persisted.
type Summary struct {
	StartedAt        time.Time              `json:"started_at"`
	DurationMillis   int64                  `json:"duration_ms"`
	IsDark           bool                   `json:"is_dark"`
	ActivityDetected bool                   `json:"activity_detected"`
	ImagesSaved      int                    `json:"images_saved"`
	ImageChanged     bool                   `json:"image_changed"`
	Outcome          string                 `json:"outcome"`
	Stations         []detect.StationStatus `json:"stations,omitempty"`
}

// SunClient provides the daylight window. Satisfied by feeds.Client.
type SunClient interface {
	GetSunTimes(ctx context.Context, lat, lon float64) (feeds.SunTimes, error)
}

// Fetcher retrieves raw bytes from a URL. Satisfied by feeds.Client.
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// Archive is the snapshot history store. Satisfied by history.Store.
type Archive interface {
	Save(ctx context.Context, camID, url string) (string, error)
	Prune(retention time.Duration) (int, error)
}

// Watcher owns one check pipeline. A single Watcher must not run
// overlapping checks against the same Archive: the history index is
// read-modify-write, so RunOnce serializes itself with a guard and reports
// a skip to the second caller instead of racing.
type Watcher struct {
	cfg      *config.Config
	sun      SunClient
	fetcher  Fetcher
	archive  Archive
	change   *detect.ChangeDetector
	notifier notify.Notifier
	logger   *slog.Logger

	table   []stations.Station
	targets []detect.ColorTarget

	mu          sync.Mutex
	running     bool
	lastSummary *Summary
	onSummary   []func(Summary)

	now func() time.Time // overridable for tests
}

// New creates a watcher with the default station table and color palette.
func New(cfg *config.Config, sun SunClient, fetcher Fetcher, archive Archive, notifier notify.Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		cfg:      cfg,
		sun:      sun,
		fetcher:  fetcher,
		archive:  archive,
		change:   detect.NewChangeDetector(),
		notifier: notifier,
		logger:   logger,
		table:    stations.DefaultTable,
		targets:  detect.DefaultTargets,
		now:      time.Now,
	}
}

// ResetChangeBaseline clears the change detector so the next reference
// image registers as changed.
func (w *Watcher) ResetChangeBaseline() {
	w.change.Reset()
}

// OnSummary registers a callback invoked synchronously at the end of every
// run. Register before the watcher starts.
func (w *Watcher) OnSummary(fn func(Summary)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onSummary = append(w.onSummary, fn)
}

// LastSummary returns the most recent run summary, if any run completed.
func (w *Watcher) LastSummary() (Summary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lastSummary == nil {
		return Summary{}, false
	}
	return *w.lastSummary, true
}

// runFSM models the per-run state sequence. Each run builds a fresh
// machine; nothing carries across runs. The machine is authoritative:
// run drives it through checked transitions and the terminal state is
// what determines the outcome string.
func runFSM() *fsm.FSM {
	return fsm.NewFSM(
		"start",
		fsm.Events{
			{Name: "daylight", Src: []string{"start"}, Dst: "skipped"},
			{Name: "darkness", Src: []string{"start"}, Dst: "dark"},
			{Name: "activity_found", Src: []string{"dark"}, Dst: "activity"},
			{Name: "nothing_found", Src: []string{"dark"}, Dst: "no_activity"},
			{Name: "image_changed", Src: []string{"activity"}, Dst: "posted"},
			{Name: "image_unchanged", Src: []string{"activity"}, Dst: "no_change"},
			{Name: "fail", Src: []string{"start", "dark", "activity"}, Dst: "error"},
		},
		fsm.Callbacks{},
	)
}

// step fires one transition. A rejected event means the pipeline tried
// something the state sequence forbids, which is a bug, not an
// operational failure; it is surfaced rather than ignored.
func step(ctx context.Context, machine *fsm.FSM, event string) error {
	if err := machine.Event(ctx, event); err != nil {
		return fmt.Errorf("state machine: event %q in state %q: %w", event, machine.Current(), err)
	}
	return nil
}

// outcomeForState maps the machine's terminal state to the outcome
// string callers match on.
func outcomeForState(state string) (string, bool) {
	switch state {
	case "skipped":
		return OutcomeSkippedDaytime, true
	case "no_activity":
		return OutcomeNoActivity, true
	case "no_change":
		return OutcomeNoChange, true
	case "posted":
		return OutcomePosted, true
	default:
		return "", false
	}
}

// RunOnce executes one full check and always returns a summary; failures
// are folded into the outcome rather than raised, so batch callers never
// need exception handling.
func (w *Watcher) RunOnce(ctx context.Context) Summary {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Warn("check already in progress, skipping overlapping run")
		return Summary{StartedAt: w.now(), Outcome: OutcomeInProgress}
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	start := w.now()
	summary := w.run(ctx, start)
	summary.StartedAt = start
	summary.DurationMillis = w.now().Sub(start).Milliseconds()

	w.mu.Lock()
	w.lastSummary = &summary
	callbacks := make([]func(Summary), len(w.onSummary))
	copy(callbacks, w.onSummary)
	w.mu.Unlock()

	for _, fn := range callbacks {
		fn(summary)
	}

	w.logger.Info("check complete",
		"outcome", summary.Outcome,
		"is_dark", summary.IsDark,
		"activity", summary.ActivityDetected,
		"images_saved", summary.ImagesSaved,
		"duration_ms", summary.DurationMillis,
	)
	return summary
}

func (w *Watcher) run(ctx context.Context, start time.Time) Summary {
	var summary Summary
	machine := runFSM()

	if err := w.advance(ctx, machine, &summary, start); err != nil {
		if ferr := step(ctx, machine, "fail"); ferr != nil {
			w.logger.Error("state machine fault", "error", ferr)
		}
		summary.Outcome = fmt.Sprintf("Error: %v", err)
		w.logger.Error("check failed", "error", err, "state", machine.Current())
		return summary
	}

	outcome, ok := outcomeForState(machine.Current())
	if !ok {
		summary.Outcome = fmt.Sprintf("Error: check ended in state %q", machine.Current())
		w.logger.Error("check ended in non-terminal state", "state", machine.Current())
		return summary
	}
	summary.Outcome = outcome
	return summary
}

// advance drives the machine through one full check. On return the
// machine sits in a terminal state; any error leaves it for run to move
// to the error state.
func (w *Watcher) advance(ctx context.Context, machine *fsm.FSM, summary *Summary, start time.Time) error {
	// Daylight gate.
	sunTimes, err := w.sun.GetSunTimes(ctx, w.cfg.Location.Latitude, w.cfg.Location.Longitude)
	if err != nil {
		return fmt.Errorf("daylight check: %w", err)
	}

	if !feeds.IsDark(sunTimes, start) {
		w.logger.Info("sun is up, skipping check",
			"sunrise_utc", sunTimes.SunriseHour,
			"sunset_utc", sunTimes.SunsetHour,
		)
		return step(ctx, machine, "daylight")
	}

	if err := step(ctx, machine, "darkness"); err != nil {
		return err
	}
	summary.IsDark = true

	// Capture snapshots from every camera. Sequential on purpose: the
	// history index is a shared read-modify-write file and must have a
	// single writer at a time.
	for _, cam := range w.cfg.Cameras {
		if _, err := w.archive.Save(ctx, cam.ID, cam.URL); err != nil {
			w.logger.Warn("snapshot capture failed", "camera", cam.ID, "error", err)
			continue
		}
		summary.ImagesSaved++
	}
	if summary.ImagesSaved == 0 {
		return fmt.Errorf("all %d camera captures failed", len(w.cfg.Cameras))
	}

	// Prune after capture, never before, so fresh entries survive.
	retention := time.Duration(w.cfg.History.RetentionHours) * time.Hour
	if _, err := w.archive.Prune(retention); err != nil {
		w.logger.Warn("history prune failed", "error", err)
	}

	// Scan the activity map. Decode or fetch trouble here is usually
	// transient, so it downgrades to "no activity this run".
	statuses := w.scanActivityMap(ctx)
	summary.Stations = statuses

	if !detect.HasActivity(statuses) {
		return step(ctx, machine, "nothing_found")
	}

	if err := step(ctx, machine, "activity_found"); err != nil {
		return err
	}
	summary.ActivityDetected = true

	if detect.HasAnyHigh(statuses) {
		w.logger.Info("high aurora activity detected")
	} else {
		w.logger.Info("moderate aurora activity detected")
	}

	// Dedup: only a changed reference image is worth a notification.
	refCam := w.cfg.Camera(w.cfg.Detection.ReferenceCamera)
	refBytes, err := w.fetcher.FetchBytes(ctx, refCam.URL)
	if err != nil {
		// Without the reference image there is nothing to compare, so no
		// notification goes out this run.
		w.logger.Warn("reference camera fetch failed", "camera", refCam.ID, "error", err)
		return step(ctx, machine, "image_unchanged")
	}

	if !w.change.HasChanged(refBytes) {
		w.logger.Info("reference image unchanged, skipping notification")
		return step(ctx, machine, "image_unchanged")
	}

	if err := w.notifyActivity(ctx, refCam.ID, refBytes, statuses); err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}

	if err := step(ctx, machine, "image_changed"); err != nil {
		return err
	}
	summary.ImageChanged = true
	return nil
}

// scanActivityMap fetches and scans the disturbance map. Any failure is
// logged and yields an empty result (no activity this run).
func (w *Watcher) scanActivityMap(ctx context.Context) []detect.StationStatus {
	data, err := w.fetcher.FetchBytes(ctx, w.cfg.Detection.ActivityMapURL)
	if err != nil {
		w.logger.Warn("activity map fetch failed", "error", err)
		return nil
	}

	img, err := detect.Decode(data)
	if err != nil {
		w.logger.Warn("activity map decode failed", "error", err)
		return nil
	}

	opts := detect.ScanOptions{
		BoxRadius:   w.cfg.Detection.BoxRadius,
		MaxDistance: w.cfg.Detection.MaxDistance,
	}
	return detect.Scan(img, w.table, w.targets, opts)
}

// notifyActivity composes the alert: every camera snapshot plus the
// activity map, with a per-station activity line.
func (w *Watcher) notifyActivity(ctx context.Context, refCamID string, refBytes []byte, statuses []detect.StationStatus) error {
	var images []notify.Image

	for _, cam := range w.cfg.Cameras {
		if cam.ID == refCamID {
			images = append(images, notify.Image{Name: cam.ID + ".jpg", Data: refBytes})
			continue
		}
		data, err := w.fetcher.FetchBytes(ctx, cam.URL)
		if err != nil {
			w.logger.Warn("camera fetch for alert failed", "camera", cam.ID, "error", err)
			continue
		}
		images = append(images, notify.Image{Name: cam.ID + ".jpg", Data: data})
	}

	if mapBytes, err := w.fetcher.FetchBytes(ctx, w.cfg.Detection.ActivityMapURL); err == nil {
		images = append(images, notify.Image{Name: "activity_map.png", Data: mapBytes})
	}

	text := "Aurora activity detected!"
	for _, s := range statuses {
		if s.Level == detect.Moderate || s.Level == detect.High {
			text += fmt.Sprintf("\n%s: %s", s.Station, s.Level)
		}
	}

	return w.notifier.Notify(ctx, text, images)
}

// RunForever repeats RunOnce on a randomized interval drawn uniformly from
// the configured [min, max] minute range, until the context is cancelled.
func (w *Watcher) RunForever(ctx context.Context) error {
	w.RunOnce(ctx)

	for {
		interval := w.nextInterval()
		w.logger.Info("next check scheduled", "interval", interval)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}

		w.RunOnce(ctx)
	}
}

func (w *Watcher) nextInterval() time.Duration {
	min := w.cfg.Watch.MinIntervalMinutes
	max := w.cfg.Watch.MaxIntervalMinutes
	minutes := min
	if max > min {
		minutes = min + rand.Intn(max-min+1)
	}
	return time.Duration(minutes) * time.Minute
}
