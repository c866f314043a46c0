package pipeline

import (
	"sync"
	"time"
)

// Phase indicates the current stage of a run.
type Phase string

const (
	PhaseStarting  Phase = "starting"
	PhaseLocations Phase = "locations"
	PhaseAdmins    Phase = "admins"
	PhaseCodes     Phase = "codes"
	PhaseOrgs      Phase = "orgs"
	PhaseThemes    Phase = "themes"
	PhaseFlushing  Phase = "flushing"
	PhaseComplete  Phase = "complete"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// ThemeState is the state of one selected theme.
type ThemeState string

const (
	ThemePending ThemeState = "pending"
	ThemeRunning ThemeState = "running"
	ThemeDone    ThemeState = "done"
	ThemeFailed  ThemeState = "failed"
)

// ThemeProgress reports one theme of a run.
type ThemeProgress struct {
	Name     string     `json:"name"`
	State    ThemeState `json:"state"`
	Rows     int        `json:"rows"`
	Duration string     `json:"duration,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// Progress is a point-in-time view of a run.
type Progress struct {
	RunID      string          `json:"run_id"`
	Phase      Phase           `json:"phase"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Themes     []ThemeProgress `json:"themes"`
	Errors     int             `json:"errors"`
	Warnings   int             `json:"warnings"`
	Orgs       int             `json:"orgs"`
	Error      string          `json:"error,omitempty"` // Non-empty if Phase is PhaseFailed
}

// Percent returns the share of selected themes that finished, 0-100.
func (p Progress) Percent() int {
	if len(p.Themes) == 0 {
		if p.Phase == PhaseComplete {
			return 100
		}
		return 0
	}
	finished := 0
	for _, t := range p.Themes {
		if t.State == ThemeDone || t.State == ThemeFailed {
			finished++
		}
	}
	return finished * 100 / len(p.Themes)
}

// Rows returns the rows written across all themes.
func (p Progress) Rows() int {
	n := 0
	for _, t := range p.Themes {
		n += t.Rows
	}
	return n
}

// tracker guards the progress of a run. The run goroutine writes it and
// the status server reads snapshots.
type tracker struct {
	mu       sync.RWMutex
	progress Progress
	index    map[string]int
	started  map[string]time.Time
}

func newTracker(runID string, now time.Time) *tracker {
	return &tracker{
		progress: Progress{RunID: runID, Phase: PhaseStarting, StartedAt: now},
		index:    make(map[string]int),
		started:  make(map[string]time.Time),
	}
}

func (t *tracker) snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()

	p := t.progress
	p.Themes = append([]ThemeProgress(nil), t.progress.Themes...)
	if t.progress.FinishedAt != nil {
		at := *t.progress.FinishedAt
		p.FinishedAt = &at
	}
	return p
}

func (t *tracker) setPhase(phase Phase) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.progress.Phase = phase
}

func (t *tracker) setThemes(names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.Themes = make([]ThemeProgress, len(names))
	for i, name := range names {
		t.progress.Themes[i] = ThemeProgress{Name: name, State: ThemePending}
		t.index[name] = i
	}
}

func (t *tracker) startTheme(name string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[name]; ok {
		t.progress.Themes[i].State = ThemeRunning
		t.started[name] = now
	}
}

func (t *tracker) addRows(name string, rows int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if i, ok := t.index[name]; ok {
		t.progress.Themes[i].Rows += rows
	}
}

func (t *tracker) finishTheme(name string, now time.Time, err error) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	i, ok := t.index[name]
	if !ok {
		return 0
	}
	elapsed := now.Sub(t.started[name])
	th := &t.progress.Themes[i]
	th.Duration = elapsed.Round(time.Millisecond).String()
	th.State = ThemeDone
	if err != nil {
		th.State = ThemeFailed
		th.Error = err.Error()
	}
	return elapsed
}

func (t *tracker) setCounts(errs, warnings, orgs int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.Errors = errs
	t.progress.Warnings = warnings
	t.progress.Orgs = orgs
}

func (t *tracker) finish(phase Phase, now time.Time, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.progress.Phase = phase
	t.progress.FinishedAt = &now
	if err != nil {
		t.progress.Error = err.Error()
	}
}
