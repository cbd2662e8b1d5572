// Package app wires detections, the active predictor and the trajectory
// policy into a fixed-rate control loop and fans generated paths out to the
// cursor, registered callbacks and an executor plugin.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/cursor"
	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/path"
	"github.com/ayusman/cursorflow/internal/plugin"
	"github.com/ayusman/cursorflow/internal/predict"
	"github.com/ayusman/cursorflow/internal/store"
	"github.com/ayusman/cursorflow/internal/timeutil"
)

// DefaultPluginTimeout bounds a single executor plugin call.
const DefaultPluginTimeout = 5 * time.Second

var (
	// ErrNotPushable is returned by PushDetection when the active detector
	// does not accept pushed detections.
	ErrNotPushable = errors.New("active detector does not accept pushed detections")
	// ErrNoStore is returned by operations that need the database.
	ErrNoStore = errors.New("no store configured")
	// ErrCursorReadOnly is returned by SetCursor when the cursor is external.
	ErrCursorReadOnly = errors.New("cursor position is provided externally")
)

// Config holds the collaborators of an App. Only Engine is required.
type Config struct {
	Engine    config.Config
	Store     *store.Store
	PluginDir string
	Logger    *zap.Logger
	Clock     timeutil.Clock
	// Cursor defaults to a virtual cursor at the origin.
	Cursor cursor.Provider
	// Detector defaults to a Queue fed by PushDetection.
	Detector detector.Detector
	// Rand defaults to the shared generator.
	Rand path.Rand
}

// Prediction is the estimate pulled from the active predictor.
type Prediction struct {
	X          int       `json:"x"`
	Y          int       `json:"y"`
	ProducedAt time.Time `json:"produced_at"`
}

// PathEvent describes one generated trajectory.
type PathEvent struct {
	Cursor    geom.Point   `json:"cursor"`
	Target    geom.Point   `json:"target"`
	Path      []geom.Point `json:"path"`
	Style     path.Style   `json:"style"`
	Generated time.Time    `json:"generated"`
}

// PathCallback receives every generated trajectory.
type PathCallback func(PathEvent)

// App is the engine: it owns the predictor and the policy and runs the
// control loop.
type App struct {
	config     Config
	log        *zap.Logger
	clock      timeutil.Clock
	cursor     cursor.Provider
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	rand       path.Rand

	mu        sync.RWMutex
	engine    config.Config
	detector  detector.Detector
	predictor predict.Predictor
	policy    *path.Policy
	enabled   bool
	aimHeld   bool
	callbacks []PathCallback
	traceID   string
	cancel    context.CancelFunc
	doneCh    chan struct{}

	executing atomic.Bool
	stats     Stats
}

// Stats counts pipeline activity.
type Stats struct {
	Detections int64 `json:"detections"`
	Paths      int64 `json:"paths"`
	Resets     int64 `json:"resets"`
}

// New creates an App from config. The engine configuration is validated.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	cur := cfg.Cursor
	if cur == nil {
		cur = cursor.NewVirtual(geom.Pt(0, 0))
	}
	det := cfg.Detector
	if det == nil {
		det = detector.NewQueue(detector.DefaultQueueCapacity)
	}
	rng := cfg.Rand
	if rng == nil {
		rng = path.SharedRand()
	}

	a := &App{
		config:     cfg,
		log:        logger,
		clock:      clock,
		cursor:     cur,
		pluginMgr:  plugin.NewManager(cfg.PluginDir, logger.Named("plugin")),
		pluginExec: plugin.NewExecutor(DefaultPluginTimeout, logger.Named("plugin")),
		rand:       rng,
		detector:   det,
		enabled:    true,
	}

	if err := a.ApplyConfig(cfg.Engine); err != nil {
		return nil, err
	}
	return a, nil
}

// ApplyConfig validates cfg and swaps in a fresh predictor and policy built
// from it. Predictor state is discarded.
func (a *App) ApplyConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	predictor, err := predict.New(cfg.Predictor, a.clock, a.cursor)
	if err != nil {
		return fmt.Errorf("build predictor: %w", err)
	}
	src, err := path.NewNoiseSource(cfg.Path)
	if err != nil {
		return fmt.Errorf("build noise source: %w", err)
	}
	policy := path.NewPolicy(path.NewSynthesizer(src, a.rand, cfg.Path), cfg.Policy)

	a.mu.Lock()
	a.engine = cfg
	a.predictor = predictor
	a.policy = policy
	a.mu.Unlock()

	a.log.Info("engine configured",
		zap.String("predictor", string(cfg.Predictor.Kind)),
		zap.String("style", string(cfg.Path.Style)),
		zap.String("noise", string(cfg.Path.Noise)))
	return nil
}

// Engine returns the active engine configuration.
func (a *App) Engine() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine
}

// SetEnabled pauses or resumes processing.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled reports whether processing is active.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// SetAimHeld sets the aim-held signal. Paths are generated only while held.
func (a *App) SetAimHeld(held bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.aimHeld = held
}

// AimHeld reports the aim-held signal.
func (a *App) AimHeld() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.aimHeld
}

// SetDetector replaces the detection source. The previous one is closed.
func (a *App) SetDetector(d detector.Detector) {
	a.mu.Lock()
	prev := a.detector
	a.detector = d
	a.mu.Unlock()

	if prev != nil && prev != d {
		if err := prev.Close(); err != nil {
			a.log.Warn("error closing detector", zap.Error(err))
		}
	}
}

// Detector returns the active detection source.
func (a *App) Detector() detector.Detector {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.detector
}

// PushDetection enqueues d when the active detector is a Queue. Detections
// without a timestamp are stamped with the current time.
func (a *App) PushDetection(d detector.Detection) error {
	q, ok := a.Detector().(*detector.Queue)
	if !ok {
		return ErrNotPushable
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = a.clock.Now()
	}
	q.Push(d)
	return nil
}

// Prediction pulls the current estimate from the active predictor.
func (a *App) Prediction() (Prediction, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	p, err := a.predictor.Estimate()
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{X: p.X, Y: p.Y, ProducedAt: a.clock.Now()}, nil
}

// CursorPosition reads the cursor provider.
func (a *App) CursorPosition() (geom.Point, error) {
	return a.cursor.Position()
}

// SetCursor moves the virtual cursor. External cursors are read-only.
func (a *App) SetCursor(p geom.Point) error {
	v, ok := a.cursor.(*cursor.Virtual)
	if !ok {
		return ErrCursorReadOnly
	}
	v.MoveTo(p)
	return nil
}

// GeneratePath runs the active policy from start to end without touching
// the cursor or notifying callbacks.
func (a *App) GeneratePath(start, end geom.Point) ([]geom.Point, error) {
	a.mu.RLock()
	policy := a.policy
	a.mu.RUnlock()

	return policy.Generate(start, end)
}

// RegisterPathCallback adds a callback invoked for every generated path.
func (a *App) RegisterPathCallback(fn PathCallback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.callbacks = append(a.callbacks, fn)
}

// Stats returns activity counters.
func (a *App) Stats() Stats {
	return Stats{
		Detections: atomic.LoadInt64(&a.stats.Detections),
		Paths:      atomic.LoadInt64(&a.stats.Paths),
		Resets:     atomic.LoadInt64(&a.stats.Resets),
	}
}

// TraceID returns the trace being recorded, or "".
func (a *App) TraceID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.traceID
}

// DiscoverPlugins scans the plugin directory and loads available plugins.
func (a *App) DiscoverPlugins() error {
	return a.pluginMgr.Discover()
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Store returns the configured store, or nil.
func (a *App) Store() *store.Store {
	return a.config.Store
}

// LoadActiveProfile applies the store's active profile, if any.
func (a *App) LoadActiveProfile() error {
	if a.config.Store == nil {
		return nil
	}

	p, err := a.config.Store.Profiles().Active()
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := a.ApplyConfig(p.Config); err != nil {
		return fmt.Errorf("apply profile %s: %w", p.Name, err)
	}
	a.log.Info("loaded active profile", zap.String("profile", p.Name))
	return nil
}

// ActivateProfile marks a stored profile active and applies it.
func (a *App) ActivateProfile(id string) error {
	if a.config.Store == nil {
		return ErrNoStore
	}

	p, err := a.config.Store.Profiles().GetByID(id)
	if err != nil {
		return err
	}
	if err := a.ApplyConfig(p.Config); err != nil {
		return err
	}
	return a.config.Store.Profiles().SetActive(id)
}

// ReplayTrace switches the detection source to a stored trace.
func (a *App) ReplayTrace(id string, loop bool) error {
	if a.config.Store == nil {
		return ErrNoStore
	}

	detections, err := a.config.Store.Traces().Detections(id)
	if err != nil {
		return err
	}
	a.SetDetector(detector.NewReplay(detections, loop, a.clock))

	a.mu.Lock()
	a.predictor.Reset()
	a.mu.Unlock()

	a.log.Info("replaying trace", zap.String("trace", id), zap.Int("detections", len(detections)), zap.Bool("loop", loop))
	return nil
}

// Start begins the control loop. Starting a running App is a no-op.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cancel != nil {
		return nil
	}

	if a.engine.Pipeline.RecordTraces && a.config.Store != nil {
		name := "session " + a.clock.Now().Format(time.RFC3339)
		tr, err := a.config.Store.Traces().Create(name)
		if err != nil {
			return fmt.Errorf("create trace: %w", err)
		}
		a.traceID = tr.ID
		a.log.Info("recording trace", zap.String("trace", tr.ID))
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.doneCh = make(chan struct{})
	go a.runPipeline(ctx, a.doneCh)

	a.log.Info("control loop started")
	return nil
}

// Run starts the control loop and stops it when ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	a.Stop()
	return nil
}

// Stop halts the control loop and closes the detector.
func (a *App) Stop() {
	a.mu.Lock()
	cancel, doneCh := a.cancel, a.doneCh
	a.cancel, a.doneCh = nil, nil
	det := a.detector
	a.traceID = ""
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-doneCh
	}

	if det != nil {
		if err := det.Close(); err != nil {
			a.log.Warn("error closing detector", zap.Error(err))
		}
	}

	a.log.Info("control loop stopped")
}
