package app

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/cursor"
	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/path"
	"github.com/ayusman/cursorflow/internal/plugin"
	"github.com/ayusman/cursorflow/internal/predict"
)

// pipelineState is owned by the loop goroutine.
type pipelineState struct {
	active        bool
	lastDetection time.Time
	lastErr       string
}

// runPipeline ticks until ctx is done.
//
// Pipeline logic:
//  1. Start idle, ticking at IdleHz.
//  2. Drain the detector; feed every detection to the predictor.
//  3. On detections, switch to ActiveHz.
//  4. While active and aim is held, steer the cursor towards the estimate.
//  5. After IdleTimeout without detections, reset the predictor and go idle.
func (a *App) runPipeline(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	var st pipelineState
	interval := tickInterval(a.Engine(), false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if next := a.step(ctx, &st); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func tickInterval(engine config.Config, active bool) time.Duration {
	hz := engine.Pipeline.IdleHz
	if active {
		hz = engine.Pipeline.ActiveHz
	}
	return time.Second / time.Duration(hz)
}

// step runs one tick and returns the interval until the next.
func (a *App) step(ctx context.Context, st *pipelineState) time.Duration {
	a.mu.RLock()
	enabled := a.enabled
	det := a.detector
	engine := a.engine
	traceID := a.traceID
	a.mu.RUnlock()

	if !enabled {
		return tickInterval(engine, st.active)
	}

	detections, err := det.Detect()
	if err != nil {
		// Log each distinct failure once.
		if msg := err.Error(); msg != st.lastErr {
			a.log.Warn("error reading detections", zap.Error(err))
			st.lastErr = msg
		}
	} else {
		st.lastErr = ""
	}

	now := a.clock.Now()
	switch {
	case len(detections) > 0:
		st.lastDetection = now
		if !st.active {
			st.active = true
			a.log.Debug("switched to active mode")
		}

		a.mu.Lock()
		for _, d := range detections {
			a.predictor.Update(d)
		}
		a.mu.Unlock()
		atomic.AddInt64(&a.stats.Detections, int64(len(detections)))

		if traceID != "" && a.config.Store != nil {
			if err := a.config.Store.Traces().Append(traceID, detections); err != nil {
				a.log.Warn("error recording trace", zap.String("trace", traceID), zap.Error(err))
			}
		}

	case st.active && now.Sub(st.lastDetection) > engine.Pipeline.IdleTimeout:
		st.active = false
		a.mu.Lock()
		a.predictor.Reset()
		a.mu.Unlock()
		atomic.AddInt64(&a.stats.Resets, 1)
		a.log.Debug("switched to idle mode")
	}

	if st.active && a.AimHeld() {
		a.steer(ctx, engine)
	}

	return tickInterval(engine, st.active)
}

// steer generates a path from the cursor to the current estimate and
// delivers it.
func (a *App) steer(ctx context.Context, engine config.Config) {
	a.mu.RLock()
	policy := a.policy
	target, err := a.predictor.Estimate()
	callbacks := append([]PathCallback(nil), a.callbacks...)
	a.mu.RUnlock()

	if err != nil {
		if !errors.Is(err, predict.ErrNotInitialized) {
			a.log.Debug("no estimate", zap.Error(err))
		}
		return
	}

	cur, err := a.cursor.Position()
	if err != nil {
		a.log.Debug("cursor position unavailable", zap.Error(err))
		return
	}
	if geom.Distance(cur, target) < engine.Pipeline.MinMoveDistance {
		return
	}

	pts, err := policy.Generate(cur, target)
	if err != nil {
		a.log.Warn("error generating path", zap.Error(err))
		return
	}

	ev := PathEvent{
		Cursor:    cur,
		Target:    target,
		Path:      pts,
		Style:     engine.Path.Style,
		Generated: a.clock.Now(),
	}
	atomic.AddInt64(&a.stats.Paths, 1)

	a.log.Debug("path generated",
		zap.Int("waypoints", len(pts)),
		zap.Float64("distance", geom.Distance(cur, target)),
		zap.Float64("overshoot", path.Overshoot(cur, target, pts)))

	if v, ok := a.cursor.(*cursor.Virtual); ok {
		v.Apply(pts)
	}
	for _, cb := range callbacks {
		cb(ev)
	}
	if engine.Pipeline.Executor != "" {
		a.execute(ctx, engine.Pipeline.Executor, ev)
	}
}

// execute hands ev to the executor plugin in the background. A path that
// arrives while the previous one is still executing is dropped; the next
// tick supersedes it anyway.
func (a *App) execute(ctx context.Context, name string, ev PathEvent) {
	plug, err := a.pluginMgr.Resolve(name, plugin.ActionMove)
	if err != nil {
		a.log.Warn("executor plugin unavailable", zap.String("plugin", name), zap.Error(err))
		return
	}

	if !a.executing.CompareAndSwap(false, true) {
		a.log.Debug("executor busy, dropping path", zap.String("plugin", name))
		return
	}

	go func() {
		defer a.executing.Store(false)

		resp, err := a.pluginExec.Execute(ctx, plug, plugin.NewMoveRequest(ev.Cursor, ev.Target, ev.Path))
		if err != nil {
			if ctx.Err() == nil {
				a.log.Warn("executor plugin failed", zap.String("plugin", name), zap.Error(err))
			}
			return
		}
		if !resp.Success {
			a.log.Warn("executor plugin refused path", zap.String("plugin", name), zap.String("error", resp.Error))
		}
	}()
}
