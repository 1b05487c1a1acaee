// Package pipeline implements the Pipeline Orchestrator of spec.md §4.5:
// the per-request state machine that sequences Renderer Adapter calls in
// exactly the order the spec names, and the one-render-at-a-time
// single-flight serialization of §5 and SPEC_FULL.md §5.1.
package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/df07/render-bridge-server/internal/adapter"
	"github.com/df07/render-bridge-server/internal/apperror"
	"github.com/df07/render-bridge-server/internal/renderlog"
	"github.com/df07/render-bridge-server/internal/schema"
	"github.com/df07/render-bridge-server/pkg/core"
)

// Config is the RendererAdapter configuration of spec.md §3, constructed
// once at startup from CLI flags.
type Config struct {
	BlendFile       string // optional base scene file loaded before every render
	BpySettingsFile string // optional user script executed after the base scene
}

// Orchestrator owns the single process-wide Adapter (RendererState) and
// serializes Render calls with a mutex, the "explicit serialization"
// implementor's choice spec.md §5 and §9 call out as equivalent to
// single-threaded dispatch.
type Orchestrator struct {
	mu      sync.Mutex
	config  Config
	adapter *adapter.Adapter
	logger  core.Logger
}

// New creates an Orchestrator over a fresh Adapter.
func New(config Config, logger core.Logger) *Orchestrator {
	return &Orchestrator{config: config, adapter: adapter.New(logger), logger: logger}
}

// Render executes the exactly-ordered sequence of spec.md §4.5 for one
// request and returns the rendered PNG's bytes. The scene file and
// rendered PNG are always unlinked before Render returns, on every exit
// path (spec.md §4.5 step 9).
//
// ctx carries the request-scoped logger attached by internal/httpapi via
// renderlog.WithContext; every Adapter call made during this render logs
// through it instead of the Orchestrator's startup-time logger, so
// engine-internal progress messages carry the same request_id as the
// HTTP layer's own log lines. Falls back to the Orchestrator's logger
// when ctx carries none (e.g. in tests).
func (o *Orchestrator) Render(ctx context.Context, req *schema.RenderRequest) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	requestLogger := o.logger
	if reqLogger := renderlog.FromContext(ctx); reqLogger != nil {
		requestLogger = reqLogger
	}
	o.adapter.SetLogger(requestLogger)

	pngPath := strings.TrimSuffix(req.ScenePath, filepath.Ext(req.ScenePath)) + ".png"
	defer cleanupFile(req.ScenePath)
	defer cleanupFile(pngPath)

	if err := o.openSceneAndSettings(); err != nil {
		return nil, err
	}

	if err := o.importClientScene(req.ScenePath); err != nil {
		return nil, err
	}

	o.configureOutput(req)

	if err := o.adapter.ConfigureCamera(req.Near, req.Far, req.FocalX, req.FocalY, req.CenterX, req.CenterY); err != nil {
		return nil, err
	}

	if err := o.configureImageType(req); err != nil {
		return nil, err
	}

	if err := o.adapter.RenderFrame(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(pngPath)
	if err != nil {
		return nil, apperror.WrapRenderFailed(err, "render succeeded but output file %q is missing", pngPath)
	}
	return data, nil
}

// openSceneAndSettings implements steps 1-2: load the base scene (or reset
// to an empty world with the default light), then run the user settings
// script if one was configured. ResetImageSettings runs first so a
// previous request's depth or label configuration on the shared Adapter
// can never leak into this one (spec.md §8 testable property #8: state
// isolation across image types), while the user settings applied here
// still reach this request's render.
func (o *Orchestrator) openSceneAndSettings() error {
	o.adapter.ResetImageSettings()

	if o.config.BlendFile != "" {
		if err := o.adapter.OpenBaseScene(o.config.BlendFile); err != nil {
			return err
		}
	} else {
		o.adapter.ResetWorld()
		o.adapter.AddDefaultPointLight()
	}

	if o.config.BpySettingsFile != "" {
		if err := o.adapter.ExecUserSettings(o.config.BpySettingsFile); err != nil {
			return err
		}
	}
	return nil
}

// importClientScene implements step 3: import the glTF, reality-check the
// object count, and apply the post-import correction.
func (o *Orchestrator) importClientScene(scenePath string) error {
	before := o.adapter.Scene().ObjectCount()
	imported, err := o.adapter.ImportGLTF(scenePath)
	if err != nil {
		return err
	}
	after := o.adapter.Scene().ObjectCount()
	if after-before != imported {
		return apperror.RenderFailed("import reality-check failed: imported %d objects but scene grew by %d", imported, after-before)
	}

	o.adapter.ApplyPostImportCorrection()
	return nil
}

// configureOutput implements step 4: resolution and the pixel-aspect
// compensation for asymmetric focal lengths.
func (o *Orchestrator) configureOutput(req *schema.RenderRequest) {
	pixelAspectX, pixelAspectY := 1.0, 1.0
	if req.FocalX > req.FocalY {
		pixelAspectY = req.FocalX / req.FocalY
	} else {
		pixelAspectX = req.FocalY / req.FocalX
	}

	outputPath := strings.TrimSuffix(req.ScenePath, filepath.Ext(req.ScenePath)) + ".png"
	o.adapter.ConfigureOutput(req.Width, req.Height, pixelAspectX, pixelAspectY, outputPath)
}

var whiteRGBA = core.NewVec3(1, 1, 1)

// configureImageType implements step 6: the per-image-type branch that
// configures color mode, display settings, and the compositor graph.
func (o *Orchestrator) configureImageType(req *schema.RenderRequest) error {
	switch req.ImageType {
	case "color":
		o.adapter.ConfigureColorMode(adapter.ColorModeRGBA, 8)

	case "depth":
		o.adapter.ConfigureColorMode(adapter.ColorModeBW, 16)
		o.adapter.SetRawDisplay()
		o.adapter.DisableAntialiasing()

		depthFar := math.Min(req.Far, req.MaxDepth)
		clipEnd := depthFar * 1.001
		if err := o.adapter.ConfigureCamera(req.Near, clipEnd, req.FocalX, req.FocalY, req.CenterX, req.CenterY); err != nil {
			return err
		}
		o.adapter.InstallDepthCompositor(req.MinDepth, depthFar)

	case "label":
		o.adapter.ConfigureColorMode(adapter.ColorModeRGBA, 8)
		o.adapter.SetRawDisplay()
		o.adapter.DisableAntialiasing()
		o.adapter.SetDither(0)
		o.adapter.SetWorldBackgroundRGBA(whiteRGBA)
		o.adapter.InstallLabelCompositor(whiteRGBA)
	}
	return nil
}

// cleanupFile removes path, ignoring a missing file (the render may have
// failed before producing it).
func cleanupFile(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
