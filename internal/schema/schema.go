// Package schema implements the parameter schema and parser of spec.md
// §4.1: it declares every recognized multipart field, its semantic type,
// and its range, and turns a parsed multipart.Form into a validated
// RenderRequest or a typed apperror.BadRequest.
package schema

import (
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/df07/render-bridge-server/internal/apperror"
)

// maxMultipartMemory bounds how much of the request body ParseMultipartForm
// buffers in memory before spilling the scene file to a temp file of its
// own; the final copy into tempDir happens regardless.
const maxMultipartMemory = 32 << 20

// RenderRequest is the validated, immutable set of parameters for one
// render (spec.md §3).
type RenderRequest struct {
	ScenePath   string // path to the persisted scene file under the process temp dir
	SceneSHA256 string
	ImageType   string // "color", "depth", or "label"

	Width, Height int

	Near, Far float64

	FocalX, FocalY float64
	FovX, FovY     float64
	CenterX, CenterY float64

	// MinDepth/MaxDepth are only meaningful (and only required) when
	// ImageType == "depth".
	MinDepth, MaxDepth float64
}

// knownFields is every multipart field name the schema declares, used to
// reject unrecognized fields (spec.md §4.1 step 4). "scene" (the file
// part) and "submit" (explicitly ignored) are handled outside this set.
var knownFields = map[string]struct{}{
	"scene_sha256": {}, "image_type": {},
	"width": {}, "height": {},
	"near": {}, "far": {},
	"focal_x": {}, "focal_y": {},
	"fov_x": {}, "fov_y": {},
	"center_x": {}, "center_y": {},
	"min_depth": {}, "max_depth": {},
}

var imageTypes = map[string]struct{}{"color": {}, "depth": {}, "label": {}}

// Parse reads a multipart/form-data HTTP request, validates every declared
// field, persists the uploaded scene file into tempDir, and returns a
// RenderRequest. Any schema violation is returned as an *apperror.Error
// with Kind == KindBadRequest.
func Parse(r *http.Request, tempDir string) (*RenderRequest, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, apperror.WrapBadRequest(err, "invalid multipart form")
	}
	form := r.MultipartForm
	if form == nil {
		return nil, apperror.BadRequest("missing multipart form body")
	}

	for name := range form.Value {
		if name == "submit" {
			continue
		}
		if _, ok := knownFields[name]; !ok {
			return nil, apperror.BadRequest("unknown field %q", name)
		}
	}

	req := &RenderRequest{}
	var err error

	if req.SceneSHA256, err = requiredString(form, "scene_sha256"); err != nil {
		return nil, err
	}
	if req.ImageType, err = requiredEnum(form, "image_type", imageTypes); err != nil {
		return nil, err
	}
	if req.Width, err = requiredPositiveInt(form, "width"); err != nil {
		return nil, err
	}
	if req.Height, err = requiredPositiveInt(form, "height"); err != nil {
		return nil, err
	}
	if req.Near, err = requiredPositiveFloat(form, "near"); err != nil {
		return nil, err
	}
	if req.Far, err = requiredPositiveFloat(form, "far"); err != nil {
		return nil, err
	}
	if req.Near >= req.Far {
		return nil, apperror.BadRequest("near (%v) must be less than far (%v)", req.Near, req.Far)
	}
	if req.FocalX, err = requiredPositiveFloat(form, "focal_x"); err != nil {
		return nil, err
	}
	if req.FocalY, err = requiredPositiveFloat(form, "focal_y"); err != nil {
		return nil, err
	}
	if req.FovX, err = requiredPositiveFloat(form, "fov_x"); err != nil {
		return nil, err
	}
	if req.FovY, err = requiredPositiveFloat(form, "fov_y"); err != nil {
		return nil, err
	}
	if req.CenterX, err = requiredFiniteFloat(form, "center_x"); err != nil {
		return nil, err
	}
	if req.CenterY, err = requiredFiniteFloat(form, "center_y"); err != nil {
		return nil, err
	}

	if req.ImageType == "depth" {
		if req.MinDepth, err = requiredPositiveFloat(form, "min_depth"); err != nil {
			return nil, err
		}
		if req.MaxDepth, err = requiredPositiveFloat(form, "max_depth"); err != nil {
			return nil, err
		}
		if req.MinDepth >= req.MaxDepth {
			return nil, apperror.BadRequest("min_depth (%v) must be less than max_depth (%v)", req.MinDepth, req.MaxDepth)
		}
		if req.MaxDepth*1000 > 65535 {
			return nil, apperror.BadRequest("max_depth %v exceeds the 16-bit millimeter range", req.MaxDepth)
		}
	}

	scenePath, err := persistSceneFile(form, tempDir)
	if err != nil {
		return nil, err
	}
	req.ScenePath = scenePath

	return req, nil
}

// persistSceneFile enforces "exactly one file part named scene" and
// copies it into tempDir under a collision-resistant timestamped name
// (SPEC_FULL.md §5.1).
func persistSceneFile(form *multipart.Form, tempDir string) (string, error) {
	files := form.File["scene"]
	if len(files) != 1 {
		return "", apperror.BadRequest("expected exactly one \"scene\" file part, got %d", len(files))
	}

	src, err := files[0].Open()
	if err != nil {
		return "", apperror.WrapBadRequest(err, "could not open uploaded scene file")
	}
	defer src.Close()

	destPath := filepath.Join(tempDir, tempSceneFilename(time.Now()))
	dest, err := os.Create(destPath)
	if err != nil {
		return "", apperror.Internal(err, "could not create temp scene file")
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		return "", apperror.Internal(err, "could not persist uploaded scene file")
	}

	return destPath, nil
}

// tempSceneFilename builds the YYYY-MM-DD_HH-MM-SS-uuuuuu.gltf filename of
// spec.md §3, with an extra 8-hex-character uuid suffix so two requests
// landing in the same microsecond never collide (SPEC_FULL.md §5.1).
func tempSceneFilename(now time.Time) string {
	timestamp := now.Format("2006-01-02_15-04-05")
	micros := now.Nanosecond() / 1000
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("%s-%06d-%s.gltf", timestamp, micros, suffix)
}

func fieldValue(form *multipart.Form, name string) (string, bool) {
	values, ok := form.Value[name]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func requiredString(form *multipart.Form, name string) (string, error) {
	value, ok := fieldValue(form, name)
	if !ok || value == "" {
		return "", apperror.BadRequest("missing required field %q", name)
	}
	return value, nil
}

func requiredEnum(form *multipart.Form, name string, allowed map[string]struct{}) (string, error) {
	value, err := requiredString(form, name)
	if err != nil {
		return "", err
	}
	if _, ok := allowed[value]; !ok {
		return "", apperror.BadRequest("field %q has invalid value %q", name, value)
	}
	return value, nil
}

func requiredPositiveInt(form *multipart.Form, name string) (int, error) {
	raw, err := requiredString(form, name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.WrapBadRequest(err, "field %q is not an integer", name)
	}
	if value <= 0 {
		return 0, apperror.BadRequest("field %q must be positive, got %d", name, value)
	}
	return value, nil
}

func requiredPositiveFloat(form *multipart.Form, name string) (float64, error) {
	value, err := requiredFiniteFloat(form, name)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, apperror.BadRequest("field %q must be positive, got %v", name, value)
	}
	return value, nil
}

func requiredFiniteFloat(form *multipart.Form, name string) (float64, error) {
	raw, err := requiredString(form, name)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperror.WrapBadRequest(err, "field %q is not a number", name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, apperror.BadRequest("field %q must be finite, got %v", name, value)
	}
	return value, nil
}
