package model

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/goccy/go-json"

	"github.com/f1predict/f1predict/internal/errors"
	"github.com/f1predict/f1predict/internal/features"
)

// Artifact file names
const (
	DriverModelFile        = "driver_model.json"
	ConstructorModelFile   = "constructor_model.json"
	DriverMetricsFile      = "driver_metrics.json"
	ConstructorMetricsFile = "constructor_metrics.json"
)

// Paths locates the three artifacts that make up a bundle.
type Paths struct {
	Driver      string
	Constructor string
	Encoding    string
}

// PathsIn returns the default artifact paths inside dir.
func PathsIn(dir string) Paths {
	return Paths{
		Driver:      filepath.Join(dir, DriverModelFile),
		Constructor: filepath.Join(dir, ConstructorModelFile),
		Encoding:    filepath.Join(dir, features.EncodingFile),
	}
}

// Bundle is the immutable set of artifacts loaded at startup.
type Bundle struct {
	Driver      *Regressor
	Constructor *Regressor
	Encoding    *features.Encoding
}

// Version reports the driver model version, falling back to the encoding's.
func (b *Bundle) Version() string {
	if b.Driver != nil && b.Driver.Version != "" {
		return b.Driver.Version
	}
	if b.Encoding != nil {
		return b.Encoding.Version
	}
	return ""
}

// LoadBundle loads all three artifacts and checks the model feature lists
// match the encoding's columns. Any failure is a model-loading error.
func LoadBundle(p Paths) (*Bundle, error) {
	enc, err := features.LoadEncoding(p.Encoding)
	if err != nil {
		return nil, err
	}
	driver, err := Load(p.Driver)
	if err != nil {
		return nil, err
	}
	constructor, err := Load(p.Constructor)
	if err != nil {
		return nil, err
	}

	if !slices.Equal(driver.Features, enc.DriverColumns) {
		return nil, mismatch(p.Driver, "driver")
	}
	if !slices.Equal(constructor.Features, enc.ConstructorColumns) {
		return nil, mismatch(p.Constructor, "constructor")
	}
	return &Bundle{Driver: driver, Constructor: constructor, Encoding: enc}, nil
}

func mismatch(path, kind string) error {
	return errors.Newf("%s model features do not match the feature encoding", kind).
		Component("model").
		Category(errors.CategoryModelLoad).
		Context("path", path).
		Build()
}

// Load reads and validates one regressor artifact.
func Load(path string) (*Regressor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("path", path).
			Build()
	}
	var r Regressor
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.New(err).
			Component("model").
			Category(errors.CategoryModelLoad).
			Context("path", path).
			Context("operation", "decode").
			Build()
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Save writes the regressor artifact.
func (r *Regressor) Save(path string) error {
	return writeJSON(path, r)
}

// SaveMetrics writes an evaluation report next to the models.
func SaveMetrics(path string, m Metrics) error {
	return writeJSON(path, m)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryProcessing).Build()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	// write then rename so a reader never sees a partial artifact
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Context("path", tmp).Build()
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.New(err).Component("model").Category(errors.CategoryFileIO).Context("path", path).Build()
	}
	return nil
}
