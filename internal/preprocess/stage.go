// Package preprocess implements the preprocessing stages and the fixed-order
// registry the pipeline iterates. Each stage consumes the current image plus
// its source path and produces a transformed image; stages with alternative
// algorithms dispatch on independently-enabled method sub-configurations.
package preprocess

import (
	"fmt"

	"github.com/mrsinham/voxelprep/internal/volume"
)

// Stage is one named preprocessing operation. Construction must stay cheap;
// anything that can fail is deferred to Run.
type Stage interface {
	Name() string
	Run(img *volume.Volume, path string) (*volume.Volume, error)
}

// ConfigError reports a malformed or unusable stage configuration, such as a
// methods stage with no method enabled. It is recoverable at the pipeline
// level like any other stage failure.
type ConfigError struct {
	Stage  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: configuration error: %s", e.Stage, e.Reason)
}

// StageError wraps a stage's underlying failure with the stage name.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func noMethodEnabled(stage string) error {
	return &ConfigError{Stage: stage, Reason: "no method enabled"}
}

func stageFailf(stage, format string, args ...any) error {
	return &StageError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
