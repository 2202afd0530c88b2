package model

import (
	"time"

	"github.com/ekisa-team/stickerforge/internal/config"
)

// Status is the current loading status of a model.
type Status string

const (
	// StatusUnloaded indicates that the model is known but not used yet.
	StatusUnloaded Status = "unloaded"

	// StatusReady indicates that the model files are present or the model is remote.
	StatusReady Status = "ready"

	// StatusFailed indicates that the model could not be prepared.
	StatusFailed Status = "failed"
)

// Instance is a model prepared for inference.
type Instance struct {
	Config  *config.ModelConfig `json:"config"`
	ReadyAt *time.Time          `json:"ready_at,omitempty"`
	ID      string              `json:"id"`
	// Path is the weight file for local backends or the remote model name.
	Path   string `json:"-"`
	Status Status `json:"status"`
	Error  string `json:"error,omitempty"`
}

// NewInstance creates a new model instance.
func NewInstance(cfg *config.ModelConfig, id, path string) *Instance {
	return &Instance{
		ID:     id,
		Path:   path,
		Config: cfg,
		Status: StatusUnloaded,
	}
}

// Remote reports whether the model is served by an API instead of local files.
func (i *Instance) Remote() bool {
	return i.Config != nil && i.Config.Source.HuggingFace == nil
}

// SetStatus sets the status of the model instance.
func (i *Instance) SetStatus(status Status) {
	i.Status = status
	if status == StatusReady {
		now := time.Now()
		i.ReadyAt = &now
	}
}

// SetError marks the instance failed with err.
func (i *Instance) SetError(err error) {
	i.Status = StatusFailed
	i.Error = err.Error()
}
