package config

import (
	"errors"
	"os"
	"time"

	"github.com/ekisa-team/stickerforge/internal/envvar"
	"github.com/ekisa-team/stickerforge/internal/xfs"
)

// SourceType represents the type of model source.
type SourceType string

const (
	// SourceTypeHuggingFace represents a Hugging Face model repository source.
	SourceTypeHuggingFace SourceType = "huggingface"
)

// ModelType is the kind of work a model performs.
type ModelType string

const (
	// ModelTypeImage is a text-to-image diffusion model.
	ModelTypeImage ModelType = "image"

	// ModelTypeSTT is a speech-to-text model.
	ModelTypeSTT ModelType = "stt"
)

// Device names accepted by the device field.
const (
	DeviceAuto  = "auto"
	DeviceCUDA  = "cuda"
	DeviceMetal = "metal"
	DeviceCPU   = "cpu"
)

// Default prompt suffixes steering the model towards a flat sticker look on a
// uniform white backdrop.
const (
	DefaultTextStyle  = "cute cartoon sticker, bold outlines, colorful vector art, white background"
	DefaultVoiceStyle = "cartoon style sticker, bold outlines, colorful vector, white background"
)

// ErrNoSource is returned by GetSource when a model has no download source.
var ErrNoSource = errors.New("no source configured for model")

// Config holds the main configuration for the application.
type Config struct {
	Models   map[string]ModelConfig `json:"models"             yaml:"models"`
	Version  string                 `json:"version"            yaml:"version"`
	Profile  Profile                `json:"profile,omitempty"  yaml:"profile,omitempty"`
	Device   string                 `json:"device,omitempty"   yaml:"device,omitempty"`
	Storage  StorageConfig          `json:"storage,omitempty"  yaml:"storage,omitempty"`
	Sticker  StickerConfig          `json:"sticker,omitempty"  yaml:"sticker,omitempty"`
	Services ServicesConfig         `json:"services"           yaml:"services"`
	Backends BackendsConfig         `json:"backends,omitempty" yaml:"backends,omitempty"`
}

// StorageConfig holds the model cache and artifact locations.
type StorageConfig struct {
	ModelsDir string `json:"models_dir,omitempty" yaml:"models_dir,omitempty"`
	OutputDir string `json:"output_dir,omitempty" yaml:"output_dir,omitempty"`
}

// StickerConfig holds the settings that may change on config reload.
type StickerConfig struct {
	TextStyle  string `json:"text_style,omitempty"  yaml:"text_style,omitempty"`
	VoiceStyle string `json:"voice_style,omitempty" yaml:"voice_style,omitempty"`
	Background []int  `json:"background,omitempty"  yaml:"background,omitempty"`
}

// ModelConfig holds configuration for a specific model.
type ModelConfig struct {
	Source  SourceConfig `json:"source,omitempty" yaml:"source,omitempty"`
	Type    ModelType    `json:"type"             yaml:"type"`
	Backend string       `json:"backend"          yaml:"backend"`
	// File is a glob selecting the weight file inside the downloaded repository.
	File string `json:"file,omitempty" yaml:"file,omitempty"`
	// Name identifies the model on remote backends (checkpoint title, API model).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

// SourceConfig wraps optional sources (only one should be set).
type SourceConfig struct {
	HuggingFace *HuggingFaceSource `json:"huggingface,omitempty" yaml:"huggingface,omitempty"`
}

// ServicesConfig holds the model assignment of each pipeline stage.
type ServicesConfig struct {
	Image ServicesConfigAssignment `json:"image" yaml:"image"`
	STT   ServicesConfigAssignment `json:"stt"   yaml:"stt"`
}

// ServicesConfigAssignment holds model assignments for a service.
type ServicesConfigAssignment struct {
	Models []string `json:"models" yaml:"models"` // List of model IDs, first one wins
}

// Primary returns the first assigned model ID, or "" when none is assigned.
func (a ServicesConfigAssignment) Primary() string {
	if len(a.Models) == 0 {
		return ""
	}
	return a.Models[0]
}

// BackendsConfig holds per-provider settings. Providers left nil are not started.
type BackendsConfig struct {
	StableDiffusionCPP *StableDiffusionCPPConfig `json:"stable_diffusion_cpp,omitempty" yaml:"stable_diffusion_cpp,omitempty"`
	WhisperCPP         *WhisperCPPConfig         `json:"whisper_cpp,omitempty"          yaml:"whisper_cpp,omitempty"`
	Automatic1111      *Automatic1111Config      `json:"automatic1111,omitempty"        yaml:"automatic1111,omitempty"`
	OpenAI             *OpenAIConfig             `json:"openai,omitempty"               yaml:"openai,omitempty"`
}

// StableDiffusionCPPConfig configures the stable-diffusion.cpp CLI backend.
type StableDiffusionCPPConfig struct {
	BinPath   string        `json:"bin_path"             yaml:"bin_path"`
	Sampler   string        `json:"sampler,omitempty"    yaml:"sampler,omitempty"`
	LoRADir   string        `json:"lora_dir,omitempty"   yaml:"lora_dir,omitempty"`
	LoRAs     []LoRAConfig  `json:"loras,omitempty"      yaml:"loras,omitempty"`
	ExtraArgs []string      `json:"extra_args,omitempty" yaml:"extra_args,omitempty"`
	CFGScale  float64       `json:"cfg_scale,omitempty"  yaml:"cfg_scale,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty"    yaml:"timeout,omitempty"`
}

// LoRAConfig names an adapter fused into the base weights at sampling time.
type LoRAConfig struct {
	Name   string  `json:"name"   yaml:"name"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// WhisperCPPConfig configures the whisper.cpp server backend.
type WhisperCPPConfig struct {
	BinPath  string `json:"bin_path"           yaml:"bin_path"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
	Port     int    `json:"port,omitempty"     yaml:"port,omitempty"`
	Threads  int    `json:"threads,omitempty"  yaml:"threads,omitempty"`
	// Convert asks whisper-server to transcode non-WAV uploads through ffmpeg.
	Convert bool `json:"convert,omitempty" yaml:"convert,omitempty"`
}

// Automatic1111Config configures the AUTOMATIC1111 web UI API backend.
type Automatic1111Config struct {
	Host     string  `json:"host"                yaml:"host"`
	Sampler  string  `json:"sampler,omitempty"   yaml:"sampler,omitempty"`
	CFGScale float64 `json:"cfg_scale,omitempty" yaml:"cfg_scale,omitempty"`
}

// OpenAIConfig configures the hosted OpenAI transcription backend.
type OpenAIConfig struct {
	BaseURL   string `json:"base_url,omitempty"    yaml:"base_url,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	// Language is an ISO-639-1 hint; empty lets the API detect it.
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// -------------------------
// Source definitions
// -------------------------

// ModelSource represents a source for a model.
type ModelSource interface {
	Type() SourceType
}

// HuggingFaceSource represents a Hugging Face model repository source.
type HuggingFaceSource struct {
	Repo          string   `json:"repo"                     yaml:"repo"`
	Revision      string   `json:"revision,omitempty"       yaml:"revision,omitempty"`
	RepoType      string   `json:"repo_type,omitempty"      yaml:"repo_type,omitempty"`
	Token         string   `json:"token,omitempty"          yaml:"token,omitempty"`
	Include       []string `json:"include,omitempty"        yaml:"include,omitempty"`
	Exclude       []string `json:"exclude,omitempty"        yaml:"exclude,omitempty"`
	MaxWorkers    int      `json:"max_workers,omitempty"    yaml:"max_workers,omitempty"`
	ForceDownload bool     `json:"force_download,omitempty" yaml:"force_download,omitempty"`
}

// Type returns the Hugging Face source type.
func (h HuggingFaceSource) Type() SourceType {
	return SourceTypeHuggingFace
}

// GetSource returns the active source for the model.
// Remote models (served by an API) have no source and return ErrNoSource.
func (m *ModelConfig) GetSource() (ModelSource, error) {
	if m.Source.HuggingFace != nil {
		return *m.Source.HuggingFace, nil
	}

	return nil, ErrNoSource
}

// SetHuggingFaceSource sets the Hugging Face source.
func (m *ModelConfig) SetHuggingFaceSource(source HuggingFaceSource) {
	m.Source.HuggingFace = &source
}

// ApplyDefaults fills every optional field left empty by the config file.
func (c *Config) ApplyDefaults() {
	if c.Profile == "" {
		c.Profile = ProfileFast
	}
	if c.Device == "" {
		c.Device = DeviceAuto
	}
	if c.Storage.OutputDir == "" {
		c.Storage.OutputDir = DefaultOutputDir
	}
	c.Sticker.applyDefaults()
}

func (s *StickerConfig) applyDefaults() {
	if s.TextStyle == "" {
		s.TextStyle = DefaultTextStyle
	}
	if s.VoiceStyle == "" {
		s.VoiceStyle = DefaultVoiceStyle
	}
	if len(s.Background) != 3 {
		s.Background = []int{255, 255, 255}
	}
}

// BackgroundRGB returns the chroma-key reference color.
func (s StickerConfig) BackgroundRGB() [3]uint8 {
	if len(s.Background) != 3 {
		return [3]uint8{255, 255, 255}
	}
	return [3]uint8{clampByte(s.Background[0]), clampByte(s.Background[1]), clampByte(s.Background[2])}
}

// ResolveOutputDir returns the artifact directory.
// Precedence:
// 1. STICKERFORGE_OUTPUT_DIR environment variable.
// 2. storage.output_dir in the config.
// 3. DefaultOutputDir.
func (c *Config) ResolveOutputDir() string {
	if p := os.Getenv(envvar.StickerforgeOutputDir); p != "" {
		return xfs.ExpandTilde(p)
	}
	if c.Storage.OutputDir != "" {
		return xfs.ExpandTilde(c.Storage.OutputDir)
	}
	return DefaultOutputDir
}

func clampByte(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
