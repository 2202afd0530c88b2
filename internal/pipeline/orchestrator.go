// Package pipeline turns text, image and voice requests into stored stickers.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/ekisa-team/stickerforge/internal/artifact"
	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/sticker"
)

// Engine runs the models behind the pipeline.
type Engine interface {
	Synthesize(ctx context.Context, prompt string, width, height, steps int) (image.Image, error)
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Store persists finished stickers.
type Store interface {
	Save(ctx context.Context, img image.Image, category artifact.Category, originalName string) (artifact.Record, error)
}

// Settings are the reloadable knobs of the pipeline.
type Settings struct {
	TextStyle  string
	VoiceStyle string
	Background sticker.BackgroundColor
}

// SettingsFromConfig converts the sticker config section.
func SettingsFromConfig(cfg config.StickerConfig) Settings {
	s := Settings{
		TextStyle:  cfg.TextStyle,
		VoiceStyle: cfg.VoiceStyle,
		Background: sticker.BackgroundFromRGB(cfg.BackgroundRGB()),
	}
	if s.TextStyle == "" {
		s.TextStyle = config.DefaultTextStyle
	}
	if s.VoiceStyle == "" {
		s.VoiceStyle = config.DefaultVoiceStyle
	}
	return s
}

// Result is the outcome of a successful request.
type Result struct {
	Record artifact.Record
	// Prompt is the text sent to the image model; empty for uploads.
	Prompt string
	// Transcript is the recognized speech of a voice request.
	Transcript string
	States     []State
}

// Orchestrator sequences the steps of every request kind.
type Orchestrator struct {
	engine   Engine
	store    Store
	settings atomic.Pointer[Settings]
	params   config.SynthesisParams
}

// New creates an Orchestrator. params fixes the sticker size and step count.
func New(engine Engine, store Store, params config.SynthesisParams, settings Settings) *Orchestrator {
	o := &Orchestrator{
		engine: engine,
		store:  store,
		params: params,
	}
	o.settings.Store(&settings)
	return o
}

// Settings returns the settings in effect.
func (o *Orchestrator) Settings() Settings {
	return *o.settings.Load()
}

// UpdateSettings swaps the settings used by requests that start afterwards.
func (o *Orchestrator) UpdateSettings(s Settings) {
	o.settings.Store(&s)
	slog.Info("Sticker settings updated", "background", s.Background, "text_style", s.TextStyle, "voice_style", s.VoiceStyle)
}

// Run executes req to completion. The work is detached from ctx cancellation
// so a disconnected caller still gets its sticker written.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	settings := o.Settings()
	tr := newTrace(slog.With("kind", req.Kind()))

	var (
		res *Result
		err error
	)
	switch req.Kind() {
	case KindText:
		res, err = o.runText(ctx, tr, settings, req)
	case KindImage:
		res, err = o.runImage(ctx, tr, settings, req)
	case KindVoice:
		res, err = o.runVoice(ctx, tr, settings, req)
	default:
		err = fmt.Errorf("%w: unknown request kind %q", ErrDecode, req.Kind())
	}
	if err != nil {
		return nil, tr.fail(err)
	}

	tr.enter(StateDone)
	res.States = tr.states
	return res, nil
}

func (o *Orchestrator) runText(ctx context.Context, tr *trace, s Settings, req Request) (*Result, error) {
	text := strings.TrimSpace(req.text)
	if text == "" {
		return nil, ErrEmptyPrompt
	}
	tr.enter(StateNormalized)

	prompt := composePrompt(text, s.TextStyle)
	return o.synthesizeAndStore(ctx, tr, s, prompt, artifact.CategoryText, &Result{Prompt: prompt})
}

func (o *Orchestrator) runVoice(ctx context.Context, tr *trace, s Settings, req Request) (*Result, error) {
	if len(req.data) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrDecode)
	}
	tr.enter(StateNormalized)

	transcript, err := o.engine.Transcribe(ctx, req.data, req.Filename())
	if err != nil {
		return nil, asInference(fmt.Errorf("transcribe: %w", err))
	}
	tr.enter(StateTranscribed)

	prompt := composePrompt(strings.TrimSpace(transcript), s.VoiceStyle)
	return o.synthesizeAndStore(ctx, tr, s, prompt, artifact.CategoryVoice, &Result{Prompt: prompt, Transcript: transcript})
}

func (o *Orchestrator) runImage(ctx context.Context, tr *trace, s Settings, req Request) (*Result, error) {
	src, format, err := sticker.Decode(req.data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	img := sticker.Resize(sticker.ToNRGBA(src), o.params.Size, o.params.Size)
	tr.enter(StateNormalized)
	slog.Debug("Upload normalized", "format", format, "source_size", src.Bounds().Size(), "size", o.params.Size)

	tr.enter(StatePassThrough)
	return o.finish(ctx, tr, s, img, artifact.CategoryUpload, req.Filename(), &Result{})
}

func (o *Orchestrator) synthesizeAndStore(ctx context.Context, tr *trace, s Settings, prompt string, category artifact.Category, res *Result) (*Result, error) {
	img, err := o.engine.Synthesize(ctx, prompt, o.params.Size, o.params.Size, o.params.Steps)
	if err != nil {
		return nil, asInference(fmt.Errorf("synthesize: %w", err))
	}
	tr.enter(StateSynthesized)

	return o.finish(ctx, tr, s, img, category, "", res)
}

func (o *Orchestrator) finish(ctx context.Context, tr *trace, s Settings, img image.Image, category artifact.Category, name string, res *Result) (*Result, error) {
	out := sticker.MakeTransparent(img, s.Background)
	tr.enter(StateTransparent)

	rec, err := o.store.Save(ctx, out, category, name)
	if err != nil {
		if !errors.Is(err, ErrStorage) {
			err = fmt.Errorf("%w: %w", ErrStorage, err)
		}
		return nil, err
	}
	tr.enter(StateStored)

	res.Record = rec
	slog.Info("Sticker stored", "name", rec.Name, "category", rec.Category)
	return res, nil
}

func composePrompt(subject, style string) string {
	if subject == "" {
		return style
	}
	return subject + ", " + style
}

func asInference(err error) error {
	if errors.Is(err, ErrInference) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInference, err)
}
