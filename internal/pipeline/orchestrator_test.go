package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/stickerforge/internal/artifact"
	"github.com/ekisa-team/stickerforge/internal/config"
	"github.com/ekisa-team/stickerforge/internal/sticker"
)

type MockEngine struct {
	mock.Mock
}

func (m *MockEngine) Synthesize(ctx context.Context, prompt string, width, height, steps int) (image.Image, error) {
	args := m.Called(ctx, prompt, width, height, steps)
	if img := args.Get(0); img != nil {
		return img.(image.Image), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	args := m.Called(ctx, audio, filename)
	return args.String(0), args.Error(1)
}

type failingStore struct{}

func (failingStore) Save(context.Context, image.Image, artifact.Category, string) (artifact.Record, error) {
	return artifact.Record{}, errors.New("disk full")
}

var fast = config.ProfileFast.Params()

// whiteWithDot is a white square with one red pixel in the middle.
func whiteWithDot(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 255, 255, 255, 255
	}
	img.SetNRGBA(size/2, size/2, color.NRGBA{R: 255, A: 255})
	return img
}

func newTestOrchestrator(t *testing.T, engine Engine) (*Orchestrator, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := artifact.NewStore(dir)
	require.NoError(t, err)

	settings := SettingsFromConfig(config.StickerConfig{})
	return New(engine, store, fast, settings), store.Dir()
}

func pngFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	require.NoError(t, err)
	return matches
}

func TestOrchestrator_Text(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, "a red panda, "+config.DefaultTextStyle, 384, 384, 12).
		Return(whiteWithDot(384), nil)

	o, dir := newTestOrchestrator(t, engine)

	res, err := o.Run(context.Background(), TextPrompt("  a red panda \n"))
	require.NoError(t, err)

	assert.Equal(t, "generated_sticker_1.png", res.Record.Name)
	assert.Equal(t, filepath.Join(dir, "generated_sticker_1.png"), res.Record.Path)
	assert.Equal(t, []State{StateReceived, StateNormalized, StateSynthesized, StateTransparent, StateStored, StateDone}, res.States)

	f, err := os.Open(res.Record.Path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a)
	_, _, _, a = img.At(192, 192).RGBA()
	assert.Equal(t, uint32(0xffff), a)
	engine.AssertExpectations(t)
}

func TestOrchestrator_TextEmpty(t *testing.T) {
	engine := new(MockEngine)
	o, dir := newTestOrchestrator(t, engine)

	_, err := o.Run(context.Background(), TextPrompt("   "))
	assert.ErrorIs(t, err, ErrEmptyPrompt)
	assert.Empty(t, pngFiles(t, dir))
	engine.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_VoicePromptCarriesTranscript(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Transcribe", mock.Anything, []byte("RIFF...."), "hello.wav").Return(" hello", nil)

	var prompt string
	engine.On("Synthesize", mock.Anything, mock.Anything, 384, 384, 12).
		Run(func(args mock.Arguments) { prompt = args.String(1) }).
		Return(whiteWithDot(384), nil)

	o, _ := newTestOrchestrator(t, engine)

	res, err := o.Run(context.Background(), VoiceUpload([]byte("RIFF...."), "hello.wav"))
	require.NoError(t, err)

	assert.Contains(t, prompt, "hello")
	assert.Contains(t, prompt, config.DefaultVoiceStyle)
	assert.Equal(t, prompt, res.Prompt)
	assert.Equal(t, " hello", res.Transcript)
	assert.Equal(t, "voice_generated_sticker_1.png", res.Record.Name)
	assert.Equal(t, []State{StateReceived, StateNormalized, StateTranscribed, StateSynthesized, StateTransparent, StateStored, StateDone}, res.States)
}

func TestOrchestrator_InferenceFailureLeavesNoArtifact(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("CUDA out of memory"))

	o, dir := newTestOrchestrator(t, engine)

	_, err := o.Run(context.Background(), TextPrompt("a cat"))
	assert.ErrorIs(t, err, ErrInference)
	assert.ErrorContains(t, err, "CUDA out of memory")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestOrchestrator_TranscriptionFailure(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Transcribe", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("unsupported codec"))

	o, dir := newTestOrchestrator(t, engine)

	_, err := o.Run(context.Background(), VoiceUpload([]byte("????"), "memo.xyz"))
	assert.ErrorIs(t, err, ErrInference)
	assert.Empty(t, pngFiles(t, dir))
	engine.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_VoiceEmpty(t *testing.T) {
	o, _ := newTestOrchestrator(t, new(MockEngine))

	_, err := o.Run(context.Background(), VoiceUpload(nil, "memo.wav"))
	assert.ErrorIs(t, err, ErrDecode)
}

func TestOrchestrator_ImageUpload(t *testing.T) {
	engine := new(MockEngine)
	o, dir := newTestOrchestrator(t, engine)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, whiteWithDot(100)))

	res, err := o.Run(context.Background(), ImageUpload(buf.Bytes(), "cat.png"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "uploaded_cat.png"), res.Record.Path)
	assert.Equal(t, []State{StateReceived, StateNormalized, StatePassThrough, StateTransparent, StateStored, StateDone}, res.States)

	f, err := os.Open(res.Record.Path)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 384, cfg.Width)
	assert.Equal(t, 384, cfg.Height)

	engine.AssertNotCalled(t, "Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestOrchestrator_ImageUploadMalformed(t *testing.T) {
	o, dir := newTestOrchestrator(t, new(MockEngine))

	_, err := o.Run(context.Background(), ImageUpload([]byte("<html>"), "cat.png"))
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, pngFiles(t, dir))
}

func TestOrchestrator_StorageFailure(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(whiteWithDot(8), nil)

	o := New(engine, failingStore{}, fast, SettingsFromConfig(config.StickerConfig{}))

	_, err := o.Run(context.Background(), TextPrompt("a cat"))
	assert.ErrorIs(t, err, ErrStorage)
}

func TestOrchestrator_RunsAfterCallerCancels(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(whiteWithDot(8), nil)

	o, _ := newTestOrchestrator(t, engine)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, TextPrompt("a cat"))
	require.NoError(t, err)
	assert.FileExists(t, res.Record.Path)
}

func TestOrchestrator_UpdateSettings(t *testing.T) {
	engine := new(MockEngine)
	engine.On("Synthesize", mock.Anything, "a cat, pixel art", 384, 384, 12).Return(whiteWithDot(8), nil)

	o, _ := newTestOrchestrator(t, engine)
	o.UpdateSettings(Settings{TextStyle: "pixel art", VoiceStyle: "pixel art", Background: sticker.BackgroundColor{R: 255}})

	res, err := o.Run(context.Background(), TextPrompt("a cat"))
	require.NoError(t, err)

	f, err := os.Open(res.Record.Path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a, "white is no longer the key color")
	_, _, _, a = img.At(4, 4).RGBA()
	assert.Equal(t, uint32(0), a, "red is the key color")
	engine.AssertExpectations(t)
}

func TestSettingsFromConfig(t *testing.T) {
	s := SettingsFromConfig(config.StickerConfig{Background: []int{0, 300, -4}, TextStyle: "flat"})

	assert.Equal(t, sticker.BackgroundColor{R: 0, G: 255, B: 0}, s.Background)
	assert.Equal(t, "flat", s.TextStyle)
	assert.Equal(t, config.DefaultVoiceStyle, s.VoiceStyle)
}
