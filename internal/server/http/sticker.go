package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/ekisa-team/stickerforge/internal/pipeline"
)

// MaxUploadBytes bounds image and voice uploads.
const MaxUploadBytes = 25 << 20

// Runner executes sticker requests. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

type (
	StickerFormInput struct {
		RawBody multipart.Form
	}

	StickerOutput struct {
		ContentType  string `header:"Content-Type"`
		ArtifactName string `header:"X-Artifact-Name"`
		// Transcript is URL-encoded so any language survives the header.
		Transcript string `header:"X-Sticker-Transcript"`
		Body       []byte
	}
)

// StickerHandler handles the sticker generation routes.
type StickerHandler struct {
	runner Runner
}

// NewStickerHandler registers the sticker routes on api.
func NewStickerHandler(api huma.API, runner Runner) *StickerHandler {
	h := &StickerHandler{runner: runner}

	huma.Register(api, huma.Operation{
		OperationID:   "generate-sticker",
		Method:        http.MethodPost,
		Path:          "/generate_sticker",
		Summary:       "Generate a sticker from text",
		Description:   "Multipart form with a `text` field. Returns the PNG sticker.",
		Tags:          []string{"sticker"},
		DefaultStatus: http.StatusOK,
	}, h.handleText)

	huma.Register(api, huma.Operation{
		OperationID:   "upload-image",
		Method:        http.MethodPost,
		Path:          "/upload_image",
		Summary:       "Turn an uploaded image into a sticker",
		Description:   "Multipart form with an `image` file (PNG, JPEG or GIF). Returns the PNG sticker.",
		Tags:          []string{"sticker"},
		DefaultStatus: http.StatusOK,
		MaxBodyBytes:  MaxUploadBytes,
	}, h.handleImage)

	huma.Register(api, huma.Operation{
		OperationID:   "generate-sticker-from-voice",
		Method:        http.MethodPost,
		Path:          "/generate_sticker_from_voice",
		Summary:       "Generate a sticker from a voice recording",
		Description:   "Multipart form with a `voice` file. Returns the PNG sticker.",
		Tags:          []string{"sticker"},
		DefaultStatus: http.StatusOK,
		MaxBodyBytes:  MaxUploadBytes,
	}, h.handleVoice)

	return h
}

// handleText handles the generate-sticker operation.
func (h *StickerHandler) handleText(ctx context.Context, input *StickerFormInput) (*StickerOutput, error) {
	text, ok := formValue(&input.RawBody, "text")
	if !ok {
		return nil, huma.Error422UnprocessableEntity("missing form field", &huma.ErrorDetail{
			Location: "body.text",
			Message:  "required",
		})
	}

	return h.run(ctx, pipeline.TextPrompt(text))
}

// handleImage handles the upload-image operation.
func (h *StickerHandler) handleImage(ctx context.Context, input *StickerFormInput) (*StickerOutput, error) {
	data, filename, err := formFile(&input.RawBody, "image")
	if err != nil {
		return nil, err
	}

	return h.run(ctx, pipeline.ImageUpload(data, filename))
}

// handleVoice handles the generate-sticker-from-voice operation.
func (h *StickerHandler) handleVoice(ctx context.Context, input *StickerFormInput) (*StickerOutput, error) {
	data, filename, err := formFile(&input.RawBody, "voice")
	if err != nil {
		return nil, err
	}

	return h.run(ctx, pipeline.VoiceUpload(data, filename))
}

func (h *StickerHandler) run(ctx context.Context, req pipeline.Request) (*StickerOutput, error) {
	res, err := h.runner.Run(ctx, req)
	if err != nil {
		return nil, toHTTPError(err)
	}

	body, err := os.ReadFile(res.Record.Path)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read sticker", err)
	}

	out := &StickerOutput{
		ContentType:  res.Record.ContentType,
		ArtifactName: res.Record.Name,
		Body:         body,
	}
	if req.Kind() == pipeline.KindVoice {
		out.Transcript = url.QueryEscape(strings.TrimSpace(res.Transcript))
	}
	return out, nil
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, pipeline.ErrEmptyPrompt):
		return huma.Error400BadRequest("prompt is empty", err)
	case errors.Is(err, pipeline.ErrDecode):
		return huma.Error400BadRequest("malformed upload", err)
	case errors.Is(err, pipeline.ErrInference):
		return huma.Error502BadGateway("inference failed", err)
	case errors.Is(err, pipeline.ErrStorage):
		return huma.Error500InternalServerError("failed to store sticker", err)
	default:
		return huma.Error500InternalServerError("failed to generate sticker", err)
	}
}

func formValue(form *multipart.Form, key string) (string, bool) {
	values := form.Value[key]
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func formFile(form *multipart.Form, key string) ([]byte, string, error) {
	files := form.File[key]
	if len(files) == 0 {
		return nil, "", huma.Error422UnprocessableEntity("missing form file", &huma.ErrorDetail{
			Location: "body." + key,
			Message:  "required",
		})
	}

	fh := files[0]
	f, err := fh.Open()
	if err != nil {
		return nil, "", huma.Error400BadRequest(fmt.Sprintf("failed to open %s", key), err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadBytes+1))
	if err != nil {
		return nil, "", huma.Error400BadRequest(fmt.Sprintf("failed to read %s", key), err)
	}
	if len(data) > MaxUploadBytes {
		return nil, "", huma.NewError(http.StatusRequestEntityTooLarge, fmt.Sprintf("%s exceeds %d bytes", key, MaxUploadBytes))
	}

	return data, fh.Filename, nil
}
