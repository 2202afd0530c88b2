package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// WelcomeMessage is returned by the root route.
const WelcomeMessage = "Welcome to the stickerforge AI sticker generator API!"

type HealthOutput struct {
	Body struct {
		Message string `json:"message"`
	}
}

// RegisterHealth registers the root acknowledgement route.
func RegisterHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "home",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Service acknowledgement",
		Tags:        []string{"health"},
	}, func(context.Context, *struct{}) (*HealthOutput, error) {
		out := &HealthOutput{}
		out.Body.Message = WelcomeMessage
		return out, nil
	})
}
