package env

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ekisa-team/stickerforge/internal/envvar"
)

func TestParse(t *testing.T) {
	cases := map[string]Environment{
		"":            Development,
		"development": Development,
		"PROD":        Production,
		" production": Production,
		"test":        Test,
		"staging":     Development,
	}

	for raw, want := range cases {
		assert.Equal(t, want, Parse(raw), "raw=%q", raw)
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(envvar.StickerforgeEnv, "production")
	assert.True(t, FromEnv().IsProduction())

	t.Setenv(envvar.StickerforgeEnv, "")
	assert.Equal(t, Development, FromEnv())
}
