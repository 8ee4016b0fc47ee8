package logger_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/portal-identidad/pkg/logger"
)

func TestNew_ProduccionEscribeJSONConApp(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "info", App: "portal", Out: &buf})

	comp := log.Component("seed")
	comp.Info().Str("admin", "created").Msg("seed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "portal", line["app"])
	assert.Equal(t, "seed", line["component"])
	assert.Equal(t, "created", line["admin"])
	assert.Equal(t, "info", line["level"])
}

func TestNew_RespetaNivel(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Env: "production", Level: "WARN", Out: &buf})

	log.Info().Msg("no aparece")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("sí aparece")
	assert.Contains(t, buf.String(), "sí aparece")
}

func TestNew_DesarrolloEsLegible(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.Config{Env: "Development", Level: "debug", Out: &buf})

	log.Debug().Msg("hola")
	assert.Contains(t, buf.String(), "hola")
	assert.NotContains(t, buf.String(), `"message"`)
}
