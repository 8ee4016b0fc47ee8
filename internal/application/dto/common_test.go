package dto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/portal-identidad/internal/application/dto"
)

func TestPageRequest_DefaultPage(t *testing.T) {
	p := dto.PageRequest{}
	p.DefaultPage()
	assert.Equal(t, dto.PageRequest{Limit: 20, Offset: 0}, p)

	p = dto.PageRequest{Limit: 500, Offset: -3}
	p.DefaultPage()
	assert.Equal(t, dto.PageRequest{Limit: dto.MaxPageLimit, Offset: 0}, p)
}
