package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMapsStatusAndSuggestion(t *testing.T) {
	err := New(ErrStale, "nonce already used", nil)
	assert.Equal(t, http.StatusConflict, err.HTTPStatus)
	assert.NotEmpty(t, err.Suggestion)
	assert.Equal(t, "nonce already used", err.Error())

	assert.Equal(t, http.StatusServiceUnavailable, New(ErrSystemPanic, "x", nil).HTTPStatus)
	assert.Equal(t, http.StatusForbidden, New(ErrCustody, "x", nil).HTTPStatus)
}

func TestIsSeesThroughWrapping(t *testing.T) {
	base := New(ErrTraitMismatch, "missing trait", nil)
	wrapped := fmt.Errorf("fill: %w", base)

	assert.True(t, Is(wrapped, ErrTraitMismatch))
	assert.False(t, Is(wrapped, ErrStale))
	assert.Equal(t, ErrInternal, TypeOf(errors.New("boom")))
	assert.Equal(t, ErrorType(""), TypeOf(nil))
}

func TestWrapKeepsAppError(t *testing.T) {
	base := New(ErrTransfer, "insufficient balance", nil)
	assert.Same(t, base, Wrap(fmt.Errorf("outer: %w", base)))
	assert.Nil(t, Wrap(nil))
	assert.Equal(t, ErrInternal, Wrap(errors.New("x")).Type)
}
