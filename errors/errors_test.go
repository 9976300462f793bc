package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesKind(t *testing.T) {
	err := Wrap(ErrNotFound, "song abc123")
	assert.True(t, Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), "song abc123")
	assert.Contains(t, err.Error(), "not found")
}

func TestIs(t *testing.T) {
	wrapped := Wrapf(ErrConflict, "job %s already exists", "j1")

	assert.True(t, Is(wrapped, ErrConflict))
	assert.False(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(nil, ErrConflict))
}

func TestMatchers(t *testing.T) {
	assert.True(t, IsNotFound(Wrap(ErrNotFound, "x")))
	assert.True(t, IsConflict(Wrap(ErrConflict, "x")))
	assert.True(t, IsValidation(Wrap(ErrValidation, "x")))
	assert.True(t, IsInvalidState(Wrap(ErrInvalidState, "x")))
	assert.True(t, IsAccessDenied(Wrap(ErrAccessDenied, "x")))
	assert.True(t, IsCancelled(Wrap(ErrCancelled, "x")))

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(New("unrelated")))
}

func TestNewNotFoundError(t *testing.T) {
	err := NewNotFoundError("job %s", "j42")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "j42")
}

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{Wrap(ErrValidation, "bad body"), CodeValidation},
		{Wrap(ErrNotFound, "no song"), CodeNotFound},
		{Wrap(ErrConflict, "dup"), CodeConflict},
		{Wrap(ErrInvalidState, "terminal"), CodeInvalidState},
		{Wrap(ErrAccessDenied, "escape"), CodeSecurity},
		{Wrap(ErrSeparation, "demucs"), CodeSeparation},
		{Wrap(ErrDownloader, "yt-dlp"), CodeDownloader},
		{New("anything else"), CodeInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.code, Code(tc.err), tc.err.Error())
	}
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrInvalidState))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrAccessDenied))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrConflict))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrTimeout))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(ErrProviderFailure))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrStorageFailure))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := WithDetail(Wrap(ErrNotFound, "job lookup"), "Job ID: j7")

	details := GetAllDetails(err)
	require.Len(t, details, 1)
	assert.Equal(t, "Job ID: j7", details[0])
	assert.True(t, IsNotFound(err))
}

func TestNilHandling(t *testing.T) {
	assert.Nil(t, Wrap(nil, "context"))
	assert.Nil(t, Wrapf(nil, "context %d", 1))
	assert.Nil(t, WithStack(nil))
	assert.Nil(t, WithDetail(nil, "detail"))
}

func TestErrorChaining(t *testing.T) {
	err := Wrap(ErrStorageFailure, "insert job")
	err = WithDetail(err, "Job ID: j1")
	err = Wrap(err, "submit")

	assert.True(t, Is(err, ErrStorageFailure))
	assert.Contains(t, err.Error(), "submit")
	assert.Contains(t, err.Error(), "insert job")
	assert.Contains(t, GetAllDetails(err), "Job ID: j1")
}

func ExampleWrap() {
	err := Wrap(New("connection refused"), "failed to reach lyrics provider")
	fmt.Println(err)
	// Output: failed to reach lyrics provider: connection refused
}
