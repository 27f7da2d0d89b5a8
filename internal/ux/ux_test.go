package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
)

func farmerSession() session.Session {
	return session.Session{
		State: session.Authenticated,
		Role:  principal.RoleUser,
		Token: "secret-token",
		Principal: &principal.User{
			ID:       7,
			Username: "wanjiru",
			UserType: principal.UserTypeFarmer,
			Profile:  &principal.Profile{FirstName: "Wanjiru", LastName: "Kamau"},
		},
		ExpiresAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewFormatter(t *testing.T) {
	for _, format := range []string{"json", "yaml", "text", ""} {
		_, err := NewFormatter(format, nil)
		assert.NoError(t, err, format)
	}
	_, err := NewFormatter("xml", nil)
	assert.Error(t, err)
}

func TestSessionViewFormats(t *testing.T) {
	view := NewSessionView(farmerSession(), false)

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		f, err := NewFormatter("json", &FormatterOptions{Writer: &buf})
		require.NoError(t, err)
		require.NoError(t, f.Format(view))

		out := buf.String()
		assert.Contains(t, out, `"state": "authenticated"`)
		assert.Contains(t, out, `"display_name": "Wanjiru Kamau"`)
		assert.Contains(t, out, `"user_type": "farmer"`)
		assert.NotContains(t, out, "secret-token")
	})

	t.Run("yaml", func(t *testing.T) {
		var buf bytes.Buffer
		f, err := NewFormatter("yaml", &FormatterOptions{Writer: &buf})
		require.NoError(t, err)
		require.NoError(t, f.Format(view))

		out := buf.String()
		assert.Contains(t, out, "role: user")
		assert.Contains(t, out, "username: wanjiru")
		assert.NotContains(t, out, "secret-token")
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		f, err := NewFormatter("text", &FormatterOptions{Writer: &buf, NoColor: true})
		require.NoError(t, err)
		require.NoError(t, f.Format(view))

		out := buf.String()
		assert.Contains(t, out, "logged in")
		assert.Contains(t, out, "Wanjiru Kamau")
		assert.Contains(t, out, "user (farmer)")
		assert.Contains(t, out, "Expires:")
	})
}

func TestSessionViewSignedOut(t *testing.T) {
	view := NewSessionView(session.Session{State: session.Unauthenticated}, false)
	assert.Empty(t, view.Role)
	assert.Nil(t, view.ExpiresAt)
	assert.Contains(t, view.String(), "not logged in")
}

func TestSessionViewUnconfirmed(t *testing.T) {
	view := NewSessionView(farmerSession(), true)
	assert.Contains(t, view.String(), "not confirmed")
}

func TestTextFormatterRejectsStructs(t *testing.T) {
	f, err := NewFormatter("text", &FormatterOptions{Writer: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.Error(t, f.Format(struct{ A int }{1}))
}

func TestEnhanceError(t *testing.T) {
	assert.Nil(t, EnhanceError(nil))

	coded := agerrors.NewNotAuthenticatedError()
	assert.Same(t, coded, EnhanceError(coded))

	err := EnhanceError(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"))
	assert.True(t, strings.Contains(err.Error(), "--store file"))

	err = EnhanceError(errors.New("dial tcp 127.0.0.1:5000: connect: connection refused"))
	assert.Contains(t, err.Error(), "--api-url")

	plain := errors.New("something else")
	assert.Equal(t, plain, EnhanceError(plain))
}
