package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/felixgeelhaar/agriconnect/internal/principal"
	"github.com/felixgeelhaar/agriconnect/internal/session"
)

func TestLoginFieldsOnlyAskForMissing(t *testing.T) {
	assert.Len(t, loginFields(&Credentials{}, false), 2)
	assert.Len(t, loginFields(&Credentials{Username: "alice"}, false), 1)
	assert.Empty(t, loginFields(&Credentials{Username: "alice", Password: "pw"}, true))
}

func TestPromptLoginNoopWhenComplete(t *testing.T) {
	assert.NoError(t, PromptLogin(&Credentials{Username: "alice", Password: "pw"}, false))
}

func TestRegistrationFields(t *testing.T) {
	r := &session.Registration{}
	fields := registrationFields(r)
	// username, email, password, confirm, user type, first, last, phone
	assert.Len(t, fields, 8)
	assert.Equal(t, principal.UserTypeFarmer, r.UserType, "select starts on farmer")

	full := &session.Registration{
		Username:  "bob",
		Email:     "bob@example.com",
		Password:  "pw",
		UserType:  principal.UserTypeSupplier,
		FirstName: "Bob",
	}
	assert.Empty(t, registrationFields(full))
	assert.NoError(t, PromptRegistration(full))
}

func TestShouldPromptDisabledInCI(t *testing.T) {
	for _, v := range ciEnvVars {
		t.Run(v, func(t *testing.T) {
			t.Setenv(v, "true")
			assert.False(t, ShouldPrompt())
		})
	}
}
