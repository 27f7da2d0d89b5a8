package session

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/platform"
	"github.com/felixgeelhaar/agriconnect/internal/principal"
)

// DefaultPhoneRegion is used to parse phone numbers written without a
// country prefix.
const DefaultPhoneRegion = "KE"

// Registration is a farmer or supplier sign-up request.
type Registration struct {
	Username        string
	Email           string
	Password        string
	ConfirmPassword string
	UserType        string

	FirstName string
	LastName  string
	Phone     string
	Address   string
	Region    string
	FarmSize  *float64
	Gender    string
}

// Validate checks the registration and returns the nested request body
// the backend accepts. Phone numbers are normalized to E.164.
func (r Registration) Validate(phoneRegion string) (platform.RegistrationRequest, error) {
	r.Username = strings.TrimSpace(r.Username)
	r.Email = strings.TrimSpace(r.Email)
	if r.UserType == "" {
		r.UserType = principal.UserTypeFarmer
	}

	err := validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 80)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
		validation.Field(&r.UserType, validation.In(principal.UserTypeFarmer, principal.UserTypeSupplier)),
	)
	if err != nil {
		return platform.RegistrationRequest{}, agerrors.Wrap(agerrors.ErrCodeValidationFailed, "invalid registration", err)
	}

	if r.ConfirmPassword != "" && r.ConfirmPassword != r.Password {
		return platform.RegistrationRequest{}, agerrors.NewPasswordMismatchError()
	}

	if r.FarmSize != nil && *r.FarmSize < 0 {
		return platform.RegistrationRequest{}, agerrors.New(agerrors.ErrCodeValidationFailed, "farm_size: must not be negative")
	}

	phone := strings.TrimSpace(r.Phone)
	if phone != "" {
		phone, err = normalizePhone(phone, phoneRegion)
		if err != nil {
			return platform.RegistrationRequest{}, err
		}
	}

	return platform.RegistrationRequest{
		User: platform.AccountFields{
			Username: r.Username,
			Email:    r.Email,
			Password: r.Password,
			UserType: r.UserType,
		},
		Profile: platform.ProfileFields{
			FirstName: strings.TrimSpace(r.FirstName),
			LastName:  strings.TrimSpace(r.LastName),
			Phone:     phone,
			Address:   r.Address,
			Region:    r.Region,
			FarmSize:  r.FarmSize,
			Gender:    r.Gender,
		},
	}, nil
}

func normalizePhone(raw, region string) (string, error) {
	if region == "" {
		region = DefaultPhoneRegion
	}
	num, err := phonenumbers.Parse(raw, strings.ToUpper(region))
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", agerrors.New(agerrors.ErrCodeInvalidPhoneNumber, "invalid phone number: "+raw).
			WithSuggestion("Use international format, e.g. +254712345678")
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}
