package auth

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// ProfilePatch carries the fields of a profile completion step. Nil fields
// are left untouched.
type ProfilePatch struct {
	Name              *string `json:"name,omitempty"`
	Email             *string `json:"email,omitempty"`
	CommunityID       *string `json:"communityId,omitempty"`
	ApartmentNumber   *string `json:"apartmentNumber,omitempty"`
	IsProfileComplete *bool   `json:"isProfileComplete,omitempty"`
}

// Validate checks the fields that are set.
func (p ProfilePatch) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.NilOrNotEmpty, validation.Length(1, 120)),
		validation.Field(&p.Email, validation.NilOrNotEmpty, is.Email),
		validation.Field(&p.CommunityID, validation.NilOrNotEmpty),
		validation.Field(&p.ApartmentNumber, validation.NilOrNotEmpty, validation.Length(1, 20)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, ErrInvalidProfile.Message).
			WithTextCode(TextCodeInvalidProfile).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// Apply writes the patch into profile.
func (p ProfilePatch) Apply(profile *Profile) {
	if p.Name != nil {
		profile.Name = strings.TrimSpace(*p.Name)
	}
	if p.Email != nil {
		profile.Email = strings.TrimSpace(*p.Email)
	}
	if p.CommunityID != nil {
		profile.CommunityID = strings.TrimSpace(*p.CommunityID)
	}
	if p.ApartmentNumber != nil {
		profile.ApartmentNumber = strings.TrimSpace(*p.ApartmentNumber)
	}
	if p.IsProfileComplete != nil {
		profile.IsProfileComplete = *p.IsProfileComplete
	}
}

func validateRole(role string) (UserRole, error) {
	err := validation.Validate(strings.ToLower(strings.TrimSpace(role)),
		validation.Required,
		validation.In(RoleCustomer, RoleAdmin, RoleDelivery, RoleDeliveryPartner),
	)
	if err != nil {
		return "", ErrInvalidRole.Clone().WithMetadata(map[string]any{"role": role})
	}
	parsed, _ := ParseRole(role)
	return parsed, nil
}

func validateCommunity(id string) (string, error) {
	id = strings.TrimSpace(id)
	if err := validation.Validate(id, validation.Required, validation.Length(1, 128)); err != nil || !usableValue(id) {
		return "", goerrors.New("community id is required", goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidProfile).
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}
