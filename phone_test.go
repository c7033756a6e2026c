package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/jayanthbabu123/water-delivery-app-sub000"
)

func TestNormalizePhoneNumber(t *testing.T) {
	tests := []struct {
		name   string
		phone  string
		region string
		want   string
	}{
		{name: "national number", phone: "9876543210", region: "IN", want: "+919876543210"},
		{name: "spaced international", phone: "+91 98765 43210", region: "US", want: "+919876543210"},
		{name: "default region", phone: "98765-43210", want: "+919876543210"},
		{name: "lower case region", phone: "(650) 253-0000", region: "us", want: "+16502530000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := auth.NormalizePhoneNumber(tt.phone, tt.region)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizePhoneNumber_Invalid(t *testing.T) {
	for _, phone := range []string{"", "   ", "12", "not a phone"} {
		t.Run(phone, func(t *testing.T) {
			_, err := auth.NormalizePhoneNumber(phone, "IN")
			requireTextCode(t, err, auth.TextCodeInvalidPhoneNumber)
		})
	}
}

func TestProfilePatch(t *testing.T) {
	name := "  Asha "
	email := "asha@example.com"
	apartment := "B-402"
	complete := true

	patch := auth.ProfilePatch{
		Name:              &name,
		Email:             &email,
		ApartmentNumber:   &apartment,
		IsProfileComplete: &complete,
	}
	require.NoError(t, patch.Validate())

	profile := &auth.Profile{CommunityID: "c1"}
	patch.Apply(profile)

	assert.Equal(t, &auth.Profile{
		Name:              "Asha",
		Email:             email,
		CommunityID:       "c1",
		ApartmentNumber:   apartment,
		IsProfileComplete: true,
	}, profile)

	// an empty patch is valid and changes nothing
	require.NoError(t, auth.ProfilePatch{}.Validate())
	auth.ProfilePatch{}.Apply(profile)
	assert.Equal(t, "Asha", profile.Name)
}
