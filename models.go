package auth

import (
	"strings"
	"time"
)

// Profile is the onboarding data attached to a UserRecord.
type Profile struct {
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`
	CommunityID       string `json:"communityId,omitempty"`
	ApartmentNumber   string `json:"apartmentNumber,omitempty"`
	IsProfileComplete bool   `json:"isProfileComplete"`
}

// Complete reports whether the profile is complete. The completion flag is
// owned by a remote system, so a flagged profile missing its community or
// apartment is still treated as incomplete.
func (p *Profile) Complete() bool {
	if p == nil || !p.IsProfileComplete {
		return false
	}
	return strings.TrimSpace(p.CommunityID) != "" && strings.TrimSpace(p.ApartmentNumber) != ""
}

// UserRecord is the authoritative per-user document, cached locally.
type UserRecord struct {
	UserID      string     `json:"userId"`
	PhoneNumber string     `json:"phoneNumber"`
	Role        UserRole   `json:"role,omitempty"`
	Profile     *Profile   `json:"profile,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// NewUserRecord returns the defaults used when a user signs in for the
// first time: no role and an incomplete profile.
func NewUserRecord(id, phone string) *UserRecord {
	return &UserRecord{
		UserID:      id,
		PhoneNumber: phone,
		Profile:     &Profile{IsProfileComplete: false},
	}
}

// CommunityID returns the profile community, if any.
func (u *UserRecord) CommunityID() string {
	if u == nil || u.Profile == nil {
		return ""
	}
	return strings.TrimSpace(u.Profile.CommunityID)
}

// EnsureProfile makes sure Profile is non nil and returns it.
func (u *UserRecord) EnsureProfile() *Profile {
	if u.Profile == nil {
		u.Profile = &Profile{}
	}
	return u.Profile
}

// Clone returns a deep copy of the record.
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	out := *u
	if u.Profile != nil {
		p := *u.Profile
		out.Profile = &p
	}
	if u.LastLoginAt != nil {
		t := *u.LastLoginAt
		out.LastLoginAt = &t
	}
	return &out
}

// keepLocal fills fields that are empty on u from local.
func (u *UserRecord) keepLocal(local *UserRecord) {
	if local == nil {
		return
	}
	if strings.TrimSpace(u.Role) == "" {
		u.Role = local.Role
	}
	if u.LastLoginAt == nil && local.LastLoginAt != nil {
		t := *local.LastLoginAt
		u.LastLoginAt = &t
	}
	if local.Profile == nil {
		return
	}
	if u.Profile == nil {
		p := *local.Profile
		u.Profile = &p
		return
	}
	if u.Profile.Name == "" {
		u.Profile.Name = local.Profile.Name
	}
	if u.Profile.Email == "" {
		u.Profile.Email = local.Profile.Email
	}
	if u.Profile.CommunityID == "" {
		u.Profile.CommunityID = local.Profile.CommunityID
	}
	if u.Profile.ApartmentNumber == "" {
		u.Profile.ApartmentNumber = local.Profile.ApartmentNumber
	}
	u.Profile.IsProfileComplete = u.Profile.IsProfileComplete || local.Profile.IsProfileComplete
}

// MarkLoggedIn stamps LastLoginAt.
func (u *UserRecord) MarkLoggedIn(at time.Time) *UserRecord {
	t := at.UTC()
	u.LastLoginAt = &t
	return u
}
