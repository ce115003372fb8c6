package model

import (
	"errors"
	"strings"
)

// UserProfile is the member profile returned by the backend alongside a token.
type UserProfile struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	MiddleInitial   string `json:"middle_initial,omitempty"`
	Suffix          string `json:"suffix,omitempty"`
	PhoneNumber     string `json:"phone_number,omitempty"`
	PhysicalAddress string `json:"physical_address,omitempty"`
	BirthDate       *Date  `json:"birth_date,omitempty"`
	ProfilePicture  string `json:"profile_picture,omitempty"`
}

// DisplayName returns the best available human name for the member.
func (u *UserProfile) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return u.Username
}

// Merge applies non-empty fields of other onto a copy of u.
func (u UserProfile) Merge(other *UserProfile) UserProfile {
	if other == nil {
		return u
	}
	if other.ID != 0 {
		u.ID = other.ID
	}
	setIf(&u.Username, other.Username)
	setIf(&u.Email, other.Email)
	setIf(&u.FullName, other.FullName)
	setIf(&u.FirstName, other.FirstName)
	setIf(&u.LastName, other.LastName)
	setIf(&u.MiddleInitial, other.MiddleInitial)
	setIf(&u.Suffix, other.Suffix)
	setIf(&u.PhoneNumber, other.PhoneNumber)
	setIf(&u.PhysicalAddress, other.PhysicalAddress)
	setIf(&u.ProfilePicture, other.ProfilePicture)
	if other.BirthDate != nil {
		d := *other.BirthDate
		u.BirthDate = &d
	}
	return u
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// LoginRequest is the body of the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration holds the fields of a new account.
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FullName        string `json:"full_name,omitempty"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Client-detectable registration errors.
var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrMissingField     = errors.New("required field missing")
)

// Validate performs the checks that need no network round-trip.
// Password confirmation is checked first.
func (r *Registration) Validate() error {
	if r.Password != r.ConfirmPassword {
		return ErrPasswordMismatch
	}
	var missing []string
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(r.Email) == "" {
		missing = append(missing, "email")
	}
	if r.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return &MissingFieldsError{Fields: missing}
	}
	return nil
}

// MissingFieldsError lists required fields left empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "please fill in all required fields: " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is match ErrMissingField.
func (e *MissingFieldsError) Is(target error) bool {
	return target == ErrMissingField
}

// ProfileUpdate carries the changed profile fields. Nil fields are left
// untouched by the backend (PATCH semantics).
type ProfileUpdate struct {
	FullName        *string `json:"full_name,omitempty"`
	FirstName       *string `json:"first_name,omitempty"`
	LastName        *string `json:"last_name,omitempty"`
	MiddleInitial   *string `json:"middle_initial,omitempty"`
	Suffix          *string `json:"suffix,omitempty"`
	PhoneNumber     *string `json:"phone_number,omitempty"`
	PhysicalAddress *string `json:"physical_address,omitempty"`
	BirthDate       *Date   `json:"birth_date,omitempty"`
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.FullName == nil && p.FirstName == nil && p.LastName == nil &&
		p.MiddleInitial == nil && p.Suffix == nil && p.PhoneNumber == nil &&
		p.PhysicalAddress == nil && p.BirthDate == nil
}

// Diff builds an update containing only the fields of next that differ from
// current.
func Diff(current, next UserProfile) ProfileUpdate {
	var p ProfileUpdate
	diffField(&p.FullName, current.FullName, next.FullName)
	diffField(&p.FirstName, current.FirstName, next.FirstName)
	diffField(&p.LastName, current.LastName, next.LastName)
	diffField(&p.MiddleInitial, current.MiddleInitial, next.MiddleInitial)
	diffField(&p.Suffix, current.Suffix, next.Suffix)
	diffField(&p.PhoneNumber, current.PhoneNumber, next.PhoneNumber)
	diffField(&p.PhysicalAddress, current.PhysicalAddress, next.PhysicalAddress)
	if next.BirthDate != nil && (current.BirthDate == nil || !current.BirthDate.Equal(*next.BirthDate)) {
		d := *next.BirthDate
		p.BirthDate = &d
	}
	return p
}

func diffField(dst **string, cur, next string) {
	if cur != next {
		v := next
		*dst = &v
	}
}

// PasswordResetRequest is the body of the password reset endpoint.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// DeviceRegistration is the body of the device registration endpoint.
type DeviceRegistration struct {
	DeviceToken string `json:"device_token"`
}
