package domain

import "time"

// Gender enumerates the accepted profile genders.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// User represents a registered shopper together with its credential state.
type User struct {
	ID                   string
	Name                 string
	Email                string
	Phone                string
	Gender               Gender
	PasswordHash         string
	PasswordChangedAt    *time.Time
	PasswordResetToken   *string
	PasswordResetExpires *time.Time
	Active               bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PasswordChangedAfter reports whether the password was changed after a token
// issued at issuedAt.
func (u *User) PasswordChangedAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Before(*u.PasswordChangedAt)
}

// HasPendingReset reports whether a reset secret is stored and still usable at now.
func (u *User) HasPendingReset(now time.Time) bool {
	return u.PasswordResetToken != nil && u.PasswordResetExpires != nil && u.PasswordResetExpires.After(now)
}

// Profile is the outbound representation of a user. It never carries credential fields.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Gender    Gender    `json:"gender"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile returns the sanitized view of the user.
func (u *User) Profile() Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Phone:     u.Phone,
		Gender:    u.Gender,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
