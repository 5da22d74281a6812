package user

import "time"

type User struct {
	UID           string    `gorm:"primaryKey;column:uid" json:"uid"`
	Email         string    `gorm:"not null;uniqueIndex" json:"email"`
	DisplayName   string    `json:"displayName,omitempty"`
	PasswordHash  string    `gorm:"not null" json:"-"`
	EmailVerified bool      `gorm:"default:false" json:"emailVerified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Record is the provider-neutral view of an identity account.
type Record struct {
	UID           string
	Email         string
	DisplayName   string
	EmailVerified bool
}

type NewUser struct {
	Email       string
	Password    string
	DisplayName string
}

func (u *User) Record() *Record {
	return &Record{
		UID:           u.UID,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
	}
}
