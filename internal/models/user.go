package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == UserRoleUser || r == UserRoleAdmin
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusInactive UserStatus = "inactive"
)

func (s UserStatus) Valid() bool {
	return s == UserStatusActive || s == UserStatusInactive
}

type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash []byte
	FirstName    string
	LastName     string
	Role         UserRole
	Status       UserStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) Active() bool {
	return u.Status == UserStatusActive
}

func (u User) FullName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Username
	case u.LastName == "":
		return u.FirstName
	case u.FirstName == "":
		return u.LastName
	}
	return u.FirstName + " " + u.LastName
}

// Public strips the credential hash.
func (u User) Public() User {
	u.PasswordHash = nil
	return u
}

type UserStats struct {
	TotalTasks      int
	CompletedTasks  int
	PendingTasks    int
	InProgressTasks int
}

type UserWithStats struct {
	User
	Stats UserStats
}

type Session struct {
	ID        string
	TokenHash []byte
	UserID    string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ValidAt reports whether the session is still inside its fixed window.
func (s Session) ValidAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// Identity is the resolved caller threaded through every policy and task
// operation.
type Identity struct {
	UserID    string
	Username  string
	Role      UserRole
	SessionID string
}

func (i Identity) IsAdmin() bool {
	return i.Role == UserRoleAdmin
}
