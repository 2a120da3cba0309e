package model

import "time"

// UserStatus is the lifecycle state of an account.  Deactivation is a soft
// delete: the row stays, its email becomes reusable by new registrations.
type UserStatus string

const (
	UserActive      UserStatus = "active"
	UserDeactivated UserStatus = "deactivated"
)

// User represents a row of the `users` table.  PasswordHash and CodePass
// never leave the service; handlers render UserProfile instead.
type User struct {
	ID            uint64     // users.id
	Email         string     // users.email
	PasswordHash  string     // users.password_hash (argon2id PHC string)
	FirstName     *string    // users.first_name (nullable)
	LastName      *string    // users.last_name (nullable)
	NumFoodAdded  uint32     // users.num_of_food_added
	NumFoodTaken  uint32     // users.num_of_food_taken
	ProfileImage  []byte     // users.profile_image (nullable blob)
	EmailVerified bool       // users.email_verified
	CodePass      string     // users.code_pass, empty when no code is pending
	HasReserve    bool       // users.has_reserve, mirrors an active reservation
	Status        UserStatus // users.status
	CreatedAt     time.Time  // users.created_at
	UpdatedAt     time.Time  // users.updated_at
}

// NewUser carries the registration payload after validation.
type NewUser struct {
	Email     string
	Password  string
	FirstName *string
	LastName  *string
}

// UserProfile is the public view of a user.  ProfileImage is encoded as
// base64 by encoding/json.
type UserProfile struct {
	ID            uint64  `json:"id"`
	Email         string  `json:"email"`
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	NumFoodAdded  uint32  `json:"num_of_food_added"`
	NumFoodTaken  uint32  `json:"num_of_food_taken"`
	ProfileImage  []byte  `json:"profile_image"`
	EmailVerified bool    `json:"email_verified"`
	HasReserve    bool    `json:"has_reserve"`
}

// Profile strips credential fields from u.
func (u *User) Profile() UserProfile {
	return UserProfile{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		NumFoodAdded:  u.NumFoodAdded,
		NumFoodTaken:  u.NumFoodTaken,
		ProfileImage:  u.ProfileImage,
		EmailVerified: u.EmailVerified,
		HasReserve:    u.HasReserve,
	}
}

// ProfileEdit holds the editable identity fields of a user.
type ProfileEdit struct {
	UserID    uint64
	FirstName string
	LastName  string
	Email     string
}
