package models

import "time"

// Role is the application role stored on a user profile.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleSupervisor   Role = "supervisor"
	RoleStoreManager Role = "store_manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleStoreManager:
		return true
	}
	return false
}

// Profile is the application-level user record, one-to-one with an identity
// provider subject. Store is filled in when the profile has an assigned store.
type Profile struct {
	ID        string    `bson:"_id" json:"id"`
	Email     string    `bson:"email" json:"email"`
	FullName  string    `bson:"full_name" json:"full_name"`
	Role      Role      `bson:"role" json:"role"`
	StoreID   *string   `bson:"store_id,omitempty" json:"store_id"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`

	Store *Store `bson:"-" json:"store,omitempty"`
}
