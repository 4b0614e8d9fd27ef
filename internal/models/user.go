package models

// User is the profile record returned by the NetWorth backend.
// The gateway never owns user data; this is a cached copy of what the
// backend issued at login or on the last profile fetch.
type User struct {
	ID    string `bson:"_id,omitempty" json:"id"`
	Email string `bson:"email" json:"email"`
	Name  string `bson:"name" json:"name"`
}
