package sessions

import "time"

// Session is the persisted form of the active identity provider session for
// one desk installation. Only tokens are kept, never credentials.
type Session struct {
	DeviceID     string    `bson:"_id" json:"deviceId"`
	UserID       string    `bson:"userId" json:"userId"`
	Email        string    `bson:"email" json:"email"`
	AccessToken  string    `bson:"accessToken" json:"accessToken"`
	RefreshToken string    `bson:"refreshToken" json:"refreshToken"`
	IDToken      string    `bson:"idToken,omitempty" json:"idToken,omitempty"`
	ExpiresAt    time.Time `bson:"expiresAt" json:"expiresAt"`
	SavedAt      time.Time `bson:"savedAt" json:"savedAt"`
}
