package model

// User is the authenticated identity returned by the backend.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// TokenPair holds the bearer credentials issued in token mode.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
