package models

// User is a mailbox owner. Subject is the provider's stable subject
// identifier; it survives email address changes and keys realtime rooms.
type User struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Email   string `json:"email"`
}

// Identity is the result of introspecting an access credential with the
// provider: the stable subject plus the address it currently maps to.
type Identity struct {
	Subject string `json:"sub"`
	Email   string `json:"email"`
}

// UnlockEvent is one gamification unlock reported to the client after a
// thread's first transition to done.
type UnlockEvent struct {
	BadgeName    string `json:"badgeName"`
	ToastMessage string `json:"toastMessage"`
	Hex          string `json:"hex"`
	Type         string `json:"type"`
	LevelNumber  int    `json:"levelNumber"`
}
