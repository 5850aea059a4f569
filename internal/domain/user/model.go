package user

import "time"

type User struct {
	ID        int
	Login     string
	Password  string // bcrypt hash
	CreatedAt time.Time
}

// BaseRequest is the credential pair shared by register and login.
type BaseRequest struct {
	Login    string `json:"login" minLength:"3" maxLength:"32" doc:"Account login"`
	Password string `json:"password" minLength:"8" maxLength:"64" doc:"Account password"`
}
