package models

// User represents an account. Token is the current session token; rotating it
// invalidates every session issued before.
type User struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// Friendship is an unordered relation between two users, stored with
// First <= Second.
type Friendship struct {
	ID     string `json:"_id"`
	First  string `json:"first"`
	Second string `json:"second"`
}

// Other returns the party of the friendship that is not userID.
func (f Friendship) Other(userID string) string {
	if f.First == userID {
		return f.Second
	}
	return f.First
}

// Message is a directed text message. Time is the server clock in epoch
// milliseconds at insertion.
type Message struct {
	ID      string `json:"_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message"`
	Time    int64  `json:"time"`
}

// Image links an owner to the stored file name of an uploaded image.
type Image struct {
	ID    string `json:"_id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
	Time  int64  `json:"time"`
}

// Document field names shared by the repositories.
const (
	FieldID       = "_id"
	FieldUsername = "username"
	FieldPassword = "password"
	FieldToken    = "token"
	FieldFirst    = "first"
	FieldSecond   = "second"
	FieldTo       = "to"
	FieldTime     = "time"
	FieldOwner    = "owner"
)
