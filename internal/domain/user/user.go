package user

import "time"

// User is an account able to place orders. It is owned by the account
// system; this service only references it.
type User struct {
	ID    string
	Email string
	Name  string
}

// Address is a stored shipping address. Orders copy its fields at
// placement time rather than referencing it, so later edits never
// change historical orders.
type Address struct {
	ID           string
	UserID       string
	Address      string
	Zip          string
	ContactName  string
	ContactPhone string
	LastUsedAt   *time.Time
}
