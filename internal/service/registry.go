package service

// Registry is the slice of the connection registry the services need.
// Narrowed to an interface so tests can inject a fake (the registry is
// an explicit dependency, never ambient state).
type Registry interface {
	// SendTo fans payload out to every live connection of the user and
	// returns how many accepted it.
	SendTo(userID int64, payload any) int
	// IsOnline reports whether the user has at least one live connection.
	IsOnline(userID int64) bool
}
