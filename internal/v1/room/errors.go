package room

// Error is the enumerated result type every room-table operation returns in
// place of the legacy tagged-dictionary status codes (§9).
type Error string

const (
	// OK indicates the operation succeeded.
	OK Error = ""

	ErrRoomNotFound Error = "room-not-found"
	ErrRoomExists   Error = "room-exists"
	ErrUserExists   Error = "user-exists"
	ErrUserNotFound Error = "user-not-found"
	ErrNotHost      Error = "not-host"
	ErrNotInRoom    Error = "not-in-room"
)

// IsOK reports whether e represents success.
func (e Error) IsOK() bool { return e == OK }

func (e Error) Error() string { return string(e) }
