package room

// Error is a typed room-operation outcome. Its string form doubles as the
// wire error code where the code is user visible.
type Error string

// Error ...
func (e Error) Error() string {
	return string(e)
}

const (
	// ErrRoomFull is returned when a join would exceed MaxPlayers.
	ErrRoomFull Error = "ROOM_FULL"
	// ErrInvalidName is returned for an empty or over-long display name.
	ErrInvalidName Error = "INVALID_NAME"
	// ErrDiceLimit is returned when a spawn would exceed MaxDice.
	ErrDiceLimit Error = "DICE_LIMIT"
	// ErrPlayerNotFound is returned when an operation names an absent player.
	ErrPlayerNotFound Error = "PLAYER_NOT_FOUND"
	// ErrDieNotFound is returned when an operation names an absent die.
	ErrDieNotFound Error = "DIE_NOT_FOUND"
	// ErrNotOwner is returned when a player drags a die they do not own.
	ErrNotOwner Error = "NOT_OWNER"
	// ErrAlreadyDragged is returned when a die is already being dragged.
	ErrAlreadyDragged Error = "ALREADY_DRAGGED"
	// ErrNotDragger is returned when a drag update comes from a player other
	// than the one holding the die.
	ErrNotDragger Error = "NOT_DRAGGER"
	// ErrNotDragging is returned when a drag update targets a die that is
	// not being dragged.
	ErrNotDragging Error = "NOT_DRAGGING"
)
