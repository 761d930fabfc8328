package domain

// RoomName is the unique key of a room. Rooms are created on first join and
// live for the rest of the process; an empty room keeps its routing context.
type RoomName string
