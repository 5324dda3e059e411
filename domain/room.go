package domain

type RoomID int64

type RoomKind string

const (
	DirectRoom RoomKind = "direct"
	GroupRoom  RoomKind = "group"
)

// Room is a conversation container, either 1:1 or group.
// Name holds the partner name for direct rooms and the room name for groups.
type Room struct {
	ID          RoomID
	Kind        RoomKind
	Name        string
	LastMessage string
	MemberIDs   []UserID
}
