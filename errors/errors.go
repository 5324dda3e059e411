package errors

import "fmt"

var (
	ErrWorkerPanic    = fmt.Errorf("worker panic")
	ErrNotAuthorized  = fmt.Errorf("not authorized")
	ErrRoomNotFound   = fmt.Errorf("room not found")
	ErrTransport      = fmt.Errorf("transport failure")
	ErrMalformedFrame = fmt.Errorf("malformed push frame")
	ErrChannelClosed  = fmt.Errorf("push channel is not connected")
)
