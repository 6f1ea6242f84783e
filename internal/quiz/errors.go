package quiz

import "errors"

// Precondition violations. Engine methods wrap these with context; match with errors.Is.
var (
	ErrInvalidOptionIndex   = errors.New("invalid option index")
	ErrInvalidLifelineState = errors.New("lifeline unavailable")
	ErrGameAlreadyTerminal  = errors.New("game already finished")
	ErrAwaitingAdvance      = errors.New("answer revealed, advance first")
	ErrNothingToAdvance     = errors.New("no answered question to advance from")
)
