package imuse

import (
	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/ftag"
)

// ResourceExhausted tags failures caused by a full fixed-size pool
const ResourceExhausted ftag.Kind = "RESOURCE_EXHAUSTED"

var (
	ErrNoSound           = fault.New("sound not found", ftag.With(ftag.NotFound))
	ErrNotPlaying        = fault.New("sound is not playing", ftag.With(ftag.NotFound))
	ErrUnsupportedFormat = fault.New("unsupported sound format", ftag.With(ftag.InvalidArgument))
	ErrNoPlayer          = fault.New("no player available", ftag.With(ResourceExhausted))
	ErrPendingTrigger    = fault.New("sound is waiting on a trigger", ftag.With(ftag.InvalidArgument))
	ErrBadState          = fault.New("invalid saved state", ftag.With(ftag.InvalidArgument))
	ErrUnknownProperty   = fault.New("property not handled", ftag.With(ftag.InvalidArgument))
	ErrOutOfRange        = fault.New("value out of range", ftag.With(ftag.InvalidArgument))
)
