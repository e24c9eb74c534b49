package admin

import (
	"errors"
)

var (
	ErrInvalidName     = errors.New("name must not be blank")
	ErrInvalidSchedule = errors.New("event must end after it starts")
)
