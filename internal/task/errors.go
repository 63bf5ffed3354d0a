package task

import "errors"

var ErrInvalidTitle = errors.New("title must not be empty")
