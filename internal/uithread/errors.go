package uithread

import "errors"

var ErrClosed = errors.New("dispatcher closed or queue full")
