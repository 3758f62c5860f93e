package usecase

import "errors"

var errStreamClosed = errors.New("market stream closed")
