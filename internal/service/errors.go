package service

import "errors"

var (
	ErrProductNotFound = errors.New("product not found")
	ErrStoreNotFound   = errors.New("store not found")
	ErrInvalidInput    = errors.New("invalid input")
)
