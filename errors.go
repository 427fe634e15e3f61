// errors.go
package userrecords

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input parameters")
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("record not found")
	ErrAlreadyExists      = errors.New("record already exists")
	ErrRelation           = errors.New("related record violation")
	ErrStorageUnavailable = errors.New("storage backend unavailable")
	ErrCacheUnavailable   = errors.New("cache backend unavailable")
	ErrSerialization      = errors.New("serialization failed")
)
