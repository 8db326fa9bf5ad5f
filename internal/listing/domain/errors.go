package domain

import "errors"

var (
	ErrListingNotFound   = errors.New("listing not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrImagesRequired    = errors.New("all three images are required")
	ErrImageUploadFailed = errors.New("image upload failed")
	ErrInvalidListingID  = errors.New("invalid listing id")
)
