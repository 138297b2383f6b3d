package utils

import "errors"

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorUnsupportedFile = errors.New("unsupported file type")
	ErrorStorageNotReady = errors.New("GCS_BUCKET is required")
	ErrorOwnerLockBusy   = errors.New("could not obtain lock for owner")
	ErrorServiceNotReady = errors.New("service not ready (redis lock not initialized)")
)
