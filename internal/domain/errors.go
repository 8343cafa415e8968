package domain

import "errors"

var (
	// ErrUnauthenticated is returned by every data operation attempted without a session.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrFolderExists is returned when a folder name is already used in the namespace.
	ErrFolderExists = errors.New("folder already exists")

	// ErrConfirmationRequired guards irreversible operations (archive, delete, restore).
	ErrConfirmationRequired = errors.New("confirmation required")

	// ErrMalformedBackup is returned before any destructive step of a restore.
	ErrMalformedBackup = errors.New("malformed backup")

	// ErrFolderRequired is returned when saving a shared link without a destination folder.
	ErrFolderRequired = errors.New("folder required")
)
