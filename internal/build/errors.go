package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrTransfer            = errors.New("artifact transfer failed")
	ErrPackage             = errors.New("runtime image construction failed")
	ErrFileSystemOperation = errors.New("file system operation failed")
)
