package sandbox

import "errors"

var (
	ErrSandbox            = errors.New("sandbox error")
	ErrNetworkUnsupported = errors.New("network isolation is not supported on this host")
)
