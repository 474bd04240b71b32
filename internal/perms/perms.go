// Package perms holds the file modes mcpreg uses for files it creates.
package perms

import "os"

const (
	// RegularFile is used for configuration skeletons written by 'mcpreg init'.
	RegularFile os.FileMode = 0o644

	// LogFile is used for log files opened via --log-path, which may carry endpoint URLs and alert payloads.
	LogFile os.FileMode = 0o600
)
