package config

import (
	"time"

	"go.trai.ch/lpkg/internal/core/domain"
)

const (
	defaultShell     = "/bin/bash"
	defaultKillGrace = 10 * time.Second
	defaultMaxAge    = 24 * time.Hour
)

// DefaultBooks returns the built-in book definitions.
func DefaultBooks() map[string]domain.Book {
	return map[string]domain.Book{
		"lfs": {
			Name:     "lfs",
			Release:  "12.1",
			BaseURL:  "https://www.linuxfromscratch.org/lfs/view/{release}",
			WgetList: "wget-list",
			MD5Sums:  "md5sums",
		},
		"mlfs": {
			Name:     "mlfs",
			Release:  "12.1",
			BaseURL:  "https://www.linuxfromscratch.org/~thomas/multilib-m32",
			WgetList: "wget-list-sysv",
			MD5Sums:  "md5sums",
		},
		"blfs": {
			Name:     "blfs",
			Release:  "systemd",
			BaseURL:  "https://anduin.linuxfromscratch.org/BLFS/view/{release}",
			PageBase: "https://www.linuxfromscratch.org/blfs/view/{release}",
			WgetList: "wget-list",
			MD5Sums:  "md5sums",
		},
		"glfs": {
			Name:     "glfs",
			Release:  "glfs",
			BaseURL:  "https://www.linuxfromscratch.org/glfs/view/{release}",
			WgetList: "wget-list",
		},
	}
}
