//go:build !unix

package mmap

import (
	"github.com/hupe1980/ecsmem/internal/mem"
)

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	return mem.AllocAligned(size, PageSize), nil, nil
}

func osAdvise(data []byte, pattern AccessPattern) error {
	if pattern == AccessDontNeed {
		clear(data)
	}
	return nil
}
