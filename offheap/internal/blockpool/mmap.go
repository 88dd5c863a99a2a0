// Copyright 2024 Francis Michael Stephens. All rights reserved.  Use of this
// source code is governed by an MIT license that can be found in the LICENSE
// file.
package blockpool

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func mmapBlock(capacity uint32) []byte {
	data, err := unix.Mmap(-1, 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		panic(fmt.Errorf("cannot map block of %d bytes because %s", capacity, err))
	}
	return data
}

func munmapBlock(data []byte) error {
	return unix.Munmap(data)
}
