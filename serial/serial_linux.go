// SPDX-License-Identifier: MIT
//
// Copyright © 2020 Kent Gibson <warthog618@gmail.com>.

//go:build linux

// +build linux

package serial

import "time"

var defaultConfig = Config{
	port:        "/dev/ttyUSB0",
	baud:        19200,
	readTimeout: 5 * time.Second,
}
