// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build windows

package frame

import "golang.org/x/sys/windows"

const threadIdentity = true

func currentThread() int64 {
	return int64(windows.GetCurrentThreadId())
}
