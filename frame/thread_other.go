// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

//go:build !linux && !windows

package frame

// No portable thread id here, queues never consider a caller the owner.
const threadIdentity = false

func currentThread() int64 {
	return 0
}
