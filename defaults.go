// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package tapesort

import "runtime"

// defaultMaxThreadCount mirrors the original sorter's default of
// hardware concurrency.
func defaultMaxThreadCount() int {
	return runtime.NumCPU()
}
