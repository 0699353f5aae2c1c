// Copyright ©2019 The Gonum Authors. All rights reserved.
// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package vecadd provides a block-parallel element-wise add for Go, built on a
// small GPU-style runtime that executes on the CPU.
//
// A kernel is launched over a one dimensional grid of programs. Each program
// owns a contiguous block of BlockSize offsets and masks out the offsets past
// the end of the data, so the last, partial block never touches memory it does
// not own. Launches return immediately with an Event; results may only be read
// after the Event (or the Context) has been synchronized.
//
// Example usage:
//
//	ctx := vecadd.NewContext()
//	defer ctx.Destroy()
//
//	// Copy data to device
//	x, _ := ctx.Upload(hostX)
//	y, _ := ctx.Upload(hostY)
//
//	// Launch the add kernel and wait for it
//	out, ev, err := ctx.Add(x, y, vecadd.WithBlockSize(1024))
//	if err != nil {
//		return err
//	}
//	if err := ev.Wait(); err != nil {
//		return err
//	}
//	sum := out.Float32()
package vecadd
