package vecadd

import (
	"testing"
)

// MallocOrFail allocates device memory and fails the test if unsuccessful
func MallocOrFail(t testing.TB, ctx *Context, dtype DType, n int) *Buffer {
	t.Helper()
	b, err := ctx.Malloc(dtype, n)
	if err != nil {
		t.Fatalf("Failed to allocate %d %s elements: %v", n, dtype, err)
	}
	return b
}

// UploadOrFail copies a host slice to the device and fails the test if
// unsuccessful
func UploadOrFail(t testing.TB, ctx *Context, data any) *Buffer {
	t.Helper()
	b, err := ctx.Upload(data)
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return b
}

// AddOrFail launches x + y, waits for it and fails the test if either step
// is unsuccessful
func AddOrFail(t testing.TB, ctx *Context, x, y *Buffer, opts ...LaunchOption) *Buffer {
	t.Helper()
	out, ev, err := ctx.Add(x, y, opts...)
	if err != nil {
		t.Fatalf("Add launch failed: %v", err)
	}
	if err := ev.Wait(); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	return out
}

// SynchronizeOrFail synchronizes and fails the test if unsuccessful
func SynchronizeOrFail(t testing.TB, ctx *Context) {
	t.Helper()
	if err := ctx.Synchronize(); err != nil {
		t.Fatalf("Synchronize failed: %v", err)
	}
}
