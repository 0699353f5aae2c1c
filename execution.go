package vecadd

import (
	"fmt"
	"time"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// launchInternal implements the core kernel execution logic
func (ctx *Context) launchInternal(kernel Kernel, grid, blockSize int, stream *Stream) (*Event, error) {
	if kernel == nil {
		return nil, NewInvalidArgError("Launch", "nil kernel")
	}
	if !validBlockSize(blockSize) {
		return nil, errors.Wrapf(ErrInvalidBlockSize, "block size %d", blockSize)
	}
	if grid < 0 {
		return nil, NewInvalidArgError("Launch", fmt.Sprintf("negative grid size %d", grid))
	}

	ev := newEvent(grid)
	workers := min(ctx.workers, grid)
	klog.V(2).Infof("launch: %d programs x %d elements on stream %d (%d workers)",
		grid, blockSize, stream.id, workers)

	// A zero-size grid runs no program but still completes in stream order.
	err := stream.Submit(func() {
		start := time.Now()
		err := runGrid(kernel, grid, blockSize, workers)
		if err != nil {
			stream.recordErr(err)
		}
		ev.complete(start, err)
	})
	if err != nil {
		return nil, errors.Wrap(err, "launch")
	}
	return ev, nil
}

// runGrid executes programs [0, grid) across workers goroutines. Each worker
// owns a contiguous run of program ids to keep its memory accesses sequential.
func runGrid(kernel Kernel, grid, blockSize, workers int) error {
	if grid == 0 {
		return nil
	}
	programsPerWorker := CDiv(grid, workers)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		first := w * programsPerWorker
		last := min(first+programsPerWorker, grid)
		if first >= last {
			break
		}
		g.Go(func() error {
			var pid int
			exception := exceptions.Try(func() {
				for pid = first; pid < last; pid++ {
					kernel.Execute(Program{PID: pid, NumPrograms: grid, BlockSize: blockSize})
				}
			})
			if exception == nil {
				return nil
			}
			cause, ok := exception.(error)
			if !ok {
				cause = fmt.Errorf("%v", exception)
			}
			return errors.Wrapf(ErrKernelPanicked, "program %d: %v", pid, cause)
		})
	}
	return g.Wait()
}
