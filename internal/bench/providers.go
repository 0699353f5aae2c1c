package bench

import (
	"fmt"

	"github.com/LynnColeArt/vecadd"
	"github.com/LynnColeArt/vecadd/internal/config"
)

// Provider is one implementation of x + y under benchmark. Run must return
// only after the sum is complete.
type Provider struct {
	Name string
	Run  func(x, y *vecadd.Buffer) error
}

// KernelProvider launches the block-parallel kernel and waits for its Event.
func KernelProvider(ctx *vecadd.Context, blockSize int) Provider {
	return Provider{
		Name: config.ProviderKernel,
		Run: func(x, y *vecadd.Buffer) error {
			out, ev, err := ctx.Add(x, y, vecadd.WithBlockSize(blockSize))
			if err != nil {
				return err
			}
			err = ev.Wait()
			if freeErr := ctx.Free(out); err == nil {
				err = freeErr
			}
			return err
		},
	}
}

// ReferenceProvider runs gonum's synchronous vector add.
func ReferenceProvider(ctx *vecadd.Context) Provider {
	return Provider{
		Name: config.ProviderReference,
		Run: func(x, y *vecadd.Buffer) error {
			out, err := ctx.ReferenceAdd(x, y)
			if err != nil {
				return err
			}
			return ctx.Free(out)
		},
	}
}

// Providers resolves provider names.
func Providers(ctx *vecadd.Context, names []string, blockSize int) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	for _, name := range names {
		switch name {
		case config.ProviderKernel:
			providers = append(providers, KernelProvider(ctx, blockSize))
		case config.ProviderReference:
			providers = append(providers, ReferenceProvider(ctx))
		default:
			return nil, fmt.Errorf("unknown provider %q", name)
		}
	}
	return providers, nil
}
