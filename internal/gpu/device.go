package gpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ModuleID names a kernel loaded on a device.
type ModuleID uint64

// BufferID names a device buffer.
type BufferID uint64

// ErrUnknownResource is returned for IDs a device does not hold.
var ErrUnknownResource = errors.New("unknown device resource")

// Device abstracts a compute device. Implementations are safe for
// concurrent use.
type Device interface {
	Name() string

	// LoadModule makes a kernel dispatchable.
	LoadModule(ctx context.Context, k *Kernel) (ModuleID, error)
	UnloadModule(id ModuleID)

	// CreateBuffer allocates size zeroed bytes.
	CreateBuffer(size int) (BufferID, error)
	DestroyBuffer(id BufferID)
	WriteBuffer(id BufferID, offset int, data []byte) error
	ReadBuffer(id BufferID, offset, size int) ([]byte, error)

	// Dispatch runs lanes invocations of the module with buffers bound in
	// binding order. It returns once the work is queued.
	Dispatch(ctx context.Context, mod ModuleID, buffers []BufferID, lanes int) (*Fence, error)
}

// Fence is signalled when a dispatch completes.
type Fence struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewFence returns an unsignalled fence.
func NewFence() *Fence { return &Fence{done: make(chan struct{})} }

// Signal completes the fence with err. Later calls are ignored.
func (f *Fence) Signal(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the fence is signalled.
func (f *Fence) Done() <-chan struct{} { return f.done }

// Wait blocks until the fence is signalled or ctx is done.
func (f *Fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func unknown(kind string, id uint64) error {
	return fmt.Errorf("%w: %s %d", ErrUnknownResource, kind, id)
}
