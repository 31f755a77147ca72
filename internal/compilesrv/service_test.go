package compilesrv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specialistvlad/graphcraft/internal/artifact"
	"github.com/specialistvlad/graphcraft/internal/toolchain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeToolchain compiles by calling fn and records what it saw.
type fakeToolchain struct {
	fn    func(ctx context.Context, workDir, source string) ([]byte, []artifact.Diagnostic, error)
	calls atomic.Int32

	mu   sync.Mutex
	dirs []string
}

func (f *fakeToolchain) Name() string { return "fake" }

func (f *fakeToolchain) Compile(ctx context.Context, workDir, source string) ([]byte, []artifact.Diagnostic, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.dirs = append(f.dirs, workDir)
	f.mu.Unlock()
	if err := os.WriteFile(filepath.Join(workDir, toolchain.SourceFile), []byte(source), 0o644); err != nil {
		return nil, nil, err
	}
	if f.fn == nil {
		return []byte("bin:" + source), nil, nil
	}
	return f.fn(ctx, workDir, source)
}

func newTestService(t *testing.T, tc toolchain.Toolchain, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithWorkRoot(t.TempDir())}, opts...)
	return NewService(toolchain.Profiles{"spirv": tc, "other": tc}, opts...)
}

func TestService_CompileThenCacheHit(t *testing.T) {
	tc := &fakeToolchain{}
	svc := newTestService(t, tc)
	ctx := context.Background()

	first, err := svc.Compile(ctx, Request{Source: "fn main() {}"})
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, []byte("bin:fn main() {}"), first.Artifact.Binary)
	assert.Equal(t, "spirv", first.Artifact.Profile)
	assert.Equal(t, artifact.Key("fn main() {}", "spirv"), first.Artifact.Key)

	second, err := svc.Compile(ctx, Request{Source: "fn main() {}", Profile: "spirv"})
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Artifact.Binary, second.Artifact.Binary)
	assert.EqualValues(t, 1, tc.calls.Load())

	// A different profile is a different key.
	third, err := svc.Compile(ctx, Request{Source: "fn main() {}", Profile: "other"})
	require.NoError(t, err)
	assert.False(t, third.CacheHit)
	assert.EqualValues(t, 2, tc.calls.Load())
}

func TestService_BadRequests(t *testing.T) {
	tc := &fakeToolchain{}
	svc := newTestService(t, tc)

	_, err := svc.Compile(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrBadRequest)

	_, err = svc.Compile(context.Background(), Request{Source: "x", Profile: "dxil"})
	require.ErrorIs(t, err, ErrBadRequest)
	assert.Contains(t, err.Error(), `unknown profile "dxil"`)
	assert.Zero(t, tc.calls.Load())
}

func TestService_Diagnostics(t *testing.T) {
	diags := []artifact.Diagnostic{{Severity: "error", Message: "unknown identifier", Line: 3, Column: 7}}
	tc := &fakeToolchain{fn: func(context.Context, string, string) ([]byte, []artifact.Diagnostic, error) {
		return nil, nil, &toolchain.DiagnosticError{Toolchain: "fake", Diagnostics: diags}
	}}
	svc := newTestService(t, tc)

	_, err := svc.Compile(context.Background(), Request{Source: "bad"})
	require.ErrorIs(t, err, ErrDiagnostics)
	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, diags, ce.Diagnostics)

	// Failures are not cached.
	_, err = svc.Compile(context.Background(), Request{Source: "bad"})
	require.Error(t, err)
	assert.EqualValues(t, 2, tc.calls.Load())
}

func TestService_Timeout(t *testing.T) {
	tc := &fakeToolchain{fn: func(ctx context.Context, _, _ string) ([]byte, []artifact.Diagnostic, error) {
		<-ctx.Done()
		return nil, nil, ctx.Err()
	}}
	svc := newTestService(t, tc, WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := svc.Compile(context.Background(), Request{Source: "slow"})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestService_InternalError(t *testing.T) {
	tc := &fakeToolchain{fn: func(context.Context, string, string) ([]byte, []artifact.Diagnostic, error) {
		return nil, nil, errors.New("disk on fire")
	}}
	svc := newTestService(t, tc)

	_, err := svc.Compile(context.Background(), Request{Source: "x"})
	require.ErrorIs(t, err, ErrInternal)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestService_RemovesWorkDirectories(t *testing.T) {
	root := t.TempDir()
	tc := &fakeToolchain{}
	svc := NewService(toolchain.Profiles{"spirv": tc}, WithWorkRoot(root))

	for i := range 3 {
		_, err := svc.Compile(context.Background(), Request{Source: fmt.Sprintf("src %d", i)})
		require.NoError(t, err)
	}

	require.Len(t, tc.dirs, 3)
	for _, dir := range tc.dirs {
		assert.Equal(t, root, filepath.Dir(dir))
		assert.NoDirExists(t, dir)
	}
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	tc := &fakeToolchain{fn: func(_ context.Context, _, source string) ([]byte, []artifact.Diagnostic, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return []byte(source), nil, nil
	}}
	svc := newTestService(t, tc, WithMaxConcurrent(2))

	var wg sync.WaitGroup
	for i := range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Compile(context.Background(), Request{Source: fmt.Sprintf("shader %d", i)})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 6, tc.calls.Load())
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestService_IdenticalRequestsShareOneCompile(t *testing.T) {
	release := make(chan struct{})
	tc := &fakeToolchain{fn: func(_ context.Context, _, source string) ([]byte, []artifact.Diagnostic, error) {
		<-release
		return []byte(source), nil, nil
	}}
	svc := newTestService(t, tc)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := svc.Compile(context.Background(), Request{Source: "same"})
			if assert.NoError(t, err) {
				assert.Equal(t, []byte("same"), resp.Artifact.Binary)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, tc.calls.Load())
}

func TestNewConfig(t *testing.T) {
	cfg, err := NewConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultMaxConcurrent, cfg.MaxConcurrent)

	_, err = NewConfig(Config{Timeout: -time.Second})
	assert.Error(t, err)
	_, err = NewConfig(Config{MaxConcurrent: -1})
	assert.Error(t, err)
}
