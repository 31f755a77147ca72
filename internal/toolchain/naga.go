package toolchain

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/naga"
	"github.com/specialistvlad/graphcraft/internal/artifact"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Naga compiles WGSL to SPIR-V in process.
type Naga struct{}

func (Naga) Name() string { return "naga" }

// Compile writes the source and the SPIR-V binary into workDir for
// inspection and returns the binary.
func (n Naga) Compile(ctx context.Context, workDir, source string) ([]byte, []artifact.Diagnostic, error) {
	if err := os.WriteFile(filepath.Join(workDir, SourceFile), []byte(source), 0o644); err != nil {
		return nil, nil, err
	}

	type result struct {
		spirv []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("naga panicked: %v", r)}
			}
		}()
		spirv, err := naga.Compile(source)
		done <- result{spirv: spirv, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case res = <-done:
	}
	if res.err != nil {
		return nil, nil, &DiagnosticError{Toolchain: n.Name(), Diagnostics: ParseDiagnostics(res.err.Error())}
	}
	if len(res.spirv) < 4 || binary.LittleEndian.Uint32(res.spirv) != spirvMagic {
		return nil, nil, fmt.Errorf("naga produced an invalid SPIR-V module (%d bytes)", len(res.spirv))
	}

	if err := os.WriteFile(filepath.Join(workDir, OutputFile), res.spirv, 0o644); err != nil {
		return nil, nil, err
	}
	return res.spirv, nil, nil
}
