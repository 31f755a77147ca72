// Package env_vars exposes the process environment to graphs.
package env_vars

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/specialistvlad/graphcraft/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// ErrUnset is returned by env.get for a variable that is not set.
var ErrUnset = errors.New("environment variable not set")

// Register registers the environment nodes. All of them are impure: the
// environment may change between runs.
func (m *Module) Register(b *registry.Builder) error {
	if err := b.Register("env.get", "(string) -> string", registry.Func1(get), registry.Impure()); err != nil {
		return err
	}
	if err := b.Register("env.get_or", "(string, string) -> string", registry.Func2(getOr), registry.Impure()); err != nil {
		return err
	}
	return b.Register("env.all", "() -> map(string)", registry.Func0(all), registry.Impure())
}

func get(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnset, name)
	}
	return v, nil
}

func getOr(_ context.Context, name, fallback string) (string, error) {
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	return fallback, nil
}

func all(context.Context) (map[string]string, error) {
	envMap := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	return envMap, nil
}
