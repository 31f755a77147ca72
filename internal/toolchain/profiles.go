package toolchain

import (
	"fmt"
	"os"
	"sort"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultProfile is used when a request names no profile.
const DefaultProfile = "spirv"

var validate = validator.New()

// ProfileSpec is one entry of a profiles file.
type ProfileSpec struct {
	Kind    string   `yaml:"kind" validate:"required,oneof=naga exec"`
	Command []string `yaml:"command" validate:"required_if=Kind exec,dive,required"`
}

type profilesFile struct {
	Profiles map[string]ProfileSpec `yaml:"profiles" validate:"required,min=1,dive,keys,required,endkeys"`
}

// Profiles maps profile names to toolchains.
type Profiles map[string]Toolchain

// DefaultProfiles contains only "spirv", compiled with naga.
func DefaultProfiles() Profiles {
	return Profiles{DefaultProfile: Naga{}}
}

// Get returns the toolchain of a profile. An empty name is DefaultProfile.
func (p Profiles) Get(name string) (Toolchain, bool) {
	if name == "" {
		name = DefaultProfile
	}
	tc, ok := p[name]
	return tc, ok
}

// Names returns the profile names, sorted.
func (p Profiles) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadProfiles reads a YAML profiles file:
//
//	profiles:
//	  spirv: {kind: naga}
//	  dxil:  {kind: exec, command: [dxc, -T, cs_6_0, -Fo, "{output}", "{input}"]}
func LoadProfiles(path string) (Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	p, err := ParseProfiles(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ParseProfiles decodes and validates a profiles document.
func ParseProfiles(data []byte) (Profiles, error) {
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid profiles: %w", err)
	}

	out := make(Profiles, len(f.Profiles))
	for name, spec := range f.Profiles {
		switch spec.Kind {
		case "naga":
			out[name] = Naga{}
		case "exec":
			out[name] = Exec{Label: name, Command: spec.Command}
		}
	}
	return out, nil
}
