package gid

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
)

var (
	defaultOnce sync.Once
	defaultGen  *Generator
	defaultErr  error
)

// NewGeneratorFromEnv builds a generator whose machine id comes from
// SNOWFLAKE_MACHINE_ID, falling back to DefaultMachineID.
func NewGeneratorFromEnv(opts ...Option) (*Generator, error) {
	machineID, err := MachineIDFromEnv()
	if err != nil {
		return nil, err
	}
	return NewGenerator(machineID, opts...)
}

// MachineIDFromEnv reads SNOWFLAKE_MACHINE_ID without range checking it.
func MachineIDFromEnv() (int, error) {
	raw := strings.TrimSpace(os.Getenv(MachineIDEnv))
	if raw == "" {
		return DefaultMachineID, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidConfiguration, MachineIDEnv, raw)
	}
	return v, nil
}

// Default returns the process-wide generator, building it from the
// environment on first use. It is never torn down; a construction error is
// sticky for the life of the process.
func Default() (*Generator, error) {
	defaultOnce.Do(func() {
		defaultGen, defaultErr = NewGeneratorFromEnv()
	})
	return defaultGen, defaultErr
}

// GenerateID mints an ID from the default generator.
func GenerateID() (uint64, error) {
	g, err := Default()
	if err != nil {
		return 0, err
	}
	return g.Generate()
}
