package gid

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/prettylog/blogpipe/internal/metrics"
)

const (
	// Epoch is January 1, 2024 00:00:00 UTC in milliseconds
	Epoch int64 = 1704067200000

	// Bit allocations
	timestampBits = 41
	machineIDBits = 10
	sequenceBits  = 12

	// Max values
	MaxMachineID = (1 << machineIDBits) - 1 // 1023
	maxSequence  = (1 << sequenceBits) - 1  // 4095
	maxTimestamp = (1 << timestampBits) - 1 // about 69 years past Epoch

	// Shifts
	timestampShift = machineIDBits + sequenceBits
	machineIDShift = sequenceBits

	// MachineIDEnv names the environment variable read by NewGeneratorFromEnv.
	MachineIDEnv = "SNOWFLAKE_MACHINE_ID"
	// DefaultMachineID is used when MachineIDEnv is unset.
	DefaultMachineID = 1
)

var (
	// ErrInvalidConfiguration is returned when a generator cannot be built
	// from the supplied machine id.
	ErrInvalidConfiguration = errors.New("snowflake: invalid configuration")
	// ErrClockRegression is matched by every *ClockRegressionError.
	ErrClockRegression = errors.New("snowflake: clock moved backwards")
	// ErrClockOutOfRange is returned when the clock reads before Epoch or
	// beyond what the 41-bit timestamp field can hold.
	ErrClockOutOfRange = errors.New("snowflake: clock outside the representable range")
)

// ClockRegressionError reports a wall clock that went backwards relative to
// the last minted id. The generator stays usable once the clock catches up.
type ClockRegressionError struct {
	Drift     time.Duration
	MachineID int
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("snowflake: clock moved backwards, refusing to generate id for %dms", e.Drift.Milliseconds())
}

func (e *ClockRegressionError) Is(target error) bool {
	return target == ErrClockRegression
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock replaces the wall clock. now must return Unix milliseconds.
func WithClock(now func() int64) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// Generator generates Snowflake IDs
type Generator struct {
	mu        sync.Mutex
	machineID int
	sequence  int64
	lastTime  int64
	now       func() int64
	label     string
}

// NewGenerator creates a new Snowflake ID generator.
// machineID must be between 0 and 1023 (inclusive).
func NewGenerator(machineID int, opts ...Option) (*Generator, error) {
	if machineID < 0 || machineID > MaxMachineID {
		return nil, fmt.Errorf("%w: machine ID %d must be between 0 and %d", ErrInvalidConfiguration, machineID, MaxMachineID)
	}
	g := &Generator{
		machineID: machineID,
		lastTime:  -1,
		now:       func() int64 { return time.Now().UnixMilli() },
		label:     strconv.Itoa(machineID),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// MachineID returns the machine id baked into every generated ID.
func (g *Generator) MachineID() int {
	return g.machineID
}

// Generate creates a new unique 64-bit ID.
// Thread-safe.
func (g *Generator) Generate() (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if err := g.checkRange(now); err != nil {
		return 0, err
	}

	if now < g.lastTime {
		drift := time.Duration(g.lastTime-now) * time.Millisecond
		metrics.SnowflakeClockRegressions.Inc()
		slog.Warn("snowflake clock moved backwards",
			"machine_id", g.machineID,
			"drift_ms", drift.Milliseconds(),
		)
		return 0, &ClockRegressionError{Drift: drift, MachineID: g.machineID}
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence overflow, wait for next millisecond
			metrics.SnowflakeSequenceExhausted.Inc()
			for now <= g.lastTime {
				now = g.now()
			}
			if err := g.checkRange(now); err != nil {
				return 0, err
			}
		}
	} else {
		g.sequence = 0
	}

	g.lastTime = now
	metrics.SnowflakeIDsGenerated.WithLabelValues(g.label).Inc()

	return uint64(now-Epoch)<<timestampShift |
		uint64(g.machineID)<<machineIDShift |
		uint64(g.sequence), nil
}

func (g *Generator) checkRange(now int64) error {
	if now < Epoch || now-Epoch > maxTimestamp {
		slog.Error("snowflake clock outside the representable range",
			"machine_id", g.machineID,
			"now_ms", now,
		)
		return fmt.Errorf("%w: %d ms since the Unix epoch", ErrClockOutOfRange, now)
	}
	return nil
}

// Components is a decoded Snowflake ID.
type Components struct {
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64     `json:"timestamp"`
	MachineID int       `json:"machine_id"`
	Sequence  int       `json:"sequence"`
	Time      time.Time `json:"-"`
	Formatted string    `json:"datetime"`
}

// Parse splits id into its fields. Values that were not produced by this
// scheme decode without error into meaningless fields.
func Parse(id uint64) Components {
	t := ExtractTime(id)
	return Components{
		Timestamp: t.UnixMilli(),
		MachineID: ExtractMachineID(id),
		Sequence:  ExtractSequence(id),
		Time:      t,
		Formatted: t.Local().Format(time.DateTime),
	}
}

// ExtractTime extracts the timestamp from a Snowflake ID
func ExtractTime(id uint64) time.Time {
	ms := int64(id>>timestampShift) + Epoch
	return time.UnixMilli(ms)
}

// ExtractMachineID extracts the machine ID from a Snowflake ID
func ExtractMachineID(id uint64) int {
	return int((id >> machineIDShift) & MaxMachineID)
}

// ExtractSequence extracts the sequence number from a Snowflake ID
func ExtractSequence(id uint64) int {
	return int(id & maxSequence)
}
