package gid

import (
	"errors"
	"sync"
	"testing"
)

func TestNewGeneratorFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		wantErr bool
	}{
		{name: "unset uses default", value: "", want: DefaultMachineID},
		{name: "explicit value", value: "17", want: 17},
		{name: "upper bound", value: "1023", want: 1023},
		{name: "surrounding spaces", value: " 8 ", want: 8},
		{name: "out of range", value: "1024", wantErr: true},
		{name: "negative", value: "-1", wantErr: true},
		{name: "not a number", value: "node-a", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(MachineIDEnv, tt.value)
			gen, err := NewGeneratorFromEnv()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Fatalf("error = %v, want ErrInvalidConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewGeneratorFromEnv failed: %v", err)
			}
			if gen.MachineID() != tt.want {
				t.Errorf("MachineID() = %d, want %d", gen.MachineID(), tt.want)
			}
		})
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	var wg sync.WaitGroup
	gens := make([]*Generator, 16)
	for i := range gens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := Default()
			if err != nil {
				t.Errorf("Default failed: %v", err)
				return
			}
			gens[i] = g
		}(i)
	}
	wg.Wait()

	for i, g := range gens {
		if g != gens[0] {
			t.Fatalf("Default() call %d returned a different instance", i)
		}
	}

	a, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID failed: %v", err)
	}
	b, _ := GenerateID()
	if b <= a {
		t.Errorf("GenerateID not increasing: %d then %d", a, b)
	}
	if ExtractMachineID(a) != gens[0].MachineID() {
		t.Errorf("GenerateID machine id = %d, want %d", ExtractMachineID(a), gens[0].MachineID())
	}
}
