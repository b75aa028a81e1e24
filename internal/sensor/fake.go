package sensor

import (
	"math/rand"
	"sync"
)

// Fake is a hardware-free driver for bench setups and tests. With a "values"
// mapping configured it replays those readings on every cycle; otherwise it
// generates plausible temperature/humidity values from a seedable PRNG.
type Fake struct {
	id     string
	values map[string]any

	mu  sync.Mutex
	rng *rand.Rand
}

func fakeRegistration() Registration {
	return Registration{
		Descriptor: Descriptor{
			Accepted: []string{"id", "seed", "values"},
			Required: []string{"id"},
			Coercers: map[string]Coercer{
				"id":   CoerceString,
				"seed": CoerceInt,
			},
		},
		Construct: newFake,
	}
}

func newFake(fields map[string]any) (Driver, error) {
	id, _ := fields["id"].(string)

	seed := int64(1)
	if s, ok := fields["seed"].(int); ok {
		seed = int64(s)
	}

	var values map[string]any
	if v, ok := fields["values"].(map[string]any); ok && len(v) > 0 {
		values = make(map[string]any, len(v))
		for k, val := range v {
			values[k] = val
		}
	}

	return &Fake{
		id:     id,
		values: values,
		rng:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (f *Fake) Name() string     { return "fake" }
func (f *Fake) Kind() string     { return "Temperature" }
func (f *Fake) Units() string    { return "C" }
func (f *Fake) Identity() string { return f.id }

func (f *Fake) Read() (map[string]any, error) {
	if f.values != nil {
		out := make(map[string]any, len(f.values))
		for k, v := range f.values {
			out[k] = v
		}
		return out, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	return map[string]any{
		"temperature": 18.0 + f.rng.Float64()*10,
		"humidity":    40.0 + f.rng.Float64()*30,
	}, nil
}
