package height

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMax_NeverBelowAnyMetric(t *testing.T) {
	// WHAT: for random metric sets, Max >= every constituent and equals one of them.
	// WHY: an under-estimate clips the widget inside the host iframe.
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		m := Metrics{
			DocumentScrollHeight: rng.Intn(5000),
			BodyScrollHeight:     rng.Intn(5000),
			DocumentOffsetHeight: rng.Intn(5000),
			BodyOffsetHeight:     rng.Intn(5000),
			DocumentClientHeight: rng.Intn(5000),
			BodyClientHeight:     rng.Intn(5000),
		}
		got := m.Max()
		found := false
		for _, v := range m.Values() {
			if got < v {
				t.Fatalf("Max()=%d smaller than metric %d in %+v", got, v, m)
			}
			if got == v {
				found = true
			}
		}
		require.True(t, found, "Max must be one of the metrics")
	}
}

func TestMax_EachPosition(t *testing.T) {
	for pos := 0; pos < 6; pos++ {
		vals := [6]int{10, 10, 10, 10, 10, 10}
		vals[pos] = 999
		m := Metrics{vals[0], vals[1], vals[2], vals[3], vals[4], vals[5]}
		require.Equal(t, 999, m.Max(), "position %d", pos)
	}
}

func TestProbe_RereadsEveryCall(t *testing.T) {
	h := 100
	p := NewProbe(ProviderFunc(func(context.Context) (Metrics, error) {
		h += 50
		return Metrics{BodyScrollHeight: h}, nil
	}))

	first, err := p.Measure(context.Background())
	require.NoError(t, err)
	second, err := p.Measure(context.Background())
	require.NoError(t, err)
	require.Equal(t, 150, first)
	require.Equal(t, 200, second)
}

func TestProbe_ProviderError(t *testing.T) {
	boom := errors.New("detached")
	p := NewProbe(ProviderFunc(func(context.Context) (Metrics, error) {
		return Metrics{}, boom
	}))
	_, err := p.Measure(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestStatic(t *testing.T) {
	p := NewProbe(Static{DocumentClientHeight: 720, BodyScrollHeight: 1400})
	got, err := p.Measure(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1400, got)
}
