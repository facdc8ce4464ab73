package main

import (
	"math"
	"testing"

	"github.com/go-playground/assert/v2"
)

func fp(v float64) *float64 { return &v }

func TestTailPosBase(t *testing.T) {
	assert.Equal(t, tailPos(nil), float64(posStep))
	nan := math.NaN()
	assert.Equal(t, tailPos(&nan), float64(posStep))
}

func TestTailPosStrictlyIncreasing(t *testing.T) {
	var last *float64
	prev := math.Inf(-1)
	for i := 0; i < 1000; i++ {
		next := tailPos(last)
		if next <= prev {
			t.Fatalf("tailPos not increasing at step %d: %v <= %v", i, next, prev)
		}
		prev = next
		last = &next
	}
}

func TestBetweenPos(t *testing.T) {
	cases := []struct {
		name string
		prev *float64
		next *float64
		want float64
	}{
		{"both absent", nil, nil, 1000},
		{"only next", nil, fp(3000), 2000},
		{"only prev", fp(3000), nil, 4000},
		{"midpoint", fp(1000), fp(2000), 1500},
		{"negative head insert", nil, fp(500), -500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, betweenPos(tc.prev, tc.next), tc.want)
		})
	}
}

func TestBetweenPosBounds(t *testing.T) {
	pairs := [][2]float64{
		{0, 1000}, {1000, 2000}, {-5000, -4000}, {999.5, 1000.5}, {1, 1.5},
	}
	for _, p := range pairs {
		r := betweenPos(&p[0], &p[1])
		if !isFinite(r) {
			t.Fatalf("betweenPos(%v,%v) not finite: %v", p[0], p[1], r)
		}
		if r <= p[0] || r >= p[1] {
			t.Fatalf("betweenPos(%v,%v) = %v outside open interval", p[0], p[1], r)
		}
	}
}

// Narrow gaps below the precision floor must fall back to append
// semantics instead of producing a colliding or non-finite key.
func TestBetweenPosGapExhausted(t *testing.T) {
	prev := 1000.0
	next := 1000.0 + math.Pow(2, -40)
	got := betweenPos(&prev, &next)
	assert.Equal(t, got, prev+posStep)
}

func TestBetweenPosNonFiniteMidpoint(t *testing.T) {
	prev := math.MaxFloat64
	next := math.MaxFloat64
	got := betweenPos(&prev, &next)
	if !isFinite(got) {
		t.Fatalf("fallback key not finite: %v", got)
	}
}

// Repeated bisection toward a fixed lower neighbor eventually exhausts
// float precision; the allocator must switch to the fallback branch
// rather than emit prev itself or a non-finite value.
func TestBetweenPosDeepBisection(t *testing.T) {
	prev := 1000.0
	next := 2000.0
	fellBack := false
	for i := 0; i < 200; i++ {
		r := betweenPos(&prev, &next)
		if !isFinite(r) {
			t.Fatalf("iteration %d produced non-finite key", i)
		}
		if r <= prev {
			t.Fatalf("iteration %d produced key %v <= prev %v", i, r, prev)
		}
		if r >= next {
			// defined fallback: append past the exhausted gap
			assert.Equal(t, r, prev+posStep)
			fellBack = true
			break
		}
		next = r
	}
	if !fellBack {
		t.Fatal("bisection never triggered the fallback branch")
	}
}
