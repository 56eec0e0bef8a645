package room

import (
	"fmt"
	"strings"
)

// Color is a token color.
type Color string

const (
	Emerald  Color = "emerald"
	Sapphire Color = "sapphire"
	Ruby     Color = "ruby"
	Diamond  Color = "diamond"
	Onyx     Color = "onyx"
	Gold     Color = "gold"
)

// Colors lists every token color in display order.
var Colors = []Color{Emerald, Sapphire, Ruby, Diamond, Onyx, Gold}

const (
	// GoldCap is the gold pool size regardless of player count.
	GoldCap = 5
	// MaxTokensPerTake bounds a single take request.
	MaxTokensPerTake = 3
)

// ParseColor resolves a color name, ignoring case and surrounding space.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Colors {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown token color %q", s)
}

// MaxTokenStack returns the per-color pool size for a game with the given
// number of players.
func MaxTokenStack(players int) (int, error) {
	switch players {
	case 2:
		return 4, nil
	case 3:
		return 5, nil
	case 4:
		return 7, nil
	default:
		return 0, &InvalidPlayerCountError{Count: players}
	}
}

// Tokens counts tokens per color.
type Tokens map[Color]int

// ParseTokens converts a client supplied color to count map, normalizing
// color names. Duplicate spellings of one color are summed.
func ParseTokens(in map[string]int) (Tokens, error) {
	out := make(Tokens, len(in))
	for name, n := range in {
		c, err := ParseColor(name)
		if err != nil {
			return nil, &TokenError{Color: Color(name), Reason: "unknown color"}
		}
		out[c] += n
	}
	return out, nil
}

// Total returns the number of tokens across all colors.
func (t Tokens) Total() int {
	n := 0
	for _, v := range t {
		n += v
	}
	return n
}

// Clone returns a copy of t with every color present.
func (t Tokens) Clone() Tokens {
	out := make(Tokens, len(Colors))
	for _, c := range Colors {
		out[c] = t[c]
	}
	return out
}

func (t Tokens) validate() error {
	if len(t) == 0 {
		return &TokenError{Reason: "no tokens requested"}
	}
	for c, n := range t {
		if parsed, err := ParseColor(string(c)); err != nil || parsed != c {
			return &TokenError{Color: c, Reason: "unknown color"}
		}
		if n < 0 {
			return &TokenError{Color: c, Reason: "negative amount"}
		}
	}
	if t.Total() == 0 {
		return &TokenError{Reason: "no tokens requested"}
	}
	return nil
}

// Pool is a room's bank of tokens. Its composition is fixed when the game
// starts; only counts change afterwards. Pool is not safe for concurrent use
// and is guarded by its room's lock.
type Pool struct {
	caps   Tokens
	counts Tokens
}

// NewPool allocates a full pool for a game with the given number of players.
func NewPool(players int) (*Pool, error) {
	stack, err := MaxTokenStack(players)
	if err != nil {
		return nil, err
	}
	p := &Pool{caps: make(Tokens, len(Colors)), counts: make(Tokens, len(Colors))}
	for _, c := range Colors {
		limit := stack
		if c == Gold {
			limit = GoldCap
		}
		p.caps[c] = limit
		p.counts[c] = limit
	}
	return p, nil
}

// Count returns the tokens of color c left in the pool.
func (p *Pool) Count(c Color) int { return p.counts[c] }

// Cap returns the fixed pool size for color c.
func (p *Pool) Cap(c Color) int { return p.caps[c] }

// Snapshot returns a copy of the current counts.
func (p *Pool) Snapshot() Tokens { return p.counts.Clone() }

// Take removes req from the pool. Nothing is removed unless every color can
// be served.
func (p *Pool) Take(req Tokens) error {
	for c, n := range req {
		if p.counts[c] < n {
			return &TokenError{Color: c, Reason: fmt.Sprintf("only %d left in the pool", p.counts[c])}
		}
	}
	for c, n := range req {
		p.counts[c] -= n
	}
	return nil
}

// Give adds req back to the pool. Nothing is added if any color would exceed
// its cap.
func (p *Pool) Give(req Tokens) error {
	for c, n := range req {
		if p.counts[c]+n > p.caps[c] {
			return &TokenError{Color: c, Reason: fmt.Sprintf("pool holds at most %d", p.caps[c])}
		}
	}
	for c, n := range req {
		p.counts[c] += n
	}
	return nil
}
