package workflow

import "fmt"

const minusSign = '−'

// Width counts characters the way the post limit is enforced: every non-ASCII
// rune and the minus sign U+2212 take two units, everything else one.
func Width(s string) int {
	n := 0
	for _, r := range s {
		if r > 127 || r == minusSign {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// Judgement is the outcome of a rule check.
type Judgement struct {
	Pass   bool
	Reason string
	Width  int
}

// Judge checks a draft against the post bounds. The bounds are full-width
// character counts, so they are doubled before comparing against Width.
func (c Config) Judge(post string) Judgement {
	w := Width(post)
	lo, hi := 2*c.PostMinChars, 2*c.PostMaxChars
	if w >= lo && w <= hi {
		return Judgement{
			Pass:   true,
			Width:  w,
			Reason: fmt.Sprintf("width %d within %d-%d: OK", w, lo, hi),
		}
	}
	return Judgement{
		Width: w,
		Reason: fmt.Sprintf("width %d outside %d-%d: post must be %d-%d full-width characters",
			w, lo, hi, c.PostMinChars, c.PostMaxChars),
	}
}
