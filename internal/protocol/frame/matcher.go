package frame

// Matcher finds a fixed byte pattern in a stream fed one byte at a time.
// It is a KMP automaton: each Feed is amortised O(1) and a partial match that
// breaks off resumes from the longest proper prefix that is still a suffix.
type Matcher struct {
	pattern []byte
	fail    []int
	state   int
}

func NewMatcher(pattern string) *Matcher {
	p := []byte(pattern)
	fail := make([]int, len(p))
	k := 0
	for i := 1; i < len(p); i++ {
		for k > 0 && p[i] != p[k] {
			k = fail[k-1]
		}
		if p[i] == p[k] {
			k++
		}
		fail[i] = k
	}
	return &Matcher{pattern: p, fail: fail}
}

// Feed advances the automaton and reports whether the pattern ends at b.
func (m *Matcher) Feed(b byte) bool {
	if len(m.pattern) == 0 {
		return true
	}
	for m.state > 0 && b != m.pattern[m.state] {
		m.state = m.fail[m.state-1]
	}
	if b == m.pattern[m.state] {
		m.state++
	}
	if m.state == len(m.pattern) {
		m.state = m.fail[m.state-1]
		return true
	}
	return false
}

func (m *Matcher) Reset() {
	m.state = 0
}

func (m *Matcher) Len() int {
	return len(m.pattern)
}
