package browser

import (
	"fmt"
	"strings"
)

type stepKind int

const (
	stepFind stepKind = iota
	stepNth
	stepChildText
)

type step struct {
	kind  stepKind
	css   string
	index int
	text  string
}

// Selector addresses elements with a chain of CSS queries, positional picks
// and text filters. Selectors are immutable; each method returns a new one.
type Selector struct {
	steps []step
}

// Query starts a selector matching css from the document root.
func Query(css string) Selector {
	return Selector{steps: []step{{kind: stepFind, css: css}}}
}

func (s Selector) with(st step) Selector {
	steps := make([]step, len(s.steps), len(s.steps)+1)
	copy(steps, s.steps)
	return Selector{steps: append(steps, st)}
}

// Find narrows to descendants matching css.
func (s Selector) Find(css string) Selector {
	return s.with(step{kind: stepFind, css: css})
}

// Nth keeps the i-th match. Negative values count from the end; -1 is the
// last match.
func (s Selector) Nth(i int) Selector {
	return s.with(step{kind: stepNth, index: i})
}

// WithChildText keeps matches having a descendant that matches css and whose
// trimmed text equals text.
func (s Selector) WithChildText(css, text string) Selector {
	return s.with(step{kind: stepChildText, css: css, text: text})
}

func (s Selector) String() string {
	var b strings.Builder
	for i, st := range s.steps {
		switch st.kind {
		case stepFind:
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(st.css)
		case stepNth:
			fmt.Fprintf(&b, ":nth(%d)", st.index)
		case stepChildText:
			fmt.Fprintf(&b, ":has(%s=%q)", st.css, st.text)
		}
	}
	return b.String()
}
