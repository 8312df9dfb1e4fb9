// Package codegen assigns stable internal AMC codes. A code is a
// three-letter prefix derived from the AMC name plus a zero-padded
// per-prefix counter, e.g. HDF001, HDF002, ICI001.
package codegen

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

const (
	prefixLength  = 3
	counterDigits = 3
	padRune       = 'X'
)

// Generator produces AMC codes from names, tracking per-prefix counters.
// Not safe for concurrent use; callers serialize code assignment.
type Generator struct {
	counters map[string]int
}

// NewGenerator creates a generator seeded with the codes already assigned,
// so new codes never collide with existing ones.
func NewGenerator(existing []string) *Generator {
	g := &Generator{counters: make(map[string]int)}
	for _, code := range existing {
		g.observe(code)
	}
	return g
}

// Prefix derives the code prefix from an AMC name: the first three letters,
// uppercased, padded with X when the name has fewer than three.
func Prefix(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			if b.Len() >= prefixLength {
				break
			}
		}
	}
	for b.Len() < prefixLength {
		b.WriteRune(padRune)
	}
	return b.String()
}

// Next returns the next unused code for the given AMC name and records it.
func (g *Generator) Next(name string) string {
	prefix := Prefix(name)
	g.counters[prefix]++
	return fmt.Sprintf("%s%0*d", prefix, counterDigits, g.counters[prefix])
}

// Observe records an externally assigned code so Next skips past it.
func (g *Generator) Observe(code string) {
	g.observe(code)
}

func (g *Generator) observe(code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) <= prefixLength {
		return
	}
	prefix := code[:prefixLength]
	n, err := strconv.Atoi(code[prefixLength:])
	if err != nil {
		return
	}
	if n > g.counters[prefix] {
		g.counters[prefix] = n
	}
}
