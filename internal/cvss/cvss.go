// Package cvss parses and rewrites CVSS v3.1 vector strings. There is no
// CVSS library anywhere in the reference corpus (see DESIGN.md), and the
// format is short, fixed, and order-sensitive enough that hand-parsing it
// is proportionate to what narrower.py's drop_severity does with
// cvsslib.CVSS31State.
package cvss

import "strings"

// Unproven is the CVSS v3.1 Exploit Code Maturity value for "Unproven
// that exploit exists".
const Unproven = "U"

// Unknown is the CVSS v3.1 Report Confidence value for "Unknown".
const Unknown = "U"

// Vector is a parsed CVSS v3.1 vector string: an ordered list of
// metric=value pairs, preserving the original's ordering except for
// metrics rewritten via Set (which are updated in place if already
// present, else appended).
type Vector struct {
	prefix string // "CVSS:3.1"
	order  []string
	values map[string]string
}

// Parse splits a vector string like "CVSS:3.1/AV:N/AC:L/.../C:H" into its
// prefix and ordered metric=value pairs.
func Parse(vector string) Vector {
	parts := strings.Split(vector, "/")
	v := Vector{values: make(map[string]string)}
	if len(parts) == 0 {
		return v
	}
	start := 0
	if strings.HasPrefix(parts[0], "CVSS") {
		v.prefix = parts[0]
		start = 1
	}
	for _, p := range parts[start:] {
		kv := strings.SplitN(p, ":", 2)
		if len(kv) != 2 {
			continue
		}
		v.order = append(v.order, kv[0])
		v.values[kv[0]] = kv[1]
	}
	return v
}

// Set assigns metric=value, updating it in place if already present, or
// appending it to the end of the vector otherwise.
func (v *Vector) Set(metric, value string) {
	if _, ok := v.values[metric]; !ok {
		v.order = append(v.order, metric)
	}
	v.values[metric] = value
}

// Get returns a metric's value, if present.
func (v Vector) Get(metric string) (string, bool) {
	val, ok := v.values[metric]
	return val, ok
}

// String reserializes the vector in its (possibly updated) metric order.
func (v Vector) String() string {
	var b strings.Builder
	if v.prefix != "" {
		b.WriteString(v.prefix)
	}
	for _, m := range v.order {
		if b.Len() > 0 {
			b.WriteByte('/')
		}
		b.WriteString(m)
		b.WriteByte(':')
		b.WriteString(v.values[m])
	}
	return b.String()
}

// DropSeverity implements narrower.py's drop_severity: it sets Exploit
// Code Maturity to Unproven and Report Confidence to Unknown, reflecting
// that the vulnerable code path was proven unreachable, and returns the
// rewritten vector string. The input vector is not mutated.
func DropSeverity(vector string) string {
	v := Parse(vector)
	v.Set("E", Unproven)
	v.Set("RC", Unknown)
	return v.String()
}

// ReduceScore implements the simplified vendor format's score reduction:
// the CVSS base score is lowered by 2.5, floored at 0, for vulnerabilities
// proven unreachable.
func ReduceScore(score float64) float64 {
	reduced := score - 2.5
	if reduced < 0 {
		return 0
	}
	return reduced
}
