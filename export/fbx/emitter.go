package fbx

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// emitter writes the FBX ASCII node syntax. The first write error is
// kept and every later call is a no-op.
type emitter struct {
	w     *bufio.Writer
	depth int
	err   error
}

func newEmitter(w io.Writer) *emitter {
	return &emitter{w: bufio.NewWriter(w)}
}

func (e *emitter) raw(s string) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.WriteString(s)
}

func (e *emitter) line(format string, args ...any) {
	e.raw(strings.Repeat("\t", e.depth))
	e.raw(fmt.Sprintf(format, args...))
	e.raw("\n")
}

func (e *emitter) blank() { e.raw("\n") }

// open writes `header {` and indents.
func (e *emitter) open(format string, args ...any) {
	e.line(format+"  {", args...)
	e.depth++
}

func (e *emitter) close() {
	e.depth--
	e.line("}")
}

// prop writes one Properties70 entry.
func (e *emitter) prop(name, typ, label, flags string, values ...string) {
	head := fmt.Sprintf("P: %q, %q, %q, %q", name, typ, label, flags)
	if len(values) == 0 {
		e.line("%s", head)
		return
	}
	e.line("%s,%s", head, strings.Join(values, ","))
}

// array writes a typed array node such as `KeyTime: *3 { a: 0,1,2 }`.
func (e *emitter) array(name string, values []string) {
	e.open("%s: *%d", name, len(values))
	e.line("a: %s", strings.Join(values, ","))
	e.close()
}

func (e *emitter) flush() error {
	if e.err != nil {
		return e.err
	}
	return e.w.Flush()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatFloat32(v float64) string {
	return strconv.FormatFloat(float64(float32(v)), 'f', -1, 32)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatFloats(vs []float64, f func(float64) string) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = f(v)
	}
	return out
}

func formatInts(vs []int64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = formatInt(v)
	}
	return out
}
