// Package sink renders simulation samples.
//
// Every sink is a [sim.Observer]. [Text] reproduces the fixed-decimal line
// format of block.Formatter, one line per sample; [JSON] and [CSV] emit the
// same selected channels in machine readable form; [Collector] keeps the
// samples in memory for callers that render later (tables, the HTTP API).
package sink

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/rodysim/rody/pkg/block"
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/sim"
)

// Format names an output encoding.
type Format string

// Supported formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// Formats lists the streaming formats in display order.
var Formats = []Format{FormatText, FormatJSON, FormatCSV}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatCSV:
		return f, nil
	}
	return "", errors.New(errors.ErrCodeInvalidFormat, "unknown format %q (want text, json or csv)", s)
}

// Options control how samples are rendered.
type Options struct {
	Selector block.Selector
	Decimals int
	// Time adds the sample time as the first column.
	Time bool
}

// Sink is an observer that buffers its output until Flush.
type Sink interface {
	sim.Observer
	Flush() error
}

// New returns the sink for format f writing to w.
func New(f Format, w io.Writer, opts Options) (Sink, error) {
	switch f {
	case FormatText:
		return NewText(w, opts), nil
	case FormatJSON:
		return NewJSON(w, opts), nil
	case FormatCSV:
		return NewCSV(w, opts), nil
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "unknown format %q", f)
}

// =============================================================================
// Text
// =============================================================================

// Text writes one formatted line per sample.
type Text struct {
	w    *bufio.Writer
	opts Options
	buf  []byte
}

// NewText returns a text sink writing to w.
func NewText(w io.Writer, opts Options) *Text {
	return &Text{w: bufio.NewWriter(w), opts: opts}
}

// Observe implements sim.Observer.
func (t *Text) Observe(s sim.Sample) error {
	t.buf = t.buf[:0]
	if t.opts.Time {
		t.buf = block.AppendValue(t.buf, s.Time, t.opts.Decimals)
	}
	t.buf = block.NewFormatter(&s.Block, t.opts.Selector, t.opts.Decimals).AppendText(t.buf)
	t.buf = append(t.buf, '\n')
	_, err := t.w.Write(t.buf)
	return err
}

// Flush writes any buffered lines.
func (t *Text) Flush() error { return t.w.Flush() }

// =============================================================================
// JSON
// =============================================================================

// Record is the JSON form of one sample.
type Record struct {
	Index  int              `json:"index"`
	Time   Value            `json:"t"`
	Values map[string]Value `json:"values"`
}

// NewRecord converts a sample, keeping the selected channels only.
func NewRecord(s sim.Sample, sel block.Selector) Record {
	vals := block.NewFormatter(&s.Block, sel, 0).Values()
	r := Record{Index: s.Index, Time: Value(s.Time), Values: make(map[string]Value, len(sel))}
	for i, c := range sel {
		r.Values[c.String()] = Value(vals[i])
	}
	return r
}

// Value is a float that survives JSON. NaN and the infinities, which JSON
// numbers cannot hold, are written as the strings "NaN", "inf" and "-inf"
// used by the text format.
type Value float64

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.AppendQuote(nil, block.FormatValue(f, 0)), nil
	}
	return json.Marshal(f)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return err
		}
		*v = Value(f)
		return nil
	}
	switch s {
	case "NaN":
		*v = Value(math.NaN())
	case "inf":
		*v = Value(math.Inf(1))
	case "-inf":
		*v = Value(math.Inf(-1))
	default:
		return errors.New(errors.ErrCodeInvalidInput, "invalid channel value %q", s)
	}
	return nil
}

// JSON writes newline delimited JSON records.
type JSON struct {
	w    *bufio.Writer
	enc  *json.Encoder
	opts Options
}

// NewJSON returns a JSON lines sink writing to w.
func NewJSON(w io.Writer, opts Options) *JSON {
	bw := bufio.NewWriter(w)
	return &JSON{w: bw, enc: json.NewEncoder(bw), opts: opts}
}

// Observe implements sim.Observer.
func (j *JSON) Observe(s sim.Sample) error {
	return j.enc.Encode(NewRecord(s, j.opts.Selector))
}

// Flush writes any buffered records.
func (j *JSON) Flush() error { return j.w.Flush() }

// =============================================================================
// CSV
// =============================================================================

// CSV writes a header row followed by one row per sample.
type CSV struct {
	w      *csv.Writer
	opts   Options
	header bool
}

// NewCSV returns a CSV sink writing to w.
func NewCSV(w io.Writer, opts Options) *CSV {
	return &CSV{w: csv.NewWriter(w), opts: opts}
}

// Header returns the column names for opts.
func Header(opts Options) []string {
	cols := make([]string, 0, len(opts.Selector)+2)
	cols = append(cols, "index")
	if opts.Time {
		cols = append(cols, "t")
	}
	return append(cols, opts.Selector.Names()...)
}

// Row returns the cells of s for opts.
func Row(s sim.Sample, opts Options) []string {
	prec := max(opts.Decimals, 0)
	row := make([]string, 0, len(opts.Selector)+2)
	row = append(row, strconv.Itoa(s.Index))
	if opts.Time {
		row = append(row, block.FormatValue(s.Time, prec))
	}
	for _, v := range block.NewFormatter(&s.Block, opts.Selector, prec).Values() {
		row = append(row, block.FormatValue(v, prec))
	}
	return row
}

// Observe implements sim.Observer.
func (c *CSV) Observe(s sim.Sample) error {
	if !c.header {
		if err := c.w.Write(Header(c.opts)); err != nil {
			return err
		}
		c.header = true
	}
	return c.w.Write(Row(s, c.opts))
}

// Flush writes any buffered rows.
func (c *CSV) Flush() error {
	c.w.Flush()
	return c.w.Error()
}

// =============================================================================
// Collector
// =============================================================================

// Collector stores every sample it observes.
type Collector struct {
	Samples []sim.Sample
}

// Observe implements sim.Observer.
func (c *Collector) Observe(s sim.Sample) error {
	c.Samples = append(c.Samples, s)
	return nil
}

// Flush is a no-op.
func (c *Collector) Flush() error { return nil }

// Records converts the collected samples.
func (c *Collector) Records(sel block.Selector) []Record {
	out := make([]Record, len(c.Samples))
	for i, s := range c.Samples {
		out[i] = NewRecord(s, sel)
	}
	return out
}

// Replay feeds the collected samples to obs in order.
func (c *Collector) Replay(obs sim.Observer) error {
	for _, s := range c.Samples {
		if err := obs.Observe(s); err != nil {
			return err
		}
	}
	return nil
}
