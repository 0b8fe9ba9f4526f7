package block

import (
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rodysim/rody/pkg/errors"
)

// Channel indexes one of the six scalar state values of a block.
type Channel uint8

// Channels in their canonical order.
const (
	PX Channel = iota
	PY
	PZ
	VX
	VY
	VZ
)

// NumChannels is the number of selectable channels.
const NumChannels = 6

var channelNames = [NumChannels]string{"px", "py", "pz", "vx", "vy", "vz"}

// String returns the lowercase channel name ("px" .. "vz").
func (c Channel) String() string {
	if int(c) < NumChannels {
		return channelNames[c]
	}
	return "?"
}

// Selector is an ordered list of channels. Repeats are kept.
type Selector []Channel

var (
	allChannels      = []Channel{PX, PY, PZ, VX, VY, VZ}
	positionChannels = []Channel{PX, PY, PZ}
	velocityChannels = []Channel{VX, VY, VZ}
)

// expand maps one lowercase token to its channels. ok is false for unknown
// tokens.
func expand(token string) (chans []Channel, ok bool) {
	switch token {
	case "_":
		return allChannels, true
	case "p":
		return positionChannels, true
	case "v":
		return velocityChannels, true
	case "px":
		return []Channel{PX}, true
	case "py":
		return []Channel{PY}, true
	case "pz":
		return []Channel{PZ}, true
	case "vx":
		return []Channel{VX}, true
	case "vy":
		return []Channel{VY}, true
	case "vz":
		return []Channel{VZ}, true
	}
	return nil, false
}

// parse expands every whitespace separated token of s and collects the
// tokens it does not know.
func parse(s string) (Selector, []string) {
	var (
		sel     Selector
		unknown []string
	)
	for _, tok := range strings.Fields(s) {
		chans, ok := expand(strings.ToLower(tok))
		if !ok {
			unknown = append(unknown, tok)
			continue
		}
		sel = append(sel, chans...)
	}
	return sel, unknown
}

// ParseSelector expands a selector string into channels. Unknown tokens are
// ignored.
func ParseSelector(s string) Selector {
	sel, _ := parse(s)
	return sel
}

// ParseSelectorStrict is ParseSelector that fails on unknown tokens. The
// returned selector holds the known channels even when err is non-nil.
func ParseSelectorStrict(s string) (Selector, error) {
	sel, unknown := parse(s)
	if len(unknown) > 0 {
		return sel, errors.New(errors.ErrCodeInvalidSelector,
			"unknown selector token(s) %q (want _, p, v, px, py, pz, vx, vy, vz)", unknown)
	}
	return sel, nil
}

// Names returns the channel names in selector order.
func (s Selector) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.String()
	}
	return names
}

// String joins the channel names with single spaces, giving a selector that
// parses back to s.
func (s Selector) String() string {
	return strings.Join(s.Names(), " ")
}

// Formatter renders selected channels of a block as fixed-decimal text.
// It borrows the block and must not outlive it.
type Formatter struct {
	block    *Block
	selector Selector
	decimal  int
}

// NewFormatter binds an already parsed selector to b.
func NewFormatter(b *Block, sel Selector, decimal int) Formatter {
	return Formatter{block: b, selector: sel, decimal: decimal}
}

// Selector returns the channels rendered by f.
func (f Formatter) Selector() Selector { return f.selector }

// Decimal returns the number of fractional digits, never negative.
func (f Formatter) Decimal() int { return max(f.decimal, 0) }

// Values returns the selected channel values in order.
func (f Formatter) Values() []float64 {
	vals := make([]float64, len(f.selector))
	for i, c := range f.selector {
		vals[i] = f.block.Channel(c)
	}
	return vals
}

// AppendValue appends v with prec fractional digits. Infinities render as
// "inf" and "-inf", NaN as "NaN".
func AppendValue(dst []byte, v float64, prec int) []byte {
	switch {
	case math.IsNaN(v):
		return append(dst, "NaN"...)
	case math.IsInf(v, 1):
		return append(dst, "inf"...)
	case math.IsInf(v, -1):
		return append(dst, "-inf"...)
	}
	return strconv.AppendFloat(dst, v, 'f', max(prec, 0), 64)
}

// FormatValue is AppendValue into a new string.
func FormatValue(v float64, prec int) string {
	return string(AppendValue(nil, v, prec))
}

// AppendText appends the rendering of f to dst. Each channel becomes
// " <value> " with no separator between channels.
func (f Formatter) AppendText(dst []byte) []byte {
	prec := f.Decimal()
	for _, c := range f.selector {
		dst = append(dst, ' ')
		dst = AppendValue(dst, f.block.Channel(c), prec)
		dst = append(dst, ' ')
	}
	return dst
}

// String renders f. An empty selector renders as the empty string.
func (f Formatter) String() string {
	return string(f.AppendText(nil))
}

// WriteTo writes the rendering of f to w.
func (f Formatter) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(f.AppendText(nil))
	return int64(n), err
}
