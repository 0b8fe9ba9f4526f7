package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/rodysim/rody/pkg/block"
	"github.com/rodysim/rody/pkg/errors"
	"github.com/rodysim/rody/pkg/geom"
	"github.com/rodysim/rody/pkg/sim"
	"github.com/rodysim/rody/pkg/timeline"
)

func run(t *testing.T, obs sim.Observer, steps int, opts ...sim.Option) {
	t.Helper()
	b := block.NewBuilder().
		SetMassDensity(1).
		SetLengths(1, 1, 1).
		SetInitialVelocity(-1, 0, 0).
		Get()
	tl := timeline.MustNew(0, 0.1*float64(steps), steps)
	if _, err := sim.Run(context.Background(), &b, tl, obs, opts...); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}

func flush(t *testing.T, s Sink) {
	t.Helper()
	if err := s.Flush(); err != nil {
		t.Fatalf("Flush() error: %v", err)
	}
}

// nonFinite is a sample whose velocity has no finite rendering.
func nonFinite() sim.Sample {
	return sim.Sample{
		Index: 1,
		Time:  0.1,
		Block: block.Block{Velocity: geom.NewVector(math.Inf(1), math.Inf(-1), math.NaN())},
	}
}

func TestParseFormat(t *testing.T) {
	for _, f := range Formats {
		got, err := ParseFormat(string(f))
		if err != nil {
			t.Errorf("ParseFormat(%q) error: %v", f, err)
		}
		if got != f {
			t.Errorf("ParseFormat(%q) = %q", f, got)
		}
	}

	if _, err := ParseFormat("xml"); !errors.Is(err, errors.ErrCodeInvalidFormat) {
		t.Errorf("ParseFormat(xml) error = %v, want INVALID_FORMAT", err)
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	s := NewText(&buf, Options{Selector: block.ParseSelector("_"), Decimals: 3})
	run(t, s, 1)
	flush(t, s)

	if want := " -0.100  0.000  0.000  -1.000  0.000  0.000 \n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTextWithTime(t *testing.T) {
	var buf bytes.Buffer
	s := NewText(&buf, Options{Selector: block.ParseSelector("px"), Decimals: 2, Time: true})
	run(t, s, 2, sim.WithInitial())
	flush(t, s)

	if want := "0.00 0.00 \n0.10 -0.10 \n0.20 -0.20 \n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestTextEmptySelector(t *testing.T) {
	var buf bytes.Buffer
	s := NewText(&buf, Options{Selector: block.ParseSelector("bogus"), Decimals: 3})
	run(t, s, 2)
	flush(t, s)

	if buf.String() != "\n\n" {
		t.Errorf("output = %q, want two empty lines", buf.String())
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSON(&buf, Options{Selector: block.ParseSelector("px vx")})
	run(t, s, 2)
	flush(t, s)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2:\n%s", len(lines), buf.String())
	}

	var r Record
	if err := json.Unmarshal([]byte(lines[1]), &r); err != nil {
		t.Fatalf("Unmarshal(%s) error: %v", lines[1], err)
	}
	if r.Index != 2 {
		t.Errorf("Index = %d, want 2", r.Index)
	}
	if math.Abs(float64(r.Time)-0.2) > 1e-12 {
		t.Errorf("Time = %v, want 0.2", r.Time)
	}
	if math.Abs(float64(r.Values["px"])+0.2) > 1e-12 {
		t.Errorf("px = %v, want -0.2", r.Values["px"])
	}
	if r.Values["vx"] != -1 {
		t.Errorf("vx = %v, want -1", r.Values["vx"])
	}
	if _, ok := r.Values["py"]; ok {
		t.Error("unselected channel py was written")
	}
}

func TestJSONNonFinite(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSON(&buf, Options{Selector: block.ParseSelector("v")})
	if err := s.Observe(nonFinite()); err != nil {
		t.Fatalf("Observe() error: %v", err)
	}
	flush(t, s)

	want := `{"index":1,"t":0.1,"values":{"vx":"inf","vy":"-inf","vz":"NaN"}}` + "\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}

	var r Record
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if v := float64(r.Values["vx"]); !math.IsInf(v, 1) {
		t.Errorf("vx = %v, want +Inf", v)
	}
	if v := float64(r.Values["vy"]); !math.IsInf(v, -1) {
		t.Errorf("vy = %v, want -Inf", v)
	}
	if v := float64(r.Values["vz"]); !math.IsNaN(v) {
		t.Errorf("vz = %v, want NaN", v)
	}
}

func TestValueRejectsUnknownStrings(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`"infinity"`), &v); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("Unmarshal(infinity) error = %v, want INVALID_INPUT", err)
	}
}

func TestTextAndCSVNonFinite(t *testing.T) {
	opts := Options{Selector: block.ParseSelector("v"), Decimals: 2}

	var text bytes.Buffer
	ts := NewText(&text, opts)
	if err := ts.Observe(nonFinite()); err != nil {
		t.Fatalf("Text.Observe() error: %v", err)
	}
	flush(t, ts)
	if want := " inf  -inf  NaN \n"; text.String() != want {
		t.Errorf("text = %q, want %q", text.String(), want)
	}

	if got, want := Row(nonFinite(), opts), []string{"1", "inf", "-inf", "NaN"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Row() = %v, want %v", got, want)
	}
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSV(&buf, Options{Selector: block.ParseSelector("p"), Decimals: 1, Time: true})
	run(t, s, 2)
	flush(t, s)

	want := "index,t,px,py,pz\n1,0.1,-0.1,0.0,0.0\n2,0.2,-0.2,0.0,0.0\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestCSVNoSamplesNoHeader(t *testing.T) {
	var buf bytes.Buffer
	s := NewCSV(&buf, Options{Selector: block.ParseSelector("_")})
	flush(t, s)
	if buf.Len() != 0 {
		t.Errorf("output = %q, want nothing", buf.String())
	}
}

func TestNew(t *testing.T) {
	for _, f := range Formats {
		s, err := New(f, &bytes.Buffer{}, Options{})
		if err != nil || s == nil {
			t.Errorf("New(%q) = %v, %v", f, s, err)
		}
	}
	if _, err := New("yaml", &bytes.Buffer{}, Options{}); err == nil {
		t.Error("New(yaml) should fail")
	}
}

func TestCollector(t *testing.T) {
	var c Collector
	run(t, &c, 3)
	if len(c.Samples) != 3 {
		t.Fatalf("collected %d samples, want 3", len(c.Samples))
	}

	recs := c.Records(block.ParseSelector("vx"))
	if len(recs) != 3 {
		t.Fatalf("got %d records, want 3", len(recs))
	}
	if want := map[string]Value{"vx": -1}; !reflect.DeepEqual(recs[0].Values, want) {
		t.Errorf("Values = %v, want %v", recs[0].Values, want)
	}

	var buf bytes.Buffer
	text := NewText(&buf, Options{Selector: block.ParseSelector("px"), Decimals: 1})
	if err := c.Replay(text); err != nil {
		t.Fatalf("Replay() error: %v", err)
	}
	flush(t, text)
	if want := " -0.1 \n -0.2 \n -0.3 \n"; buf.String() != want {
		t.Errorf("replayed = %q, want %q", buf.String(), want)
	}
}
