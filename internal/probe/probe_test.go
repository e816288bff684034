package probe

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeprobe/internal/metrics"
	"typeprobe/internal/parser/csv"
	"typeprobe/internal/schema"
)

func writeCSV(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func types(s schema.Schema) map[string]schema.Rung {
	out := make(map[string]schema.Rung, s.Len())
	for _, f := range s.Fields() {
		out[f.Name] = f.Type
	}
	return out
}

type recordingSink struct {
	mu    sync.Mutex
	warns []string
	ops   []string
}

func (s *recordingSink) Start(op string, _ ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "start:"+op)
}

func (s *recordingSink) End(op string, _ ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = append(s.ops, "end:"+op)
}

func (s *recordingSink) Warn(kind, _ string, _ ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warns = append(s.warns, kind)
}

type countingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
}

func (b *countingBackend) IncCounter(name string, delta float64, _ metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counters == nil {
		b.counters = map[string]float64{}
	}
	b.counters[name] += delta
}

func (b *countingBackend) ObserveHistogram(string, float64, metrics.Labels) {}

func TestInferFileClassifiesColumns(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "in.csv", "Id,Unit Price,Name\n1,92.5,a\n2,3,b\n200,1.25,c\n")
	s, rep, err := InferFile(context.Background(), p, Options{DecimalPlaces: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "UNIT_PRICE", "NAME"}, s.Names())
	assert.Equal(t, map[string]schema.Rung{
		"ID":         schema.Short,
		"UNIT_PRICE": schema.Float32,
		"NAME":       schema.Text,
	}, types(s))

	assert.Equal(t, int64(4), rep.TotalLines)
	assert.Equal(t, 3, rep.SampledRows)
	assert.False(t, rep.LastRowSampled)
	assert.Nil(t, rep.FieldLength)
	assert.NotEmpty(t, rep.RunID)
	require.Len(t, rep.Columns, 3)
	assert.Equal(t, "Unit Price", rep.Columns[1].Header)
	assert.Equal(t, 3, rep.Columns[0].Observed)
}

func TestInferFileSamplesFinalRow(t *testing.T) {
	t.Parallel()

	// The middle row is outside the sample; the last row always counts.
	p := writeCSV(t, "in.csv", "id\n1\nnot-a-number\n300\n")
	s, rep, err := InferFile(context.Background(), p, Options{SampleRows: 1})
	require.NoError(t, err)

	assert.Equal(t, schema.Short, types(s)["ID"])
	assert.Equal(t, 1, rep.SampledRows)
	assert.True(t, rep.LastRowSampled)
}

func TestInferFileUnboundedReadsEverything(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "in.csv", "id\n1\nnot-a-number\n300\n")
	s, rep, err := InferFile(context.Background(), p, Options{SampleRows: Unbounded})
	require.NoError(t, err)

	assert.Equal(t, schema.Text, types(s)["ID"])
	assert.Equal(t, 3, rep.SampledRows)
	assert.False(t, rep.LastRowSampled)
}

func TestInferFileQuotedFields(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "in.csv", "name,amount\n\"Smith, J\",\"1,5\"\r\n'it''s',7\r\n\"multi\nline\",8\r\n")
	s, rep, err := InferFile(context.Background(), p, Options{})
	require.NoError(t, err)

	assert.Equal(t, schema.Text, types(s)["NAME"])
	assert.Equal(t, schema.Text, types(s)["AMOUNT"])
	assert.Equal(t, 3, rep.SampledRows)
}

func TestInferFileFieldLengthWarning(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	m := &countingBackend{}
	p := writeCSV(t, "in.csv", "a,b\n1,2\n3,4,5\n6,7\n")
	s, rep, err := InferFile(context.Background(), p, Options{Sink: sink, Metrics: m})
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	require.NotNil(t, rep.FieldLength)
	assert.Equal(t, FieldLengthWarning{Expected: 2, Mismatched: 1, FirstLine: 3}, *rep.FieldLength)
	assert.Equal(t, []string{"field_length"}, sink.warns)
	assert.Equal(t, []string{"start:infer", "end:infer"}, sink.ops)
	assert.Equal(t, float64(1), m.counters[metrics.FieldLengthWarningsTotal])
	assert.Equal(t, float64(1), m.counters[metrics.FilesTotal])
	assert.Equal(t, float64(3), m.counters[metrics.RowsSampledTotal])
}

func TestInferFileErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want error
	}{
		{"empty", "", ErrNoHeader},
		{"blank lines only", "\n \n\n", ErrNoHeader},
		{"joined row overshoots", "a,b,c\n1,2\n3,4,5\n", csv.ErrTooManyFields},
		{"unterminated quote", "a,b\n1,\"open\n", csv.ErrUnterminatedQuote},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := writeCSV(t, "in.csv", tt.body)
			_, rep, err := InferFile(context.Background(), p, Options{})
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, rep)
			assert.Contains(t, err.Error(), p)
		})
	}
}

func TestInferFileMissing(t *testing.T) {
	t.Parallel()

	_, _, err := InferFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), Options{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestInferFileCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := writeCSV(t, "in.csv", "a\n1\n")
	_, _, err := InferFile(ctx, p, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInferFileCustomDelimiter(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "in.tsv", "id\tnote\n1\ta,b\n")
	s, _, err := InferFile(context.Background(), p, Options{Dialect: csv.Dialect{Delimiter: '\t', Quotes: []rune{'"'}}})
	require.NoError(t, err)
	assert.Equal(t, map[string]schema.Rung{"ID": schema.Byte, "NOTE": schema.Text}, types(s))
}

func TestInferFileUniqueness(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "in.csv", "id,color\n1,red\n2,red\n3,blue\n")
	_, rep, err := InferFile(context.Background(), p, Options{Uniqueness: true})
	require.NoError(t, err)
	require.NotNil(t, rep.Uniqueness)

	u := rep.Uniqueness
	assert.Equal(t, 3, u.TotalRows)
	assert.Equal(t, 3, u.Distinct["ID"])
	assert.Equal(t, 2, u.Distinct["COLOR"])
	assert.Equal(t, []string{"ID"}, KeyCandidates(u))

	out := FormatUniquenessReport(u)
	assert.True(t, strings.HasPrefix(out, "uniqueness report:"))
	assert.Less(t, strings.Index(out, "\nCOLOR"), strings.Index(out, "\nID"))
}

func TestInferFilesMergesWidest(t *testing.T) {
	t.Parallel()

	a := writeCSV(t, "a.csv", "id,x\n1,a\n")
	b := writeCSV(t, "b.csv", "id,y\n300,1.5\n")
	s, reps, err := InferFiles(context.Background(), []string{a, b}, Options{Workers: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"ID", "X", "Y"}, s.Names())
	assert.Equal(t, map[string]schema.Rung{
		"ID": schema.Short,
		"X":  schema.Text,
		"Y":  schema.Float32,
	}, types(s))
	require.Len(t, reps, 2)
	assert.Equal(t, a, reps[0].Path)
	assert.Equal(t, b, reps[1].Path)
}

func TestInferFilesFailsWhole(t *testing.T) {
	t.Parallel()

	a := writeCSV(t, "a.csv", "id\n1\n")
	b := writeCSV(t, "b.csv", "")
	_, reps, err := InferFiles(context.Background(), []string{a, b}, Options{})
	assert.ErrorIs(t, err, ErrNoHeader)
	assert.Nil(t, reps)
}

func TestSampleLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n     int
		total int64
		want  int64
	}{
		{Unbounded, 10, 10},
		{5, 10, 5},
		{50, 10, 10},
		{1, 0, 0},
	}
	for _, tt := range tests {
		if got := sampleLimit(tt.n, tt.total); got != tt.want {
			t.Fatalf("sampleLimit(%d, %d) = %d, want %d", tt.n, tt.total, got, tt.want)
		}
	}
}

func TestCheckRectangularAcrossChunks(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("a,b\n")
	for i := 0; i < 2*scanChunkLines; i++ {
		switch i {
		case 4200, 7000:
			b.WriteString("x,y,z\n")
		case 5000:
			b.WriteString("\n")
		default:
			fmt.Fprintf(&b, "%d,%d\n", i, i)
		}
	}
	p := writeCSV(t, "big.csv", b.String())

	w, err := checkRectangular(context.Background(), p, "", csv.DefaultDialect, 2, 4)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, int64(2), w.Mismatched)
	assert.Equal(t, int64(4202), w.FirstLine)
}

func TestCheckRectangularClean(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "in.csv", "\n\na,b\n1,2\n\n3,4\n")
	w, err := checkRectangular(context.Background(), p, "", csv.DefaultDialect, 2, 1)
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestRenderSummary(t *testing.T) {
	t.Parallel()

	p := writeCSV(t, "in.csv", "Id,Name\n1,a\n")
	s, rep, err := InferFile(context.Background(), p, Options{})
	require.NoError(t, err)

	got := string(RenderSummary(s, rep))
	assert.Contains(t, got, "sample_rows=1\n")
	assert.Contains(t, got, "header,normalized,type\nId,ID,byte\nName,NAME,text\n")

	js, err := MarshalResult(s, []*Report{rep})
	require.NoError(t, err)
	assert.Contains(t, string(js), `"name": "ID"`)
}
