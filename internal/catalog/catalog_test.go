package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const catalogCSV = `# three-band test catalog
id,f1,f2,f3,e1,e2,e3,parallax,parallax_err,l,b
a,1.0,2.0,3.0,0.1,0.2,0.3,0.5,0.05,120,15
b,1.0,,3.0,0.1,0.2,NaN,,,10.5,-3
c, 4e-3 ,5e-3,6e-3,1e-4,1e-4,1e-4,,,,
`

func TestReadCatalog(t *testing.T) {
	cat, err := ReadCatalog(context.Background(), strings.NewReader(catalogCSV), 3)
	require.NoError(t, err)
	require.Equal(t, 3, cat.Len())

	a := cat.Observations[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, []float64{1, 2, 3}, a.Flux)
	assert.Equal(t, []bool{true, true, true}, a.Mask)
	require.True(t, a.HasParallax())
	assert.Equal(t, 0.5, *a.Parallax)
	require.NotNil(t, a.Coord)
	assert.Equal(t, 120.0, a.Coord.L)

	b := cat.Observations[1]
	assert.Equal(t, []bool{true, false, false}, b.Mask)
	assert.False(t, b.HasParallax())
	assert.Equal(t, -3.0, b.Coord.B)

	c := cat.Observations[2]
	assert.Equal(t, 4e-3, c.Flux[0])
	assert.Nil(t, c.Coord)
	assert.Nil(t, c.Parallax)
}

func TestReadCatalog_MinimalColumns(t *testing.T) {
	cat, err := ReadCatalog(context.Background(), strings.NewReader("id,f1,e1\nx,1,0.1\n"), 1)
	require.NoError(t, err)
	require.Equal(t, 1, cat.Len())
	assert.Nil(t, cat.Observations[0].Coord)
}

func TestReadCatalog_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		nfilt int
		want  string
	}{
		{"no header", "", 2, "missing header"},
		{"short header", "id,f1,e1\n", 2, "need at least 5"},
		{"unknown column", "id,f1,e1,ra\n", 1, `unknown column "ra"`},
		{"lone l", "id,f1,e1,l\n", 1, "both l and b"},
		{"ragged row", "id,f1,e1\nx,1\n", 1, "line 2"},
		{"bad number", "id,f1,e1\nx,one,0.1\n", 1, "flux 1"},
		{"bad parallax", "id,f1,e1,parallax\nx,1,0.1,?\n", 1, "parallax"},
		{"zero bands", "id\n", 0, "at least one band"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCatalog(context.Background(), strings.NewReader(tt.input), tt.nfilt)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReadCatalog_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCatalog(ctx, strings.NewReader(catalogCSV), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}

func TestStreamCSV_LinesAndTrim(t *testing.T) {
	rows, errs := StreamCSV(context.Background(), strings.NewReader("a; b\n#skip\nc;d\n"),
		CSVOptions{Delimiter: ';', Comment: '#', TrimSpace: true})

	var got []Row
	for r := range rows {
		got = append(got, r)
	}
	require.NoError(t, <-errs)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"a", "b"}, got[0].Fields)
	assert.Equal(t, 3, got[1].Line)
}

func TestStreamCSV_ParseError(t *testing.T) {
	rows, errs := StreamCSV(context.Background(), strings.NewReader("a,\"b\n"), CSVOptions{})
	for range rows {
	}
	err := <-errs
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}
