package scanner_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joelanford/axscan/utils/findings"
	"github.com/joelanford/axscan/utils/keywords"
	"github.com/joelanford/axscan/utils/scanner"
)

func newScanner(t *testing.T, opts ...scanner.Option) *scanner.Scanner {
	t.Helper()
	s, err := scanner.NewScanner(keywords.Default(), opts...)
	require.NoError(t, err)
	return s
}

func TestScanEmpty(t *testing.T) {
	batch := newScanner(t).Scan(context.Background())
	assert.NotNil(t, batch)
	assert.Len(t, batch, 0)
	assert.True(t, batch.Safe())
}

func TestScanSingleFinding(t *testing.T) {
	batch := newScanner(t).Scan(context.Background(),
		scanner.BytesSource("a.vbs", []byte("foo CreateObject( bar")))

	require.Len(t, batch, 1)
	assert.Equal(t, "a.vbs", batch[0].FileName)
	assert.Empty(t, batch[0].Error)
	assert.NoError(t, batch[0].Err())
	assert.Equal(t, []findings.Finding{{
		Keyword:  "CreateObject(",
		Snippet:  "foo CreateObject( bar",
		Position: 4,
	}}, batch[0].Findings)
	assert.Equal(t, 1, batch.TotalFindings())
	assert.False(t, batch.Safe())
}

func TestScanOversizedFileIsNotRead(t *testing.T) {
	var reads int32
	big := scanner.NewSource("big.bin", 11*1024*1024, func(context.Context) ([]byte, error) {
		atomic.AddInt32(&reads, 1)
		return []byte("ActiveX"), nil
	})

	batch := newScanner(t).Scan(context.Background(),
		big,
		scanner.BytesSource("small.txt", []byte("uses ActiveX once")))

	require.Len(t, batch, 2)
	assert.Equal(t, int32(0), atomic.LoadInt32(&reads))

	assert.Equal(t, "big.bin", batch[0].FileName)
	assert.Equal(t, "File exceeds 10MB size limit", batch[0].Error)
	assert.Nil(t, batch[0].Findings)
	assert.True(t, errors.Is(batch[0].Err(), scanner.ErrSizeLimitExceeded))

	assert.Equal(t, "small.txt", batch[1].FileName)
	require.Len(t, batch[1].Findings, 1)
	assert.Equal(t, "ActiveX", batch[1].Findings[0].Keyword)
}

func TestScanSizeLimitBoundary(t *testing.T) {
	s := newScanner(t, scanner.SizeLimit(7))

	batch := s.Scan(context.Background(),
		scanner.BytesSource("exact", []byte("ActiveX")),
		scanner.BytesSource("over", []byte("ActiveX!")))

	require.Len(t, batch, 2)
	assert.Len(t, batch[0].Findings, 1)
	assert.Equal(t, "File exceeds 7 byte size limit", batch[1].Error)
}

func TestScanReadFailureIsIsolated(t *testing.T) {
	failing := scanner.NewSource("broken", 10, func(context.Context) ([]byte, error) {
		return nil, errors.New("disk on fire")
	})

	batch := newScanner(t).Scan(context.Background(),
		failing,
		scanner.BytesSource("clean", []byte("nothing to see")),
		scanner.BytesSource("hit", []byte("GetObject(\"winmgmts:\")")))

	require.Len(t, batch, 3)
	assert.Equal(t, "Failed to read file content", batch[0].Error)
	assert.Nil(t, batch[0].Findings)
	assert.True(t, errors.Is(batch[0].Err(), scanner.ErrReadFailure))

	assert.Empty(t, batch[1].Error)
	assert.NotNil(t, batch[1].Findings)
	assert.Empty(t, batch[1].Findings)

	require.Len(t, batch[2].Findings, 1)
	assert.Equal(t, "GetObject(", batch[2].Findings[0].Keyword)
}

func TestScanReadTimeout(t *testing.T) {
	hung := scanner.NewSource("hung", 1, func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	ignoresContext := scanner.NewSource("stuck", 1, func(context.Context) ([]byte, error) {
		time.Sleep(time.Second)
		return []byte("ActiveX"), nil
	})

	s := newScanner(t, scanner.ReadTimeout(20*time.Millisecond))
	start := time.Now()
	batch := s.Scan(context.Background(), hung, ignoresContext)

	require.Len(t, batch, 2)
	assert.Equal(t, "Failed to read file content", batch[0].Error)
	assert.Equal(t, "Failed to read file content", batch[1].Error)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestScanCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := scanner.NewSource("first", 1, func(context.Context) ([]byte, error) {
		cancel()
		return []byte("ActiveX"), nil
	})

	batch := newScanner(t).Scan(ctx,
		first,
		scanner.BytesSource("second", []byte("ActiveX")),
		scanner.BytesSource("third", []byte("ActiveX")))

	require.Len(t, batch, 3)
	assert.Equal(t, "first", batch[0].FileName)
	for _, r := range batch[1:] {
		assert.Equal(t, "Scan canceled", r.Error)
		assert.True(t, errors.Is(r.Err(), scanner.ErrCanceled))
	}
}

func TestScanPreservesOrderInParallel(t *testing.T) {
	var sources []scanner.Source
	for i := 0; i < 50; i++ {
		delay := time.Duration(rand.Intn(5)) * time.Millisecond
		content := []byte(fmt.Sprintf("file %d Object=%d", i, i))
		sources = append(sources, scanner.NewSource(fmt.Sprintf("f%02d", i), int64(len(content)), func(context.Context) ([]byte, error) {
			time.Sleep(delay)
			return content, nil
		}))
	}

	batch := newScanner(t, scanner.Parallelism(8)).Scan(context.Background(), sources...)

	require.Len(t, batch, len(sources))
	for i := range sources {
		assert.Equal(t, sources[i].Name(), batch[i].FileName)
		require.Len(t, batch[i].Findings, 1)
		assert.Equal(t, "Object=", batch[i].Findings[0].Keyword)
	}
}

func TestStreamClosesResults(t *testing.T) {
	results := make(chan scanner.FileResult, 4)
	newScanner(t).Stream(context.Background(), results,
		scanner.BytesSource("a", []byte("MSComctlLib.ListView")),
		scanner.BytesSource("b", nil))

	var names []string
	for r := range results {
		names = append(names, r.FileName)
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestScanFileSource(t *testing.T) {
	dir := t.TempDir()
	hit := filepath.Join(dir, "form.frm")
	require.NoError(t, os.WriteFile(hit, []byte("Object = \"{831FDD16}#2.0#0\"; \"MSCOMCTL.OCX\"\nBegin MSComctlLib.ListView lv\n"), 0644))

	batch := newScanner(t).Scan(context.Background(),
		scanner.FileSource(hit),
		scanner.FileSource(filepath.Join(dir, "missing.txt")),
		scanner.FileSource(dir))

	require.Len(t, batch, 3)
	require.Len(t, batch[0].Findings, 1)
	assert.Equal(t, "MSComctlLib", batch[0].Findings[0].Keyword)
	assert.Equal(t, "Failed to read file content", batch[1].Error)
	assert.Equal(t, "Failed to read file content", batch[2].Error)
}

func TestScanSniffsBinaryContent(t *testing.T) {
	png := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("ActiveX")...)

	batch := newScanner(t).Scan(context.Background(),
		scanner.BytesSource("image.png", png),
		scanner.BytesSource("plain.txt", []byte("ActiveX")))

	require.Len(t, batch, 2)
	assert.Equal(t, "image/png", batch[0].MIME)
	assert.Len(t, batch[0].Findings, 1)
	assert.Empty(t, batch[1].MIME)
}

func TestScanHitContext(t *testing.T) {
	s := newScanner(t, scanner.HitContext(2))
	batch := s.Scan(context.Background(), scanner.BytesSource("a", []byte("0123ActiveX4567")))
	require.Len(t, batch[0].Findings, 1)
	assert.Equal(t, "23ActiveX45", batch[0].Findings[0].Snippet)
}

func TestNewScannerOptionErrors(t *testing.T) {
	for _, opt := range []scanner.Option{
		scanner.SizeLimit(-1),
		scanner.HitContext(-1),
		scanner.ReadTimeout(-time.Second),
		scanner.Parallelism(0),
	} {
		_, err := scanner.NewScanner(keywords.Default(), opt)
		assert.Error(t, err)
	}
}

func TestBatchLengthMatchesInput(t *testing.T) {
	s := newScanner(t)
	for n := 0; n < 5; n++ {
		var sources []scanner.Source
		for i := 0; i < n; i++ {
			sources = append(sources, scanner.BytesSource(fmt.Sprintf("file-%d", i), []byte("VBComponent")))
		}
		batch := s.Scan(context.Background(), sources...)
		require.Len(t, batch, n)
		for i := range sources {
			assert.Equal(t, sources[i].Name(), batch[i].FileName)
		}
		assert.Equal(t, n, batch.TotalFindings())
	}
}
