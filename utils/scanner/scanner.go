package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	filetype "gopkg.in/h2non/filetype.v1"

	"github.com/joelanford/axscan/utils/findings"
	"github.com/joelanford/axscan/utils/keywords"
	"github.com/joelanford/axscan/utils/matcher"
	"github.com/joelanford/axscan/utils/text"
)

const (
	DefaultSizeLimit   int64 = 10 * 1024 * 1024
	DefaultReadTimeout       = 30 * time.Second
)

var (
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	ErrReadFailure       = errors.New("read failure")
	ErrCanceled          = errors.New("scan canceled")
)

const (
	readFailureMessage = "Failed to read file content"
	canceledMessage    = "Scan canceled"
)

type FileResult struct {
	FileName string             `json:"fileName" yaml:"fileName"`
	MIME     string             `json:"mime,omitempty" yaml:"mime,omitempty"`
	Findings []findings.Finding `json:"findings" yaml:"findings"`
	Error    string             `json:"error,omitempty" yaml:"error,omitempty"`

	err error
}

// Err returns the error kind behind Error, or nil for scanned files.
func (r FileResult) Err() error {
	return r.err
}

// Batch holds one result per scanned source, in input order.
type Batch []FileResult

func (b Batch) TotalFindings() int {
	n := 0
	for _, r := range b {
		n += len(r.Findings)
	}
	return n
}

func (b Batch) Safe() bool {
	return b.TotalFindings() == 0
}

type Option func(*Scanner) error

func SizeLimit(bytes int64) Option {
	return func(s *Scanner) error {
		if bytes < 0 {
			return errors.New("error: size limit must be >= 0")
		}
		s.sizeLimit = bytes
		return nil
	}
}

func HitContext(hitContext int) Option {
	return func(s *Scanner) error {
		if hitContext < 0 {
			return errors.New("error: hit context must be >= 0")
		}
		s.extractor = findings.NewExtractor(hitContext)
		return nil
	}
}

// ReadTimeout bounds each source read. Zero disables the timeout.
func ReadTimeout(d time.Duration) Option {
	return func(s *Scanner) error {
		if d < 0 {
			return errors.New("error: read timeout must be >= 0")
		}
		s.readTimeout = d
		return nil
	}
}

func Parallelism(parallelism int) Option {
	return func(s *Scanner) error {
		if parallelism < 1 {
			return errors.New("error: parallelism must be > 0")
		}
		s.parallelism = parallelism
		return nil
	}
}

func Logger(logger *slog.Logger) Option {
	return func(s *Scanner) error {
		if logger != nil {
			s.logger = logger
		}
		return nil
	}
}

type Scanner struct {
	matcher   *matcher.Matcher
	extractor *findings.Extractor

	sizeLimit   int64
	readTimeout time.Duration
	parallelism int
	logger      *slog.Logger
}

func NewScanner(kw *keywords.Keywords, opts ...Option) (*Scanner, error) {
	m, err := matcher.New(kw.Words())
	if err != nil {
		return nil, errors.Wrap(err, "error building keyword matcher")
	}

	s := &Scanner{
		matcher:   m,
		extractor: findings.NewExtractor(findings.DefaultContext),

		sizeLimit:   DefaultSizeLimit,
		readTimeout: DefaultReadTimeout,
		parallelism: 1,
		logger:      slog.New(slog.DiscardHandler),
	}

	for _, o := range opts {
		if err := o(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Scan processes every source and returns the complete batch. It never
// fails: per-file problems are recorded on the file's result.
func (s *Scanner) Scan(ctx context.Context, sources ...Source) Batch {
	results := make(chan FileResult)
	go s.Stream(ctx, results, sources...)

	batch := make(Batch, 0, len(sources))
	for r := range results {
		batch = append(batch, r)
	}
	return batch
}

// Stream sends one result per source on results, in input order, and closes
// results when done. Up to the configured parallelism sources are read and
// scanned at once. Once ctx is done, sources not yet started are reported
// as canceled.
func (s *Scanner) Stream(ctx context.Context, results chan<- FileResult, sources ...Source) {
	defer close(results)

	slots := make([]chan FileResult, len(sources))
	for i := range slots {
		slots[i] = make(chan FileResult, 1)
	}

	work := make(chan int)
	var wg sync.WaitGroup
	wg.Add(s.parallelism)
	for i := 0; i < s.parallelism; i++ {
		go func() {
			defer wg.Done()
			for idx := range work {
				slots[idx] <- s.scanSource(ctx, sources[idx])
			}
		}()
	}

	go func() {
		defer close(work)
		for i := range sources {
			select {
			case <-ctx.Done():
				for j := i; j < len(sources); j++ {
					slots[j] <- canceled(sources[j].Name())
				}
				return
			case work <- i:
			}
		}
	}()

	for i := range slots {
		results <- <-slots[i]
	}
	wg.Wait()
}

func (s *Scanner) scanSource(ctx context.Context, src Source) FileResult {
	name := src.Name()
	log := s.logger.With("file", name)

	if ctx.Err() != nil {
		return canceled(name)
	}

	if size := src.Size(); size > s.sizeLimit {
		log.Warn("skipping file over size limit", "size", size, "limit", s.sizeLimit)
		return FileResult{FileName: name, Error: sizeLimitMessage(s.sizeLimit), err: ErrSizeLimitExceeded}
	}

	start := time.Now()
	data, err := s.read(ctx, src)
	if err == nil {
		var content string
		content, err = text.Decode(data)
		if err == nil {
			t := text.New(content)
			fs := s.extractor.Extract(t, s.matcher.Find(t))
			log.Debug("scanned file", "findings", len(fs), "duration", time.Since(start))
			return FileResult{FileName: name, MIME: sniff(data), Findings: fs}
		}
	}

	if ctx.Err() != nil {
		log.Debug("scan canceled during read", "error", err)
		return canceled(name)
	}
	log.Warn("failed to read file", "error", err)
	return FileResult{FileName: name, Error: readFailureMessage, err: ErrReadFailure}
}

func (s *Scanner) read(ctx context.Context, src Source) ([]byte, error) {
	if s.readTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.readTimeout)
		defer cancel()
	}

	type readResult struct {
		data []byte
		err  error
	}
	done := make(chan readResult, 1)
	go func() {
		data, err := src.Read(ctx)
		done <- readResult{data: data, err: err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "error waiting for file content")
	}
}

func canceled(name string) FileResult {
	return FileResult{FileName: name, Error: canceledMessage, err: ErrCanceled}
}

func sizeLimitMessage(limit int64) string {
	if limit > 0 && limit%(1024*1024) == 0 {
		return fmt.Sprintf("File exceeds %dMB size limit", limit/(1024*1024))
	}
	return fmt.Sprintf("File exceeds %d byte size limit", limit)
}

// sniff reports the content type of recognizable binary formats. Text
// files are not recognized and get an empty type.
func sniff(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return ""
	}
	return kind.MIME.Value
}
