package translit

import (
	"context"
	"strings"

	"github.com/arunsworld/nursery"
	"github.com/charmbracelet/log"

	"karolbroda.com/lyricast/internal/logging"
	"karolbroda.com/lyricast/internal/lyrics"
)

type Converter interface {
	Convert(ctx context.Context, text string, title string, artist string) (string, error)
}

type BatchConverter interface {
	ConvertBatch(ctx context.Context, lines []string) ([]BatchResult, error)
}

const defaultMaxConcurrent = 8

type Options struct {
	Script *lyrics.Script
	Logger *log.Logger
	// MaxConcurrent bounds in-flight requests during a per-line batch.
	MaxConcurrent int
	// UseBatchEndpoint sends a whole lyric set in one request when the converter supports it.
	UseBatchEndpoint bool
}

// Translator is the best-effort layer over a Converter: every failure degrades to
// the original text, and lines without target-script characters never leave the process.
type Translator struct {
	conv          Converter
	script        *lyrics.Script
	log           *log.Logger
	maxConcurrent int
	batchEndpoint bool
}

func New(conv Converter, opts Options) *Translator {
	script := opts.Script
	if script == nil {
		script = lyrics.Japanese
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}

	return &Translator{
		conv:          conv,
		script:        script,
		log:           logging.OrDiscard(opts.Logger),
		maxConcurrent: maxConcurrent,
		batchEndpoint: opts.UseBatchEndpoint,
	}
}

// NeedsConversion reports whether text would be sent to the remote service.
func (t *Translator) NeedsConversion(text string) bool {
	return strings.TrimSpace(text) != "" && t.script.Contains(text)
}

// Line converts a single lyric line, returning it unchanged on any fault.
func (t *Translator) Line(ctx context.Context, text string, title string, artist string) string {
	if !t.NeedsConversion(text) {
		return text
	}

	converted, err := t.conv.Convert(ctx, text, title, artist)
	if err != nil {
		if ctx.Err() == nil {
			t.log.Warn("transliteration failed, keeping original", "err", err)
		}
		return text
	}

	if strings.TrimSpace(converted) == "" {
		return text
	}

	return converted
}

// Batch converts every eligible line of a synced set, preserving order and offsets.
// A failed line keeps its original text. If ctx is cancelled all outstanding
// requests are abandoned and ctx.Err() is returned with no result.
func (t *Translator) Batch(ctx context.Context, set lyrics.LyricSet, title string, artist string) (lyrics.LyricSet, error) {
	if !set.IsSynced() {
		return set, nil
	}

	out := make([]lyrics.TimedLine, len(set.Lines))
	copy(out, set.Lines)

	var pending []int
	for i, line := range out {
		if t.NeedsConversion(line.Text) {
			pending = append(pending, i)
		}
	}

	if len(pending) == 0 {
		return set, nil
	}

	t.log.Debug("converting lyric lines", "lines", len(pending), "track", title)

	var err error
	if batcher, ok := t.conv.(BatchConverter); ok && t.batchEndpoint {
		err = t.viaBatchEndpoint(ctx, batcher, out, pending)
	} else {
		err = t.fanOut(ctx, out, pending, title, artist)
	}
	if err != nil {
		return lyrics.LyricSet{}, err
	}

	if err := ctx.Err(); err != nil {
		return lyrics.LyricSet{}, err
	}

	return set.WithLines(out), nil
}

func (t *Translator) fanOut(ctx context.Context, out []lyrics.TimedLine, pending []int, title string, artist string) error {
	sem := make(chan struct{}, t.maxConcurrent)
	jobs := make([]nursery.ConcurrentJob, 0, len(pending))

	for _, index := range pending {
		jobs = append(jobs, func(ctx context.Context, _ chan error) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			out[index].Text = t.Line(ctx, out[index].Text, title, artist)
		})
	}

	return nursery.RunConcurrentlyWithContext(ctx, jobs...)
}

func (t *Translator) viaBatchEndpoint(ctx context.Context, batcher BatchConverter, out []lyrics.TimedLine, pending []int) error {
	texts := make([]string, len(pending))
	for k, index := range pending {
		texts[k] = out[index].Text
	}

	results, err := batcher.ConvertBatch(ctx, texts)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		t.log.Warn("batch transliteration failed, keeping originals", "err", err)
		return nil
	}
	if len(results) != len(pending) {
		t.log.Warn("batch transliteration size mismatch, keeping originals", "want", len(pending), "got", len(results))
		return nil
	}

	for k, index := range pending {
		if converted := results[k].Romaji; strings.TrimSpace(converted) != "" {
			out[index].Text = converted
		}
	}

	return nil
}
