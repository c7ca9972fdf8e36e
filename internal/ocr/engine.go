package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"sync"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/obvix/internal/session"
	"github.com/ironsheep/obvix/internal/vision"
)

// Options configures an Engine.
type Options struct {
	// Language is a Tesseract language code such as "eng" or "eng+deu".
	Language string
	// TessdataPrefix overrides the directory holding *.traineddata.
	TessdataPrefix string
	// SkipBlank makes Detect return no results, without running
	// Tesseract, for frames TextRegions finds no text in.
	SkipBlank bool
}

// Page is the result of recognising one image.
type Page struct {
	// Text is the recognised text with Tesseract's line breaks.
	Text  string
	Words []session.Word
}

// Engine runs Tesseract on images. It is safe for concurrent use; calls
// are serialised.
type Engine struct {
	mu     sync.Mutex
	client *gosseract.Client
	opts   Options
}

var _ vision.Detector = (*Engine)(nil)

// DefaultLanguage is used when Options.Language is empty.
const DefaultLanguage = "eng"

// NewEngine creates an engine.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Language == "" {
		opts.Language = DefaultLanguage
	}

	client := gosseract.NewClient()
	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(strings.Split(opts.Language, "+")...); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}
	return &Engine{client: client, opts: opts}, nil
}

// Recognize returns the text and words found in img.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, Preprocess(img)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	scale := upscaleFactor(img.Bounds())

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	text, err := e.client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	page := &Page{Text: strings.TrimSpace(text), Words: []session.Word{}}
	boxes, err := e.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		// Text without boxes is still useful.
		return page, nil
	}

	origin := img.Bounds().Min
	for _, box := range boxes {
		word := strings.TrimSpace(box.Word)
		if word == "" {
			continue
		}
		page.Words = append(page.Words, session.Word{
			Text:       word,
			Confidence: box.Confidence,
			BBox: session.BBox{
				X0: origin.X + box.Box.Min.X/scale,
				Y0: origin.Y + box.Box.Min.Y/scale,
				X1: origin.X + box.Box.Max.X/scale,
				Y1: origin.Y + box.Box.Max.Y/scale,
			},
		})
	}
	return page, nil
}

// Detect implements vision.Detector. Each word becomes a result whose
// label is the word and whose score is its confidence over 100.
func (e *Engine) Detect(ctx context.Context, img image.Image) ([]vision.Result, error) {
	if e.opts.SkipBlank && len(TextRegions(img, DefaultRegionConfidence)) == 0 {
		return nil, nil
	}

	page, err := e.Recognize(ctx, img)
	if err != nil {
		return nil, err
	}
	results := make([]vision.Result, len(page.Words))
	for i, w := range page.Words {
		results[i] = vision.Result{
			Label: w.Text,
			Score: w.Confidence / 100,
			Box:   image.Rect(w.BBox.X0, w.BBox.Y0, w.BBox.X1, w.BBox.Y1),
		}
	}
	return results, nil
}

// Close releases the Tesseract client.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.client.Close()
}
