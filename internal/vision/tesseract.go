package vision

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/kbinani/screenshot"
	"github.com/otiai10/gosseract/v2"
)

// Tesseract screenshots a display and reads it with tesseract. The image is
// turned to grayscale and inverted first, which reads much better on dark
// themes.
type Tesseract struct {
	Display  int
	Language string
}

func NewTesseract(display int, language string) *Tesseract {
	if language == "" {
		language = "eng"
	}
	return &Tesseract{Display: display, Language: language}
}

func (t *Tesseract) CaptureText(ctx context.Context) (string, error) {
	if n := screenshot.NumActiveDisplays(); t.Display >= n {
		return "", fmt.Errorf("display %d not active (%d displays)", t.Display, n)
	}

	img, err := screenshot.CaptureDisplay(t.Display)
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	prepared := imaging.Invert(imaging.Grayscale(img))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, prepared, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode screenshot: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.Language); err != nil {
		return "", fmt.Errorf("ocr language: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("ocr image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("ocr: %w", err)
	}

	return strings.ToLower(text), nil
}
