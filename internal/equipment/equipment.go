package equipment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/gymvoice/internal/model"
)

var ErrIdentificationFailed = errors.New("could not identify the equipment")

const instruction = "Identify this gym equipment. Return ONLY the common name of the machine or exercise station. Do not add punctuation."

type Identifier struct {
	model model.Capability
}

func NewIdentifier(m model.Capability) *Identifier {
	return &Identifier{model: m}
}

// Identify returns a free-text equipment label. The label is advisory context for the
// next parse only.
func (i *Identifier) Identify(ctx context.Context, image []byte, mimeType string) (string, error) {
	if len(image) == 0 {
		return "", ErrIdentificationFailed
	}
	text, err := i.model.DescribeImage(ctx, model.ImageRequest{
		Image:       image,
		MimeType:    mimeType,
		Instruction: instruction,
	})
	if err != nil {
		slog.Error("equipment identification failed", "error", err, "mime_type", mimeType, "image_bytes", len(image))
		return "", fmt.Errorf("%w: %v", ErrIdentificationFailed, err)
	}
	label := strings.TrimSpace(text)
	if label == "" {
		return "", ErrIdentificationFailed
	}
	return label, nil
}
