package ocr

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// minOCRWidth is the width below which scans are upscaled before recognition.
const minOCRWidth = 1800

// Preprocess writes a grayscale, contrast-boosted, sharpened copy of the page
// into dir and returns its path.
func Preprocess(imagePath, dir string) (string, error) {
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	if w := img.Bounds().Dx(); w > 0 && w < minOCRWidth {
		img = imaging.Resize(img, w*2, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)
	gray = imaging.AdjustContrast(gray, 25)
	gray = imaging.Sharpen(gray, 1.0)

	base := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	out := filepath.Join(dir, base+"-prep.png")
	if err := imaging.Save(gray, out); err != nil {
		return "", fmt.Errorf("save preprocessed: %w", err)
	}
	return out, nil
}
