package llm

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/goods-receipt/constants"
)

// ReadAsDataURL inlines an image for vision requests, refusing files above the size gate.
func ReadAsDataURL(path string) (string, string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if st.Size() > int64(constants.MaxVisionMBDefault)*1024*1024 {
		return "", "", fmt.Errorf("image %s exceeds %d MB", filepath.Base(path), constants.MaxVisionMBDefault)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		case "tif", "tiff":
			mt = "image/tiff"
		default:
			mt = "application/octet-stream"
		}
	}
	data := base64.StdEncoding.EncodeToString(b)
	return "data:" + mt + ";base64," + data, mt, nil
}
