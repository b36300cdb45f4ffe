package detections

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

var errEmptyImage = errors.New("image has zero width or height")

// Decode turns an uploaded PNG/JPEG buffer into an opaque RGB image.
// The result always starts at the origin and never shares memory with data.
func Decode(data []byte) (*image.NRGBA, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited is Decode with a bound on the pixel count declared in the
// image header. The header is checked before any pixel buffer is allocated.
// maxPixels <= 0 disables the check.
func DecodeLimited(data []byte, maxPixels int64) (*image.NRGBA, error) {
	if len(data) == 0 {
		return nil, newDecodeError("failed to decode image", errEmptyImage)
	}

	if maxPixels > 0 {
		hdr, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, newDecodeError("failed to decode image", err)
		}
		if pixels := int64(hdr.Width) * int64(hdr.Height); pixels > maxPixels {
			return nil, newDecodeError("failed to decode image",
				fmt.Errorf("%dx%d exceeds the %d pixel limit", hdr.Width, hdr.Height, maxPixels))
		}
	}

	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, newDecodeError("failed to decode image", err)
	}
	if src.Bounds().Empty() {
		return nil, newDecodeError("failed to decode image", errEmptyImage)
	}

	img := imaging.Clone(src)
	dropAlpha(img)
	return img, nil
}

// Encode serializes img. Quality applies to JPEG only; values <= 0 use DefaultJPEGQuality.
func Encode(img *image.NRGBA, format imaging.Format, quality int) ([]byte, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, newEncodeError("failed to encode image", errEmptyImage)
	}
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, imaging.JPEGQuality(quality)); err != nil {
		return nil, newEncodeError("failed to encode image", err)
	}
	return buf.Bytes(), nil
}

// EncodeJPEG is Encode with the transport format.
func EncodeJPEG(img *image.NRGBA, quality int) ([]byte, error) {
	return Encode(img, imaging.JPEG, quality)
}

// dropAlpha discards transparency the same way a 3-channel decoder would:
// color values are kept and every pixel becomes opaque.
func dropAlpha(img *image.NRGBA) {
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}
}
