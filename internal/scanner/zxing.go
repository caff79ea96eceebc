package scanner

import (
	"errors"
	"slices"

	zxinggo "github.com/ericlevine/zxinggo"
	"github.com/ericlevine/zxinggo/binarizer"
	"github.com/ericlevine/zxinggo/oned"
	"github.com/ericlevine/zxinggo/qrcode"
)

// ZXingDecoder implements Decoder with the pure Go ZXing port. Both strategies
// run with the try-harder hint.
type ZXingDecoder struct{}

// NewZXingDecoder creates a decoder backed by zxinggo.
func NewZXingDecoder() *ZXingDecoder {
	return &ZXingDecoder{}
}

// DecodeMatrix looks for a QR code.
func (d *ZXingDecoder) DecodeMatrix(img GrayImage) (string, bool, error) {
	opts := &zxinggo.DecodeOptions{
		TryHarder:       true,
		PossibleFormats: []zxinggo.Format{zxinggo.FormatQRCode},
	}

	result, err := qrcode.NewReader().Decode(bitmap(img), opts)
	if err != nil {
		return "", false, notFoundAsAbsent(err)
	}
	return result.Text, true, nil
}

// DecodeLinear looks for a 1D barcode restricted to allowed.
func (d *ZXingDecoder) DecodeLinear(img GrayImage, allowed []Symbology) (string, Symbology, bool, error) {
	formats := make([]zxinggo.Format, 0, len(allowed))
	for _, s := range allowed {
		if f, ok := symbologyFormats[s]; ok {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return "", 0, false, nil
	}

	opts := &zxinggo.DecodeOptions{
		TryHarder:       true,
		PossibleFormats: formats,
	}

	result, err := oned.NewMultiFormatOneDReader(opts).Decode(bitmap(img), opts)
	if err != nil {
		return "", 0, false, notFoundAsAbsent(err)
	}

	text := result.Text
	sym, ok := formatSymbologies[result.Format]
	if !ok && result.Format == zxinggo.FormatUPCA {
		// UPC-A is EAN-13 with a leading zero.
		sym, ok, text = EAN13, true, "0"+text
	}
	if !ok || !slices.Contains(allowed, sym) {
		return "", 0, false, nil
	}
	return text, sym, true, nil
}

var symbologyFormats = map[Symbology]zxinggo.Format{
	EAN13:   zxinggo.FormatEAN13,
	EAN8:    zxinggo.FormatEAN8,
	Code128: zxinggo.FormatCode128,
	Code39:  zxinggo.FormatCode39,
}

var formatSymbologies = map[zxinggo.Format]Symbology{
	zxinggo.FormatEAN13:   EAN13,
	zxinggo.FormatEAN8:    EAN8,
	zxinggo.FormatCode128: Code128,
	zxinggo.FormatCode39:  Code39,
}

func bitmap(img GrayImage) *zxinggo.BinaryBitmap {
	source := zxinggo.NewGrayImageLuminanceSource(img.Gray())
	return zxinggo.NewBinaryBitmap(binarizer.NewHybrid(source))
}

// notFoundAsAbsent maps the "nothing decodable here" family of errors to nil.
func notFoundAsAbsent(err error) error {
	if errors.Is(err, zxinggo.ErrNotFound) || errors.Is(err, zxinggo.ErrChecksum) || errors.Is(err, zxinggo.ErrFormat) {
		return nil
	}
	return err
}
