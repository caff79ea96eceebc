package scanner

import "fmt"

// Decoder is the pixel-level decoding capability. A call that runs cleanly but
// finds nothing returns ok == false and a nil error.
type Decoder interface {
	DecodeMatrix(img GrayImage) (text string, ok bool, err error)
	DecodeLinear(img GrayImage, allowed []Symbology) (text string, sym Symbology, ok bool, err error)
}

// Recognizer tries QR first, then the linear barcode allow-list, and returns
// the first success.
type Recognizer struct {
	decoder     Decoder
	symbologies []Symbology
}

// NewRecognizer creates a Recognizer over decoder. With no symbologies given
// DefaultSymbologies is used.
func NewRecognizer(decoder Decoder, symbologies ...Symbology) *Recognizer {
	if len(symbologies) == 0 {
		symbologies = DefaultSymbologies
	}
	return &Recognizer{decoder: decoder, symbologies: symbologies}
}

// Recognize returns the first code found in img. ok == false with a nil error
// means the image was processed and holds no code. Errors from an individual
// strategy count as that strategy finding nothing; only an image that cannot be
// processed at all is reported as an error.
func (r *Recognizer) Recognize(img GrayImage) (ScanResult, bool, error) {
	if !img.Complete() {
		return ScanResult{}, false, fmt.Errorf("%w: %d pixels for %dx%d", ErrMalformedImage, len(img.Pix), img.Width, img.Height)
	}

	if text, ok, err := r.decoder.DecodeMatrix(img); err == nil && ok {
		return ScanResult{Code: text, Type: QRCode, Symbology: SymbologyQR}, true, nil
	}

	if text, sym, ok, err := r.decoder.DecodeLinear(img, r.symbologies); err == nil && ok {
		return ScanResult{Code: text, Type: Barcode, Symbology: sym}, true, nil
	}

	return ScanResult{}, false, nil
}
