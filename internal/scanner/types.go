package scanner

import (
	"fmt"
	"image"
)

// PixelEncoding identifies the packed layout the capture device delivers.
type PixelEncoding int

const (
	// EncodingYUYV is packed 4:2:2, two pixels per four bytes: Y0 U Y1 V.
	EncodingYUYV PixelEncoding = iota
)

// FourCC returns the V4L2 four character code of the encoding.
func (e PixelEncoding) FourCC() string {
	switch e {
	case EncodingYUYV:
		return "YUYV"
	default:
		return "????"
	}
}

func (e PixelEncoding) String() string {
	return e.FourCC()
}

// BytesPerPixel returns how many raw bytes one pixel occupies on average.
func (e PixelEncoding) BytesPerPixel() int {
	switch e {
	case EncodingYUYV:
		return 2
	default:
		return 0
	}
}

// CaptureFormat is the negotiated frame geometry of the capture device.
type CaptureFormat struct {
	Width    int
	Height   int
	Encoding PixelEncoding
}

// FrameSize returns the number of bytes a complete frame holds.
func (f CaptureFormat) FrameSize() int {
	return f.Width * f.Height * f.Encoding.BytesPerPixel()
}

func (f CaptureFormat) String() string {
	return fmt.Sprintf("%dx%d %s", f.Width, f.Height, f.Encoding)
}

// GrayImage is an 8-bit luminance image. Pix may be shorter than Width*Height
// when the source frame was truncated.
type GrayImage struct {
	Pix    []byte
	Width  int
	Height int
}

// Complete reports whether the image holds exactly Width*Height pixels.
func (g GrayImage) Complete() bool {
	return g.Width > 0 && g.Height > 0 && len(g.Pix) == g.Width*g.Height
}

// Gray wraps the pixels as an *image.Gray without copying. Only valid for complete images.
func (g GrayImage) Gray() *image.Gray {
	return &image.Gray{
		Pix:    g.Pix,
		Stride: g.Width,
		Rect:   image.Rect(0, 0, g.Width, g.Height),
	}
}

// CodeType distinguishes matrix codes from linear barcodes.
type CodeType int

const (
	Barcode CodeType = iota
	QRCode
)

// String returns the label used on the wire.
func (t CodeType) String() string {
	switch t {
	case Barcode:
		return "BARCODE"
	case QRCode:
		return "QR"
	default:
		return "UNKNOWN"
	}
}

// Symbology is a specific barcode encoding standard.
type Symbology int

const (
	SymbologyQR Symbology = iota
	EAN13
	EAN8
	Code128
	Code39
)

func (s Symbology) String() string {
	switch s {
	case SymbologyQR:
		return "QR_CODE"
	case EAN13:
		return "EAN_13"
	case EAN8:
		return "EAN_8"
	case Code128:
		return "CODE_128"
	case Code39:
		return "CODE_39"
	default:
		return "UNKNOWN"
	}
}

// DefaultSymbologies is the linear barcode allow-list tried after QR.
var DefaultSymbologies = []Symbology{EAN13, EAN8, Code128, Code39}

// ScanResult is one recognized code.
type ScanResult struct {
	Code      string
	Type      CodeType
	Symbology Symbology
}

func (r ScanResult) String() string {
	return fmt.Sprintf("[%s] %s", r.Type, r.Code)
}

// State is the phase the scan loop is currently in.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateRecognizing
	StateEmitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateRecognizing:
		return "recognizing"
	case StateEmitting:
		return "emitting"
	default:
		return "unknown"
	}
}
