package scanner

// YUYVToGray extracts the luminance bytes of a packed YUYV frame in raster order.
// Y samples sit at even offsets, so pixel i is data[2*i]. A short frame yields a
// short image: extraction stops at the end of data without padding.
func YUYVToGray(data []byte, width, height int) GrayImage {
	pixels := width * height
	if pixels < 0 {
		pixels = 0
	}
	if avail := len(data) / 2; avail < pixels {
		pixels = avail
	}

	gray := make([]byte, pixels)
	for i := range gray {
		gray[i] = data[i*2]
	}

	return GrayImage{Pix: gray, Width: width, Height: height}
}

// Normalize converts a raw frame under the given format into a gray image.
func Normalize(frame []byte, format CaptureFormat) GrayImage {
	switch format.Encoding {
	case EncodingYUYV:
		return YUYVToGray(frame, format.Width, format.Height)
	default:
		return GrayImage{Width: format.Width, Height: format.Height}
	}
}
