package library

// ImageFormat describes one supported cover/thumbnail format. A single
// table drives both the downloader's thumbnail selection and the HTTP
// layer's format probing, so the two can never disagree.
type ImageFormat struct {
	Ext  string // without leading dot
	MIME string
	Rank int // lower is preferred
}

// ImageFormats in probe order: webp, jpg, jpeg, png.
var ImageFormats = []ImageFormat{
	{Ext: "webp", MIME: "image/webp", Rank: 0},
	{Ext: "jpg", MIME: "image/jpeg", Rank: 1},
	{Ext: "jpeg", MIME: "image/jpeg", Rank: 2},
	{Ext: "png", MIME: "image/png", Rank: 3},
}

// MIMEForExt returns the content type for a supported image extension,
// or empty string when unknown.
func MIMEForExt(ext string) string {
	for _, f := range ImageFormats {
		if f.Ext == ext {
			return f.MIME
		}
	}
	return ""
}

// DetectImageExt sniffs JPEG/PNG/WebP magic bytes and returns the matching
// extension, or empty string when the data is not a recognizable image.
// Providers sometimes lie in Content-Type, so callers trust only the bytes.
func DetectImageExt(data []byte) string {
	switch {
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpg"
	case len(data) >= 8 &&
		data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G' &&
		data[4] == 0x0D && data[5] == 0x0A && data[6] == 0x1A && data[7] == 0x0A:
		return "png"
	case len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P':
		return "webp"
	default:
		return ""
	}
}
