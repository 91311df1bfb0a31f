package sticker

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// PackID identifies the sticker pack in the metadata block.
const PackID = "com.bot.stickers"

// Metadata is the pack information chat clients show under a sticker.
type Metadata struct {
	PackName  string
	Publisher string
}

// tiffHeader is a little-endian TIFF header with a single IFD entry of tag
// 0x5741, type UNDEFINED, whose value starts at offset 22. The four count
// bytes at offset 14 are filled in by BuildExif.
var tiffHeader = []byte{
	0x49, 0x49, 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00,
	0x01, 0x00, 0x41, 0x57, 0x07, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x16, 0x00, 0x00, 0x00,
}

// BuildExif renders the EXIF payload carrying the pack metadata as JSON.
func BuildExif(meta Metadata) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{
		"sticker-pack-id":        PackID,
		"sticker-pack-name":      meta.PackName,
		"sticker-pack-publisher": meta.Publisher,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sticker metadata: %w", err)
	}

	exif := make([]byte, len(tiffHeader), len(tiffHeader)+len(payload))
	copy(exif, tiffHeader)
	binary.LittleEndian.PutUint32(exif[14:18], uint32(len(payload)))

	return append(exif, payload...), nil
}

var errNotWebP = errors.New("not a webp file")

const (
	flagAnimation = 0x02
	flagExif      = 0x08
	flagAlpha     = 0x10
)

type chunk struct {
	fourCC string
	data   []byte
}

// InjectExif returns a copy of a WebP file that carries exif as its EXIF
// chunk. Simple (VP8/VP8L) files are upgraded to the extended format.
func InjectExif(webp []byte, exif []byte) ([]byte, error) {
	chunks, err := parseChunks(webp)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks", errNotWebP)
	}

	if chunks[0].fourCC != "VP8X" {
		header, err := extendedHeader(chunks[0])
		if err != nil {
			return nil, err
		}
		chunks = append([]chunk{header}, chunks...)
	}

	kept := chunks[:0]
	for _, c := range chunks {
		if c.fourCC != "EXIF" {
			kept = append(kept, c)
		}
	}
	chunks = append(kept, chunk{fourCC: "EXIF", data: exif})

	vp8x := append([]byte(nil), chunks[0].data...)
	if len(vp8x) < 10 {
		return nil, fmt.Errorf("%w: short VP8X chunk", errNotWebP)
	}
	vp8x[0] |= flagExif
	chunks[0].data = vp8x

	return encodeChunks(chunks), nil
}

// ReadExif returns the EXIF chunk of a WebP file, or nil.
func ReadExif(webp []byte) ([]byte, error) {
	chunks, err := parseChunks(webp)
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		if c.fourCC == "EXIF" {
			return c.data, nil
		}
	}

	return nil, nil
}

func parseChunks(webp []byte) ([]chunk, error) {
	if len(webp) < 12 || string(webp[0:4]) != "RIFF" || string(webp[8:12]) != "WEBP" {
		return nil, errNotWebP
	}

	end := min(len(webp), 8+int(binary.LittleEndian.Uint32(webp[4:8])))
	var chunks []chunk
	for offset := 12; offset+8 <= end; {
		fourCC := string(webp[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(webp[offset+4 : offset+8]))
		start := offset + 8
		if size < 0 || start+size > end {
			return nil, fmt.Errorf("%w: chunk %s overruns file", errNotWebP, fourCC)
		}

		chunks = append(chunks, chunk{fourCC: fourCC, data: webp[start : start+size]})
		offset = start + size + size%2
	}

	return chunks, nil
}

func encodeChunks(chunks []chunk) []byte {
	var body bytes.Buffer
	body.WriteString("WEBP")
	for _, c := range chunks {
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(c.data)))
		body.WriteString(c.fourCC)
		body.Write(size[:])
		body.Write(c.data)
		if len(c.data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	out := make([]byte, 8, 8+body.Len())
	copy(out, "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(body.Len()))

	return append(out, body.Bytes()...)
}

// extendedHeader builds a VP8X chunk for a simple-format bitstream.
func extendedHeader(image chunk) (chunk, error) {
	var width, height int
	var flags byte

	switch image.fourCC {
	case "VP8 ":
		// Key frame: 3-byte frame tag, 3-byte start code, 14-bit dimensions.
		if len(image.data) < 10 || !bytes.Equal(image.data[3:6], []byte{0x9d, 0x01, 0x2a}) {
			return chunk{}, fmt.Errorf("%w: bad VP8 key frame", errNotWebP)
		}
		width = int(binary.LittleEndian.Uint16(image.data[6:8]) & 0x3fff)
		height = int(binary.LittleEndian.Uint16(image.data[8:10]) & 0x3fff)
	case "VP8L":
		if len(image.data) < 5 || image.data[0] != 0x2f {
			return chunk{}, fmt.Errorf("%w: bad VP8L signature", errNotWebP)
		}
		bits := binary.LittleEndian.Uint32(image.data[1:5])
		width = int(bits&0x3fff) + 1
		height = int((bits>>14)&0x3fff) + 1
		if bits>>28&1 == 1 {
			flags |= flagAlpha
		}
	default:
		return chunk{}, fmt.Errorf("%w: unexpected first chunk %q", errNotWebP, image.fourCC)
	}
	if width == 0 || height == 0 {
		return chunk{}, fmt.Errorf("%w: zero canvas size", errNotWebP)
	}

	data := make([]byte, 10)
	data[0] = flags
	putUint24(data[4:7], uint32(width-1))
	putUint24(data[7:10], uint32(height-1))

	return chunk{fourCC: "VP8X", data: data}, nil
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// isAnimated reports whether a WebP file declares animation.
func isAnimated(webp []byte) bool {
	chunks, err := parseChunks(webp)
	if err != nil || len(chunks) == 0 || chunks[0].fourCC != "VP8X" || len(chunks[0].data) == 0 {
		return false
	}

	return chunks[0].data[0]&flagAnimation != 0
}
