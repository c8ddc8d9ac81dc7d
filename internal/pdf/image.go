package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"sort"
)

// ImageAsset is an image XObject found in a page's resources. Data holds the
// stream bytes after FlateDecode; DCT (JPEG) data is kept encoded so it can
// be hashed and decoded as-is.
type ImageAsset struct {
	Page             int
	ResourceName     string
	Width            int
	Height           int
	BitsPerComponent int
	ColorSpace       string
	Filters          []string
	Data             []byte
}

// Images returns the page's embedded image XObjects sorted by resource name,
// so enumeration order is stable across parses.
func (p *Page) Images() []ImageAsset {
	if p.resources == nil {
		return nil
	}
	xobjects := p.doc.resolveDict(p.resources["XObject"])
	if xobjects == nil {
		return nil
	}
	names := make([]string, 0, len(xobjects))
	for name := range xobjects {
		names = append(names, string(name))
	}
	sort.Strings(names)

	var assets []ImageAsset
	for _, name := range names {
		obj := p.doc.resolve(xobjects[Name(name)])
		s, ok := obj.(Stream)
		if !ok {
			continue
		}
		if subtype, _ := s.Dict.name("Subtype"); subtype != "Image" {
			continue
		}
		data, filters, ok := p.doc.streamData(s)
		if !ok {
			continue
		}
		width, _ := s.Dict.integer("Width")
		height, _ := s.Dict.integer("Height")
		bpc, _ := s.Dict.integer("BitsPerComponent")
		cs, _ := s.Dict.name("ColorSpace")
		assets = append(assets, ImageAsset{
			Page:             p.index,
			ResourceName:     name,
			Width:            width,
			Height:           height,
			BitsPerComponent: bpc,
			ColorSpace:       string(cs),
			Filters:          filters,
			Data:             data,
		})
	}
	return assets
}

// ToImage converts the asset into a standard image.Image.
func (a ImageAsset) ToImage() (image.Image, error) {
	if len(a.Data) == 0 {
		return nil, errors.New("image data is empty")
	}
	for _, f := range a.Filters {
		if f == "DCTDecode" {
			img, err := jpeg.Decode(bytes.NewReader(a.Data))
			if err != nil {
				return nil, fmt.Errorf("decode DCT image: %w", err)
			}
			return img, nil
		}
	}
	pixels := a.Width * a.Height
	if pixels <= 0 {
		return nil, errors.New("invalid image dimensions")
	}
	switch {
	case len(a.Data) == pixels: // 8-bit gray
		return &image.Gray{Pix: a.Data, Stride: a.Width, Rect: image.Rect(0, 0, a.Width, a.Height)}, nil
	case len(a.Data) == pixels*3: // 8-bit RGB
		out := image.NewRGBA(image.Rect(0, 0, a.Width, a.Height))
		for i := 0; i < pixels; i++ {
			out.Pix[i*4+0] = a.Data[i*3+0]
			out.Pix[i*4+1] = a.Data[i*3+1]
			out.Pix[i*4+2] = a.Data[i*3+2]
			out.Pix[i*4+3] = 0xFF
		}
		return out, nil
	case len(a.Data) == pixels*4:
		return &image.RGBA{Pix: a.Data, Stride: a.Width * 4, Rect: image.Rect(0, 0, a.Width, a.Height)}, nil
	}
	return nil, fmt.Errorf("unsupported image layout: %d bytes for %dx%d", len(a.Data), a.Width, a.Height)
}

// ToPNG encodes the asset as PNG for OCR submission.
func (a ImageAsset) ToPNG() ([]byte, error) {
	img, err := a.ToImage()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
