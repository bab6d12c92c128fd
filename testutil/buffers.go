package testutil

import (
	"time"

	"github.com/c360/mediajoin/format"
	"github.com/c360/mediajoin/view"
)

// Gray returns a GRAY8 descriptor
func Gray(w, h int) format.Descriptor {
	return format.Descriptor{Layout: "GRAY8", Width: w, Height: h, Components: 1, ElementSize: 1}
}

// RGB returns an RGB descriptor
func RGB(w, h int) format.Descriptor {
	return format.Descriptor{Layout: "RGB", Width: w, Height: h, Components: 3, ElementSize: 1}
}

// Filled returns a buffer for f with every byte set to v
func Filled(f format.Descriptor, v byte) *view.Buffer {
	n, err := f.ByteLength()
	if err != nil {
		panic(err)
	}
	data := make([]byte, n)
	for i := range data {
		data[i] = v
	}
	return view.NewBuffer(data, f)
}

// Sequential returns a buffer for f whose bytes count up from start
func Sequential(f format.Descriptor, start byte) *view.Buffer {
	buf := Filled(f, 0)
	for i := range buf.Data {
		buf.Data[i] = start + byte(i)
	}
	return buf
}

// At sets the presentation timestamp of buf and returns it
func At(buf *view.Buffer, pts time.Duration) *view.Buffer {
	buf.PTS = pts
	return buf
}
