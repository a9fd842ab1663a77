package web

import (
	"bytes"
	"image/png"
	"log"
	"net/http"

	"github.com/fogleman/gg"

	"github.com/sweeney/shutterd/internal/shutter"
)

const (
	imageWidth  = 160
	imageHeight = 240
	frameInset  = 10
)

func (s *Server) handlePNG(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	c := drawShutter(snap.Shutter)

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.Image()); err != nil {
		log.Printf("web: encode png: %v", err)
		http.Error(w, "image encoding failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

// drawShutter renders the window frame with the curtain lowered to the
// estimated position. An unknown position is drawn as a hatched frame.
func drawShutter(s shutter.Snapshot) *gg.Context {
	c := gg.NewContext(imageWidth, imageHeight)
	c.SetRGB(1, 1, 1)
	c.Clear()

	x, y := float64(frameInset), float64(frameInset)
	w, h := float64(imageWidth-2*frameInset), float64(imageHeight-2*frameInset-20)

	// Glass.
	c.SetRGB(0.75, 0.87, 1)
	c.DrawRectangle(x, y, w, h)
	c.Fill()

	c.DrawRectangle(x, y, w, h)
	c.Clip()
	pct, known := s.Position.Percent()
	if known {
		closed := h * (100 - pct) / 100
		c.SetRGB(0.35, 0.35, 0.4)
		c.DrawRectangle(x, y, w, closed)
		c.Fill()
		c.SetRGB(0.2, 0.2, 0.2)
		c.SetLineWidth(1)
		for slat := y + 8; slat < y+closed; slat += 8 {
			c.DrawLine(x, slat, x+w, slat)
		}
		c.Stroke()
	} else {
		c.SetRGB(1, 0.6, 0)
		c.SetLineWidth(2)
		for off := -h; off < w; off += 16 {
			c.DrawLine(x+off, y+h, x+off+h, y)
		}
		c.Stroke()
	}
	c.ResetClip()

	// Frame.
	c.SetRGB(0, 0, 0)
	c.SetLineWidth(3)
	c.DrawRectangle(x, y, w, h)
	c.Stroke()

	c.DrawStringAnchored(caption(s), float64(imageWidth)/2, float64(imageHeight)-12, 0.5, 0.5)
	return c
}

func caption(s shutter.Snapshot) string {
	label := s.Position.String()
	if s.Position.Known() {
		label += "%"
	}
	switch s.Motor {
	case shutter.MotorMovingUp:
		label += " UP"
	case shutter.MotorMovingDown:
		label += " DOWN"
	case shutter.MotorInconsistent:
		label += " !"
	}
	return label
}
