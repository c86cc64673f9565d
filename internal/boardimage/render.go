// Package boardimage renders a game board into a shareable PNG. The board
// is built as an SVG and rasterized, with a text caption drawn underneath.
package boardimage

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/nreyes-dev/ttt-cli/internal/domain"
)

const (
	cellSize      = 96
	boardSize     = cellSize * domain.BoardSize
	margin        = 24
	captionHeight = 32
)

// Palette mirrors the web UI: dark slate background, green human marks,
// red CPU marks.
const (
	colorBackground = "#0f172a"
	colorGrid       = "#334155"
	colorHuman      = "#34d399"
	colorCPU        = "#fb7185"
)

// RenderPNG draws the full board of g. The human's marks are colored
// differently from the CPU's, keyed off HumanPlaysAs.
func RenderPNG(ctx context.Context, g *domain.GameDetail) ([]byte, error) {
	if g == nil {
		return nil, fmt.Errorf("game detail is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	svg := buildBoardSVG(g)
	icon, err := oksvg.ReadIconStream(strings.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("parse board svg: %w", err)
	}

	totalW := boardSize + margin*2
	totalH := boardSize + margin*2 + captionHeight
	img := image.NewRGBA(image.Rect(0, 0, totalW, totalH))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 0x0f, G: 0x17, B: 0x2a, A: 0xff}), image.Point{}, imagedraw.Src)

	icon.SetTarget(float64(margin), float64(margin), float64(boardSize), float64(boardSize))
	scanner := rasterx.NewScannerGV(totalW, totalH, img, img.Bounds())
	raster := rasterx.NewDasher(totalW, totalH, scanner)
	icon.Draw(raster, 1.0)

	drawCaption(img, captionText(g), margin, boardSize+margin+captionHeight/2)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func captionText(g *domain.GameDetail) string {
	switch g.Result {
	case domain.ResultHumanWon:
		return fmt.Sprintf("Game %s - you won", g.GameID)
	case domain.ResultCPUWon:
		return fmt.Sprintf("Game %s - CPU won", g.GameID)
	case domain.ResultDraw:
		return fmt.Sprintf("Game %s - draw", g.GameID)
	default:
		return fmt.Sprintf("Game %s - ongoing", g.GameID)
	}
}

func drawCaption(img *image.RGBA, text string, x, y int) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.RGBA{R: 0xe2, G: 0xe8, B: 0xf0, A: 0xff}),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func buildBoardSVG(g *domain.GameDetail) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d">`, boardSize, boardSize))
	sb.WriteString(fmt.Sprintf(`<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, boardSize, boardSize, colorBackground))

	for i := 1; i < domain.BoardSize; i++ {
		p := i * cellSize
		sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="4" x2="%d" y2="%d" stroke="%s" stroke-width="4" stroke-linecap="round"/>`, p, p, boardSize-4, colorGrid))
		sb.WriteString(fmt.Sprintf(`<line x1="4" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="4" stroke-linecap="round"/>`, p, boardSize-4, p, colorGrid))
	}

	for y := 0; y < domain.BoardSize; y++ {
		for x := 0; x < domain.BoardSize; x++ {
			cell := g.Cell(x, y)
			if cell == domain.EmptyCell {
				continue
			}
			stroke := colorCPU
			if cell == g.HumanPlaysAs {
				stroke = colorHuman
			}
			cx := x*cellSize + cellSize/2
			cy := y*cellSize + cellSize/2
			if strings.EqualFold(cell, "O") {
				sb.WriteString(fmt.Sprintf(`<circle cx="%d" cy="%d" r="%d" fill="none" stroke="%s" stroke-width="8"/>`, cx, cy, cellSize/2-18, stroke))
			} else {
				arm := cellSize/2 - 20
				sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="8" stroke-linecap="round"/>`, cx-arm, cy-arm, cx+arm, cy+arm, stroke))
				sb.WriteString(fmt.Sprintf(`<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="8" stroke-linecap="round"/>`, cx-arm, cy+arm, cx+arm, cy-arm, stroke))
			}
		}
	}

	sb.WriteString(`</svg>`)
	return sb.String()
}
