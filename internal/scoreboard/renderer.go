// Package scoreboard renders a match snapshot as a PNG score panel.
package scoreboard

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"github.com/park285/padel-scoreboard/internal/export"
	"github.com/park285/padel-scoreboard/internal/scoring"
)

const (
	margin      = 20
	headerH     = 34
	rowH        = 40
	rowGap      = 8
	nameW       = 180
	setColW     = 44
	gameColW    = 60
	colGap      = 6
	panelRadius = 8
	namePadX    = 14
)

var (
	panelColor      = color.NRGBA{R: 28, G: 31, B: 46, A: 235}
	setPanelColor   = color.NRGBA{R: 40, G: 44, B: 64, A: 235}
	gamePanelColor  = color.NRGBA{R: 214, G: 238, B: 80, A: 255}
	shadowColor     = color.NRGBA{0, 0, 0, 60}
	textPrimary     = color.NRGBA{R: 236, G: 239, B: 255, A: 255}
	textMuted       = color.NRGBA{R: 160, G: 170, B: 200, A: 255}
	textOnHighlight = color.NRGBA{R: 20, G: 24, B: 36, A: 255}
)

// pointLabel maps the raw in-game count to the spoken score. 4 is only reachable as advantage.
func pointLabel(n int) string {
	switch n {
	case 0:
		return "0"
	case 1:
		return "15"
	case 2:
		return "30"
	case 3:
		return "40"
	case 4:
		return "AD"
	}
	return strconv.Itoa(n)
}

// Size returns the image dimensions for a snapshot with the given number of sets.
func Size(sets int) (int, int) {
	if sets < 1 {
		sets = 1
	}
	w := margin*2 + nameW + sets*(setColW+colGap) + gameColW + colGap
	h := margin*2 + headerH + rowGap + 2*rowH + rowGap
	return w, h
}

// card is what the panel shows; both entry points reduce to it.
type card struct {
	players [2]string
	sets    []scoring.Pair
	game    scoring.Pair
	status  scoring.Status
}

// RenderPNG draws both sides with per-set games and the current game points.
// A current_game_score that is not in "A-B" form is an error.
func RenderPNG(ctx context.Context, snap *export.Snapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("snapshot is nil")
	}
	game, err := scoring.ParsePair(snap.CurrentGameScore)
	if err != nil {
		return nil, fmt.Errorf("current game score: %w", err)
	}
	return render(ctx, card{players: snap.Players, sets: snap.Score.Sets, game: game, status: snap.Status})
}

// RenderMatch draws the panel straight from a stored match.
func RenderMatch(ctx context.Context, m *scoring.Match) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("match is nil")
	}
	return render(ctx, card{players: m.Players, sets: m.Sets, game: m.GameScore, status: m.Status})
}

func render(ctx context.Context, c card) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sets := c.sets
	if len(sets) == 0 {
		sets = []scoring.Pair{{}}
	}
	w, h := Size(len(sets))
	img, err := renderBackground(w, h)
	if err != nil {
		return nil, err
	}

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Face: face}

	header := image.Rect(margin, margin, w-margin, margin+headerH)
	drawRoundedPanel(img, header, panelRadius, panelColor)
	drawLeftString(drawer, header, namePadX, "PADEL  "+statusLabel(c.status), textMuted)
	for i := range sets {
		col := setColumn(i, header.Min.Y, header.Max.Y)
		drawCenteredString(drawer, col, "S"+strconv.Itoa(i+1), textMuted)
	}
	drawCenteredString(drawer, gameColumn(len(sets), header.Min.Y, header.Max.Y), "PTS", textMuted)

	for side := scoring.Side0; side <= scoring.Side1; side++ {
		top := header.Max.Y + rowGap + int(side)*(rowH+rowGap)
		bottom := top + rowH

		nameRect := image.Rect(margin, top, margin+nameW, bottom)
		drawRoundedPanel(img, nameRect.Add(image.Pt(0, 3)), panelRadius, shadowColor)
		drawRoundedPanel(img, nameRect, panelRadius, panelColor)
		name := truncateWithEllipsis(face, c.players[side], nameW-namePadX*2)
		drawLeftString(drawer, nameRect, namePadX, name, textPrimary)

		for i, s := range sets {
			col := setColumn(i, top, bottom)
			drawRoundedPanel(img, col, panelRadius, setPanelColor)
			clr := textMuted
			if s.At(side) > s.At(side.Opponent()) {
				clr = textPrimary
			}
			drawCenteredString(drawer, col, strconv.Itoa(s.At(side)), clr)
		}

		gameRect := gameColumn(len(sets), top, bottom)
		if c.status == scoring.StatusInProgress {
			drawRoundedPanel(img, gameRect, panelRadius, gamePanelColor)
			drawCenteredString(drawer, gameRect, pointLabel(c.game.At(side)), textOnHighlight)
		} else {
			drawRoundedPanel(img, gameRect, panelRadius, setPanelColor)
			drawCenteredString(drawer, gameRect, "-", textMuted)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func setColumn(i, top, bottom int) image.Rectangle {
	x := margin + nameW + colGap + i*(setColW+colGap)
	return image.Rect(x, top, x+setColW, bottom)
}

func gameColumn(sets, top, bottom int) image.Rectangle {
	x := margin + nameW + colGap + sets*(setColW+colGap)
	return image.Rect(x, top, x+gameColW, bottom)
}

func statusLabel(s scoring.Status) string {
	if s == scoring.StatusCompleted {
		return "FINAL"
	}
	return "LIVE"
}
