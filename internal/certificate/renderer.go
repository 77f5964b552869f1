package certificate

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/gg"
)

const (
	certWidth  = 1200
	certHeight = 900
)

// PNGRenderer draws certificates with the gg 2D canvas. When no font
// file is configured it falls back to gg's built-in face, which keeps
// the renderer dependency-free on fresh machines.
type PNGRenderer struct {
	FontPath string
}

func NewPNGRenderer(fontPath string) *PNGRenderer {
	return &PNGRenderer{FontPath: fontPath}
}

func (r *PNGRenderer) newCanvas(title, subtitle string) *gg.Context {
	dc := gg.NewContext(certWidth, certHeight)

	dc.SetHexColor("#1b2240")
	dc.Clear()

	dc.SetHexColor("#d89e00")
	dc.SetLineWidth(8)
	dc.DrawRectangle(30, 30, certWidth-60, certHeight-60)
	dc.Stroke()

	if r.FontPath != "" {
		// Best effort: the built-in face still renders without it.
		_ = dc.LoadFontFace(r.FontPath, 48)
	}

	dc.SetHexColor("#ffffff")
	dc.DrawStringAnchored(title, certWidth/2, 110, 0.5, 0.5)
	dc.SetHexColor("#9aa4c7")
	dc.DrawStringAnchored(subtitle, certWidth/2, 170, 0.5, 0.5)
	return dc
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// RenderHost draws the host summary: the full final leaderboard.
func (r *PNGRenderer) RenderHost(path string, job HostJob) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	dc := r.newCanvas(job.QuizTitle, fmt.Sprintf("Game %s — Final Results", job.Code))

	y := 260.0
	for _, entry := range job.Ranking {
		if y > certHeight-120 {
			break
		}
		dc.SetHexColor(entry.AvatarColor)
		dc.DrawCircle(140, y-6, 14)
		dc.Fill()

		dc.SetHexColor("#ffffff")
		dc.DrawString(fmt.Sprintf("%2d. %s %s", entry.Rank, entry.AvatarEmoji, entry.Name), 180, y)
		dc.DrawStringAnchored(fmt.Sprintf("%d pts", entry.Score), certWidth-160, y, 1, 0)
		y += 52
	}

	return dc.SavePNG(path)
}

// RenderPlayer draws one player's award with their rank, score, the
// power-ups they used and the personalized message.
func (r *PNGRenderer) RenderPlayer(path string, job PlayerJob) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	dc := r.newCanvas(job.QuizTitle, fmt.Sprintf("Game %s", job.Code))

	p := job.Player
	dc.SetHexColor(p.AvatarColor)
	dc.DrawCircle(certWidth/2, 300, 60)
	dc.Fill()
	dc.SetHexColor("#ffffff")
	dc.DrawStringAnchored(p.AvatarEmoji, certWidth/2, 300, 0.5, 0.5)

	dc.DrawStringAnchored(p.Name, certWidth/2, 410, 0.5, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("#%d — %d points", p.Rank, p.Score), certWidth/2, 470, 0.5, 0.5)

	if len(p.PowerUpsUsed) > 0 {
		dc.SetHexColor("#9aa4c7")
		dc.DrawStringAnchored(fmt.Sprintf("Powers used: %s", strings.Join(p.PowerUpsUsed, ", ")), certWidth/2, 530, 0.5, 0.5)
	}

	dc.SetHexColor("#d89e00")
	dc.DrawStringWrapped(job.Message, certWidth/2, 640, 0.5, 0.5, certWidth-300, 1.6, gg.AlignCenter)

	return dc.SavePNG(path)
}
