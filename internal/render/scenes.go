package render

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/xxxsen/papercast/internal/markup"
	"github.com/xxxsen/papercast/internal/storyboard"
)

func (s *sceneRun) background(c *canvas, path string) {
	if path == "" {
		return
	}
	if !c.image(path, "", 0, 0, c.w, c.h) {
		s.logger.Debug("background image unavailable", zap.String("path", path))
		c.dc.SetColor(colorBackground)
		c.dc.Clear()
	}
}

func (s *sceneRun) VisitTitle(t *storyboard.TitleScene) error {
	return s.shot(t.Voiceover, t.Duration.Or(3), func(c *canvas) {
		s.background(c, t.Background)
		h := c.paragraph(t.MainText, c.w/2, c.h*0.45, c.w*0.8, 72, fontBold, colorText, alignCenter)
		c.paragraph(t.Subtitle, c.w/2, c.h*0.45+h/2+c.px(70), c.w*0.8, 44, fontRegular, colorMuted, alignCenter)
	})
}

func (s *sceneRun) VisitOverview(o *storyboard.OverviewScene) error {
	hold := o.SubtitleDuration.Or(0.5) + o.Duration.Or(0.5)
	return s.shot(o.Voiceover, hold, func(c *canvas) {
		if o.Subtitle != "" {
			c.title(o.Subtitle)
		}
		c.paragraph(o.Text, c.w/2, c.h*0.55, c.w*0.8, 40, fontRegular, colorText, alignCenter)
	})
}

func (s *sceneRun) VisitCode(cs *storyboard.CodeScene) error {
	code := formatCode(cs.Code)
	if strings.TrimSpace(code) == "" {
		return fmt.Errorf("%w: code scene has no code", errSkip)
	}
	lines := strings.Split(code, "\n")
	intro := cs.IntroVoiceover
	if intro == "" {
		intro = "Let's look at " + markup.Clean(cs.Title)
	}
	draw := func(start, end int, label string) func(c *canvas) {
		return func(c *canvas) {
			c.title(cs.Title)
			drawCode(c, lines, start, end, label)
		}
	}
	if err := s.shot(intro, 1, draw(0, 0, "")); err != nil {
		return err
	}
	if cs.Intro != nil {
		text := cs.Intro.Voiceover
		if cs.Intro.Text != "" {
			text = cs.Intro.Text
		}
		if err := s.shot(text, 1, draw(0, 0, "")); err != nil {
			return err
		}
	}
	for _, sec := range cs.Sections {
		start, end := clampRange(sec.HighlightStart.IntOr(1), sec.HighlightEnd.IntOr(1), len(lines))
		if err := s.shot(sec.Voiceover, sec.Duration.Or(2), draw(start, end, sec.Title)); err != nil {
			return err
		}
	}
	if cs.Conclusion != nil {
		if err := s.shot(cs.Conclusion.Text, 2, draw(0, 0, "")); err != nil {
			return err
		}
	}
	return nil
}

// drawCode draws numbered code lines and highlights start..end (1-based, inclusive).
func drawCode(c *canvas, lines []string, start, end int, label string) {
	top, bottom := c.px(170), c.h-c.px(120)
	lineH := math.Min(c.px(44), (bottom-top)/float64(max(len(lines), 1)))
	size := lineH / 1.4 * DefaultHeight / c.h
	left := c.w * 0.08
	c.box(left-c.px(20), top-c.px(20), c.w*0.84+c.px(40), bottom-top+c.px(40), colorPanel, colorPanel)
	c.setFont(fontMono, size)
	for i, line := range lines {
		y := top + float64(i)*lineH
		if i+1 >= start && i+1 <= end && start > 0 {
			c.dc.SetColor(colorHighlight)
			c.dc.DrawRectangle(left-c.px(10), y, c.w*0.84+c.px(20), lineH)
			c.dc.Fill()
		}
		c.dc.SetColor(colorMuted)
		c.dc.DrawStringAnchored(fmt.Sprintf("%3d", i+1), left, y+lineH/2, 0, 0.5)
		c.dc.SetColor(colorText)
		c.dc.DrawStringAnchored(line, left+c.px(90), y+lineH/2, 0, 0.5)
	}
	if label != "" {
		c.setFont(fontBold, 32)
		c.dc.SetColor(namedColors["yellow"])
		c.dc.DrawStringAnchored(markup.Clean(label), c.w/2, c.h-c.px(60), 0.5, 0.5)
	}
}

func clampRange(start, end, total int) (int, int) {
	start = min(max(start, 1), total)
	end = min(max(end, start), total)
	return start, end
}

func (s *sceneRun) VisitSequence(sq *storyboard.SequenceScene) error {
	if len(sq.Actors) == 0 {
		return fmt.Errorf("%w: sequence has no actors", errSkip)
	}
	column := map[string]int{}
	for i, a := range sq.Actors {
		column[a] = i
	}
	for _, it := range sq.Interactions {
		if _, ok := column[it.From]; !ok {
			return fmt.Errorf("unknown actor %q", it.From)
		}
		if _, ok := column[it.To]; !ok && it.Type != "note" {
			return fmt.Errorf("unknown actor %q", it.To)
		}
	}
	draw := func(upto int) func(c *canvas) {
		return func(c *canvas) {
			s.background(c, sq.Background)
			c.title(sq.Title)
			drawSequence(c, sq, column, upto)
		}
	}
	if len(sq.Interactions) == 0 {
		return s.shot("", 2, draw(-1))
	}
	for i, it := range sq.Interactions {
		if err := s.shot(it.Voiceover, 1.5, draw(i)); err != nil {
			return err
		}
	}
	return s.shot("", 0.4, draw(len(sq.Interactions)-1))
}

func drawSequence(c *canvas, sq *storyboard.SequenceScene, column map[string]int, upto int) {
	n := len(sq.Actors)
	spacing := c.w * 0.8 / float64(n)
	xOf := func(i int) float64 { return c.w*0.1 + spacing*(float64(i)+0.5) }
	top, bottom := c.px(200), c.h-c.px(60)
	boxW := math.Min(spacing*0.8, c.px(320))
	for i, a := range sq.Actors {
		x := xOf(i)
		c.dc.SetColor(colorMuted)
		c.dc.SetLineWidth(c.px(2))
		c.dc.SetDash(c.px(8), c.px(8))
		c.dc.DrawLine(x, top+c.px(40), x, bottom)
		c.dc.Stroke()
		c.dc.SetDash()
		c.textBox(a, x, top, boxW, c.px(80), namedColors["blue"])
	}
	rows := max(len(sq.Interactions), 1)
	step := math.Min(c.px(90), (bottom-top-c.px(80))/float64(rows))
	for i := 0; i <= upto && i < len(sq.Interactions); i++ {
		it := sq.Interactions[i]
		y := top + c.px(90) + step*float64(i)
		var col color.Color = colorMuted
		if i == upto {
			col = namedColors["yellow"]
		}
		from := xOf(column[it.From])
		if it.Type == "note" {
			c.box(from-boxW/2, y-step*0.4, boxW, step*0.8, colorPanel, col)
			c.paragraph(it.Message, from, y, boxW*0.9, 22, fontRegular, colorText, alignCenter)
			continue
		}
		to := xOf(column[it.To])
		if from == to {
			c.arrow(from, y, from+c.px(60), y, col, it.Message)
			continue
		}
		c.arrow(from, y, to, y, col, it.Message)
	}
}

func (s *sceneRun) imagePanels(c *canvas, paths []string, want int, x, y, w, h float64, vertical bool) {
	count := max(len(paths), want, 1)
	if len(paths) > 0 {
		count = len(paths)
	}
	gap := c.px(30)
	for i := 0; i < count; i++ {
		var px, py, pw, ph float64
		if vertical {
			ph = (h - gap*float64(count-1)) / float64(count)
			px, py, pw = x, y+float64(i)*(ph+gap), w
		} else {
			pw = (w - gap*float64(count-1)) / float64(count)
			px, py, ph = x+float64(i)*(pw+gap), y, h
		}
		if i >= len(paths) {
			c.placeholder(fmt.Sprintf("No image %d found", i+1), px, py, pw, ph)
			s.placeholders++
			continue
		}
		if !c.image(paths[i], "Image load failed", px, py, pw, ph) {
			s.placeholders++
		}
	}
}

func (s *sceneRun) VisitImageText(it *storyboard.ImageTextScene) error {
	want := it.NumImages.IntOr(2)
	var paths []string
	if s.renderer.images != nil {
		paths = s.renderer.images.ArticleImages(s.ctx, s.imageDir(), it.WikipediaTopic, want)
	}
	return s.shot(it.Voiceover, it.Duration.Or(5), func(c *canvas) {
		c.title(it.Title)
		h := c.paragraph(it.Text, c.w*0.1, c.px(180), c.w*0.8, 34, fontRegular, colorText, alignLeft)
		top := c.px(180) + h + c.px(40)
		s.imagePanels(c, paths, want, c.w*0.1, top, c.w*0.8, c.h-top-c.px(60), false)
	})
}

func (s *sceneRun) VisitMultiImageText(mt *storyboard.MultiImageTextScene) error {
	want := mt.NumImages.IntOr(2)
	var paths []string
	switch {
	case len(mt.WikipediaTopics) > 0:
		for _, topic := range mt.WikipediaTopics {
			if s.renderer.images == nil {
				break
			}
			if paths = s.renderer.images.ArticleImages(s.ctx, s.imageDir(), topic, want); len(paths) > 0 {
				break
			}
		}
	default:
		paths = mt.ImagePaths
		want = len(paths)
	}
	vertical := strings.EqualFold(mt.Layout, "vertical")
	return s.shot(mt.Voiceover, mt.Duration.Or(5), func(c *canvas) {
		c.title(mt.Title)
		if vertical {
			c.paragraph(mt.Text, c.w*0.05, c.px(180), c.w*0.45, 34, fontRegular, colorText, alignLeft)
			width := c.w * 0.4
			if mt.ImageWidth.Set {
				width = math.Min(c.w*0.45, math.Max(c.px(100), mt.ImageWidth.Value*c.w/14.2))
			}
			s.imagePanels(c, paths, want, c.w*0.55, c.px(180), width, c.h-c.px(240), true)
			return
		}
		h := c.paragraph(mt.Text, c.w*0.1, c.px(180), c.w*0.8, 34, fontRegular, colorText, alignLeft)
		top := c.px(180) + h + c.px(40)
		s.imagePanels(c, paths, want, c.w*0.1, top, c.w*0.8, c.h-top-c.px(60), false)
	})
}

type point struct{ x, y float64 }

func (s *sceneRun) VisitTriangle(t *storyboard.TriangleScene) error {
	return s.shot(t.Voiceover, t.Duration.Or(5), func(c *canvas) {
		c.title(t.Title)
		top := point{c.w / 2, c.h * 0.33}
		left := point{c.w * 0.25, c.h * 0.78}
		right := point{c.w * 0.75, c.h * 0.78}
		bw, bh := c.px(420), c.px(130)
		links := []struct {
			from, to point
			label    string
		}{
			{top, left, t.TopToLeft},
			{top, right, t.TopToRight},
			{left, right, t.LeftToRight},
			{right, left, t.RightToLeft},
			{left, top, t.LeftToTop},
			{right, top, t.RightToTop},
		}
		for _, l := range links {
			if l.label == "" {
				continue
			}
			a, b := edgePoints(l.from, l.to, bw, bh, c.px(18))
			c.arrow(a.x, a.y, b.x, b.y, colorMuted, l.label)
		}
		c.textBox(t.TopText, top.x, top.y, bw, bh, namedColors["blue"])
		c.textBox(t.LeftText, left.x, left.y, bw, bh, namedColors["green"])
		c.textBox(t.RightText, right.x, right.y, bw, bh, namedColors["purple"])
	})
}

// edgePoints shortens the segment between two box centers so it starts and
// ends at the box borders, offset sideways so opposite links do not overlap.
func edgePoints(from, to point, bw, bh, offset float64) (point, point) {
	dx, dy := to.x-from.x, to.y-from.y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return from, to
	}
	ux, uy := dx/dist, dy/dist
	inset := math.Min(math.Abs(bw/2/ux), math.Abs(bh/2/uy))
	if math.IsInf(inset, 0) || math.IsNaN(inset) {
		inset = math.Min(bw, bh) / 2
	}
	nx, ny := -uy*offset, ux*offset
	return point{from.x + ux*inset + nx, from.y + uy*inset + ny},
		point{to.x - ux*inset + nx, to.y - uy*inset + ny}
}

var flowSlots = []point{{0.2, 0.32}, {0.2, 0.72}, {0.5, 0.52}, {0.8, 0.52}}

var flowArrows = []struct {
	from, to int
	color    string
}{
	{0, 2, "green"},
	{1, 2, "red"},
	{2, 3, "purple"},
}

func (s *sceneRun) VisitDataFlow(df *storyboard.DataFlowScene) error {
	if len(df.Blocks) == 0 {
		return fmt.Errorf("%w: data flow has no blocks", errSkip)
	}
	blocks := df.Blocks
	if len(blocks) > len(flowSlots) {
		s.logger.Warn("data flow has extra blocks, dropping", zap.Int("blocks", len(blocks)))
		blocks = blocks[:len(flowSlots)]
	}
	draw := func(upto int) func(c *canvas) {
		return func(c *canvas) {
			bw, bh := c.px(380), c.px(190)
			at := func(i int) point { return point{flowSlots[i].x * c.w, flowSlots[i].y * c.h} }
			for _, a := range flowArrows {
				if a.to > upto || a.to >= len(blocks) {
					continue
				}
				from, to := at(a.from), at(a.to)
				c.arrow(from.x+bw/2, from.y, to.x-bw/2, to.y, namedColors[a.color], "")
			}
			for i := 0; i <= upto && i < len(blocks); i++ {
				p := at(i)
				col := namedColor(blocks[i].Color, namedColors["blue"])
				r, g, b, _ := col.RGBA()
				fill := color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0x4c}
				c.box(p.x-bw/2, p.y-bh/2, bw, bh, fill, col)
				c.paragraph(blocks[i].Text, p.x, p.y, bw*0.85, 26, fontRegular, colorText, alignCenter)
			}
		}
	}
	for i, b := range blocks {
		if err := s.shot(b.Voiceover, 1, draw(i)); err != nil {
			return err
		}
	}
	return s.shot(df.Narration.Conclusion, 1, draw(len(blocks)-1))
}

func (s *sceneRun) VisitTimeline(tl *storyboard.TimelineScene) error {
	if len(tl.Events) == 0 {
		return fmt.Errorf("%w: timeline has no events", errSkip)
	}
	images := make([]string, len(tl.Events))
	for i, ev := range tl.Events {
		if ev.ImageDescription != "" && s.renderer.images != nil {
			images[i] = s.renderer.images.SearchImage(s.ctx, s.imageDir(), ev.ImageDescription)
		}
	}
	n := len(tl.Events)
	draw := func(current int) func(c *canvas) {
		return func(c *canvas) {
			s.background(c, tl.BackgroundImage)
			c.title(tl.Title)
			y := c.h * 0.6
			x0, x1 := c.w*0.08, c.w*0.92
			c.dc.SetColor(colorText)
			c.dc.SetLineWidth(c.px(4))
			c.dc.DrawLine(x0, y, x1, y)
			c.dc.Stroke()
			slot := (x1 - x0) / float64(n)
			for i := 0; i <= current; i++ {
				ev := tl.Events[i]
				x := x0 + slot*(float64(i)+0.5)
				var dot color.Color = colorMuted
				if i == current {
					dot = namedColors["blue"]
				}
				c.dc.SetColor(dot)
				c.dc.DrawCircle(x, y, c.px(12))
				c.dc.Fill()
				c.setFont(fontBold, 28)
				c.dc.SetColor(colorText)
				c.dc.DrawStringAnchored(string(ev.Year), x, y-c.px(30), 0.5, 0)
				text := ev.Text
				if text == "" {
					text = ev.Event
				}
				c.setFont(fontRegular, 22)
				c.dc.SetColor(colorText)
				for j, line := range markup.Chunk(markup.Clean(text), 3) {
					c.dc.DrawStringAnchored(line, x, y+c.px(50)+float64(j)*c.px(30), 0.5, 0)
				}
				if ev.ImageDescription == "" {
					continue
				}
				iw, ih := math.Min(slot*0.9, c.px(260)), c.px(180)
				ix, iy := x-iw/2, y-c.px(70)-ih
				if images[i] == "" {
					c.placeholder("No Image", ix, iy, iw, ih)
					if i == current {
						s.placeholders++
					}
					continue
				}
				if !c.image(images[i], "Image Error", ix, iy, iw, ih) && i == current {
					s.placeholders++
				}
			}
		}
	}
	for i, ev := range tl.Events {
		if err := s.shot(ev.Narration, 1, draw(i)); err != nil {
			return err
		}
	}
	return nil
}

func (s *sceneRun) VisitUnknown(u *storyboard.UnknownScene) error {
	reason := u.Reason
	if reason == "" {
		reason = "unknown scene type"
	}
	return fmt.Errorf("%w: %s", errSkip, reason)
}
