package storyboard

import "github.com/xxxsen/papercast/internal/markup"

// StripMarkup removes inline markup tags from the narrative fields of the
// scenes whose type is listed. With no types every scene is stripped.
func StripMarkup(sb *Storyboard, types ...string) {
	if sb == nil {
		return
	}
	selected := make(map[string]bool, len(types))
	for _, t := range types {
		selected[t] = true
	}
	v := stripVisitor{}
	for _, scene := range sb.Scenes {
		if len(types) > 0 && !selected[scene.Type()] {
			continue
		}
		_ = scene.Accept(v)
	}
}

type stripVisitor struct{}

func strip(fields ...*string) {
	for _, f := range fields {
		*f = markup.StripTags(*f)
	}
}

func stripBlock(b *TextBlock) {
	if b != nil {
		strip(&b.Text, &b.Voiceover)
	}
}

func (stripVisitor) VisitTitle(s *TitleScene) error {
	strip(&s.MainText, &s.Subtitle, &s.Voiceover)
	return nil
}

func (stripVisitor) VisitOverview(s *OverviewScene) error {
	strip(&s.Text, &s.Subtitle, &s.Voiceover)
	return nil
}

func (stripVisitor) VisitCode(s *CodeScene) error {
	stripBlock(s.Intro)
	stripBlock(s.Conclusion)
	for i := range s.Sections {
		strip(&s.Sections[i].Voiceover)
	}
	return nil
}

func (stripVisitor) VisitSequence(s *SequenceScene) error {
	for i := range s.Interactions {
		strip(&s.Interactions[i].Voiceover)
	}
	return nil
}

func (stripVisitor) VisitImageText(s *ImageTextScene) error {
	strip(&s.Text, &s.Voiceover)
	return nil
}

func (stripVisitor) VisitMultiImageText(s *MultiImageTextScene) error {
	strip(&s.Text, &s.Voiceover)
	return nil
}

func (stripVisitor) VisitTriangle(s *TriangleScene) error {
	strip(&s.Voiceover)
	return nil
}

func (stripVisitor) VisitDataFlow(s *DataFlowScene) error {
	for i := range s.Blocks {
		strip(&s.Blocks[i].Text, &s.Blocks[i].Voiceover)
	}
	return nil
}

func (stripVisitor) VisitTimeline(s *TimelineScene) error {
	for i := range s.Events {
		e := &s.Events[i]
		strip(&e.Text, &e.Event, &e.Narration)
	}
	return nil
}

func (stripVisitor) VisitUnknown(s *UnknownScene) error { return nil }
