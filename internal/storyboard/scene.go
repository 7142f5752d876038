package storyboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	TypeTitle          = "title"
	TypeOverview       = "overview"
	TypeCode           = "code"
	TypeSequence       = "sequence"
	TypeImageText      = "image_text"
	TypeMultiImageText = "multi_image_text"
	TypeTriangle       = "triangle"
	TypeDataFlow       = "data_processing_flow"
	TypeTimeline       = "timeline"
)

// Storyboard is the scene list a language model produces for one video.
type Storyboard struct {
	OutputName      string  `json:"output_name"`
	BackgroundMusic string  `json:"background_music"`
	Scenes          []Scene `json:"-"`
}

type Scene interface {
	Type() string
	Transition() string
	Accept(v SceneVisitor) error
}

// SceneVisitor has one method per scene type. Adding a scene type means
// adding a method here, which breaks every visitor until it handles it.
type SceneVisitor interface {
	VisitTitle(s *TitleScene) error
	VisitOverview(s *OverviewScene) error
	VisitCode(s *CodeScene) error
	VisitSequence(s *SequenceScene) error
	VisitImageText(s *ImageTextScene) error
	VisitMultiImageText(s *MultiImageTextScene) error
	VisitTriangle(s *TriangleScene) error
	VisitDataFlow(s *DataFlowScene) error
	VisitTimeline(s *TimelineScene) error
	VisitUnknown(s *UnknownScene) error
}

type sceneMeta struct {
	TransitionText string `json:"transition_text"`
}

func (m sceneMeta) Transition() string { return m.TransitionText }

// Num accepts a JSON number or a numeric string. Models emit both.
type Num struct {
	Value float64
	Set   bool
}

func (n *Num) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		n.Value, n.Set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value, n.Set = v, true
	return nil
}

func (n Num) Or(def float64) float64 {
	if !n.Set {
		return def
	}
	return n.Value
}

func (n Num) IntOr(def int) int {
	if !n.Set {
		return def
	}
	return int(n.Value)
}

// Text accepts a JSON string or number, e.g. a timeline year.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*t = Text(num.String())
	return nil
}

type TitleScene struct {
	sceneMeta
	MainText   string `json:"main_text"`
	Subtitle   string `json:"subtitle"`
	Voiceover  string `json:"voiceover"`
	Duration   Num    `json:"duration"`
	Background string `json:"background"`
}

func (s *TitleScene) Type() string                { return TypeTitle }
func (s *TitleScene) Accept(v SceneVisitor) error { return v.VisitTitle(s) }

type OverviewScene struct {
	sceneMeta
	Text             string `json:"text"`
	Subtitle         string `json:"subtitle"`
	Voiceover        string `json:"voiceover"`
	CreationTime     Num    `json:"creation_time"`
	Duration         Num    `json:"duration"`
	SubtitleDuration Num    `json:"subtitle_duration"`
}

func (s *OverviewScene) Type() string                { return TypeOverview }
func (s *OverviewScene) Accept(v SceneVisitor) error { return v.VisitOverview(s) }

type TextBlock struct {
	Text      string `json:"text"`
	Voiceover string `json:"voiceover"`
}

type CodeSection struct {
	Title          string `json:"title"`
	HighlightStart Num    `json:"highlight_start"`
	HighlightEnd   Num    `json:"highlight_end"`
	Voiceover      string `json:"voiceover"`
	Duration       Num    `json:"duration"`
}

type CodeScene struct {
	sceneMeta
	Title          string        `json:"title"`
	Code           string        `json:"code"`
	IntroVoiceover string        `json:"intro_voiceover"`
	Intro          *TextBlock    `json:"intro"`
	Sections       []CodeSection `json:"sections"`
	Conclusion     *TextBlock    `json:"conclusion"`
}

func (s *CodeScene) Type() string                { return TypeCode }
func (s *CodeScene) Accept(v SceneVisitor) error { return v.VisitCode(s) }

type Interaction struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	Voiceover string `json:"voiceover"`
}

type SequenceScene struct {
	sceneMeta
	Title        string        `json:"title"`
	Background   string        `json:"background"`
	Actors       []string      `json:"actors"`
	Interactions []Interaction `json:"interactions"`
}

func (s *SequenceScene) Type() string                { return TypeSequence }
func (s *SequenceScene) Accept(v SceneVisitor) error { return v.VisitSequence(s) }

type ImageTextScene struct {
	sceneMeta
	Title          string `json:"title"`
	Text           string `json:"text"`
	Voiceover      string `json:"voiceover"`
	WikipediaTopic string `json:"wikipedia_topic"`
	NumImages      Num    `json:"num_images"`
	Duration       Num    `json:"duration"`
}

func (s *ImageTextScene) Type() string                { return TypeImageText }
func (s *ImageTextScene) Accept(v SceneVisitor) error { return v.VisitImageText(s) }

type MultiImageTextScene struct {
	sceneMeta
	Title           string   `json:"title"`
	Text            string   `json:"text"`
	Voiceover       string   `json:"voiceover"`
	WikipediaTopics []string `json:"wikipedia_topics"`
	ImagePaths      []string `json:"image_paths"`
	NumImages       Num      `json:"num_images"`
	ImageWidth      Num      `json:"image_width"`
	Layout          string   `json:"layout"`
	Duration        Num      `json:"duration"`
}

func (s *MultiImageTextScene) Type() string                { return TypeMultiImageText }
func (s *MultiImageTextScene) Accept(v SceneVisitor) error { return v.VisitMultiImageText(s) }

type TriangleScene struct {
	sceneMeta
	Title       string `json:"title"`
	Voiceover   string `json:"voiceover"`
	TopText     string `json:"top_text"`
	LeftText    string `json:"left_text"`
	RightText   string `json:"right_text"`
	TopToLeft   string `json:"top_to_left"`
	TopToRight  string `json:"top_to_right"`
	LeftToRight string `json:"left_to_right"`
	RightToLeft string `json:"right_to_left"`
	LeftToTop   string `json:"left_to_top"`
	RightToTop  string `json:"right_to_top"`
	Duration    Num    `json:"duration"`
}

func (s *TriangleScene) Type() string                { return TypeTriangle }
func (s *TriangleScene) Accept(v SceneVisitor) error { return v.VisitTriangle(s) }

type FlowBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Voiceover string `json:"voiceover"`
	Color     string `json:"color"`
}

type FlowNarration struct {
	Conclusion string `json:"conclusion"`
}

type DataFlowScene struct {
	sceneMeta
	Blocks    []FlowBlock   `json:"blocks"`
	Narration FlowNarration `json:"narration"`
}

func (s *DataFlowScene) Type() string                { return TypeDataFlow }
func (s *DataFlowScene) Accept(v SceneVisitor) error { return v.VisitDataFlow(s) }

type TimelineEvent struct {
	Year             Text   `json:"year"`
	Text             string `json:"text"`
	Event            string `json:"event"`
	Narration        string `json:"narration"`
	ImageDescription string `json:"image_description"`
}

type TimelineScene struct {
	sceneMeta
	Title           string          `json:"title"`
	BackgroundImage string          `json:"background_image"`
	Events          []TimelineEvent `json:"events"`
}

func (s *TimelineScene) Type() string                { return TypeTimeline }
func (s *TimelineScene) Accept(v SceneVisitor) error { return v.VisitTimeline(s) }

// UnknownScene holds a scene whose tag is not recognised or whose body
// failed to decode. Reason says which.
type UnknownScene struct {
	Kind   string
	Raw    json.RawMessage
	Reason string
}

func (s *UnknownScene) Type() string                { return s.Kind }
func (s *UnknownScene) Transition() string          { return "" }
func (s *UnknownScene) Accept(v SceneVisitor) error { return v.VisitUnknown(s) }

var sceneFactories = map[string]func() Scene{
	TypeTitle:          func() Scene { return &TitleScene{} },
	TypeOverview:       func() Scene { return &OverviewScene{} },
	TypeCode:           func() Scene { return &CodeScene{} },
	TypeSequence:       func() Scene { return &SequenceScene{} },
	TypeImageText:      func() Scene { return &ImageTextScene{} },
	TypeMultiImageText: func() Scene { return &MultiImageTextScene{} },
	TypeTriangle:       func() Scene { return &TriangleScene{} },
	TypeDataFlow:       func() Scene { return &DataFlowScene{} },
	TypeTimeline:       func() Scene { return &TimelineScene{} },
}

func (sb *Storyboard) UnmarshalJSON(data []byte) error {
	var raw struct {
		OutputName      string            `json:"output_name"`
		BackgroundMusic string            `json:"background_music"`
		Scenes          []json.RawMessage `json:"scenes"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	sb.OutputName = raw.OutputName
	sb.BackgroundMusic = raw.BackgroundMusic
	sb.Scenes = make([]Scene, 0, len(raw.Scenes))
	for _, item := range raw.Scenes {
		sb.Scenes = append(sb.Scenes, decodeScene(item))
	}
	return nil
}

func decodeScene(data json.RawMessage) Scene {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return &UnknownScene{Raw: data, Reason: fmt.Sprintf("scene is not an object: %v", err)}
	}
	factory, ok := sceneFactories[probe.Type]
	if !ok {
		return &UnknownScene{Kind: probe.Type, Raw: data, Reason: "unknown scene type"}
	}
	scene := factory()
	if err := json.Unmarshal(data, scene); err != nil {
		return &UnknownScene{Kind: probe.Type, Raw: data, Reason: fmt.Sprintf("decode scene: %v", err)}
	}
	return scene
}

// Types lists the scene tags in document order.
func (sb *Storyboard) Types() []string {
	out := make([]string, 0, len(sb.Scenes))
	for _, s := range sb.Scenes {
		out = append(out, s.Type())
	}
	return out
}
