package storyboard

import (
	"fmt"
	"strings"
)

func summaryQuestion(topic string) string {
	return fmt.Sprintf("Provide a comprehensive summary of the key points in this paper about %s", topic)
}

func paperContextBlock(title, summary string) string {
	return fmt.Sprintf("\n=== IMPORTANT PAPER CONTEXT ===\nThe video should be based on this research paper titled %q.\nKey points from the paper:\n%s\n", title, summary)
}

func customInstructionBlock(description string) string {
	return fmt.Sprintf(`
=== USER CUSTOM INSTRUCTIONS ===
The user provided these specific requirements:
%s

SPECIAL INSTRUCTIONS:
1. Prioritize these custom requirements above all else
2. Incorporate all specified elements from the user
3. Adjust technical depth according to user's description
4. Focus on the aspects the user emphasized
`, description)
}

func buildPrompt(topic, paperContext, customInstructions string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are creating the script of a technical explainer video about %s.\n", topic)
	sb.WriteString(paperContext)
	sb.WriteString(customInstructions)
	sb.WriteString(`
Respond with JSON only. No explanations, notes or text around it.

Rules:
- Use only the scene types listed below.
- Fields marked (markup) may use inline tags: <b>, <i>, <u>, <tt>, <span foreground='#RRGGBB'>.
  Blue #4285F4 for concepts, green #34A853 for positive results, red #EA4335 for warnings, yellow #FBBC05 for notes.
- Escape every newline inside code as \n. Indent code with 4 spaces, keep lines under 80 characters,
  put two spaces before inline comments.
- Write math with LaTeX inside $...$, for example $\epsilon$ or $E = mc^2$.
- Voiceovers go deeper than the on-screen text: examples, analogies, numbers, rules of thumb.

Scene types:
1. title (required): main_text, subtitle, voiceover, duration
2. overview: text (markup), subtitle, voiceover, creation_time, duration
3. code: title, code, intro {text, voiceover}, sections [{title, highlight_start, highlight_end, voiceover, duration}], conclusion {text, voiceover}
4. sequence: title, actors [string], interactions [{from, to, type: message|note, message, voiceover}]
5. image_text: title, text (markup), voiceover, wikipedia_topic, num_images, duration
6. multi_image_text: title, text (markup), voiceover, wikipedia_topics [string], num_images, image_width, layout: horizontal|vertical, duration
7. triangle: title, voiceover, top_text, left_text, right_text, top_to_left, top_to_right, left_to_right, right_to_left, left_to_top, right_to_top, duration
8. data_processing_flow: blocks [{type: input1|input2|processor|output, text, voiceover, color: green|red|blue|purple}], narration {conclusion}
9. timeline: title, events [{year, text, narration, image_description}]

Any scene may carry transition_text, spoken while moving to the next scene.

Include a scene type only when the topic calls for it: code for practical usage, sequence for workflows,
images when visuals help, triangle for three related elements, data_processing_flow for data pipelines,
timeline for history.

Shape:
{
  "output_name": "TopicExplanationVideo",
  "scenes": [
    {"type": "title", "main_text": "...", "subtitle": "...", "voiceover": "...", "duration": 5}
  ]
}
`)
	return sb.String()
}
