package pipeline

import (
	"fmt"
	"strings"

	"github.com/zhe.chen/landmark-story/pkg/types"
)

const analysisPrompt = `You are a historian and architectural analyst who knows the world's historical buildings and monuments.

Look at the photograph and identify any historical building, landmark or monument in it. Cover:

1. IDENTIFICATION
   - Name of the landmark, if you recognize it (write it on its own line as "Name: ...")
   - Location (city, country), as "Location: ..."
   - Approximate period of construction
   - Architectural style, as "Architectural style: ..."

2. PHYSICAL DESCRIPTION
   - Key architectural features, materials and notable design elements
   - Condition visible in the photo and the surroundings

3. HISTORICAL CONTEXT
   - Who built it, when and why
   - Original purpose and later uses
   - Events and cultural significance tied to it

4. VISUAL ELEMENTS
   - Dominant colors, textures and lighting
   - Perspective and viewing angle
   - Details that stand out

If you cannot identify the exact building, describe what you see and infer its period and significance from architectural clues.
Write structured plain text that a storyteller can work from.`

const storyPromptTemplate = `You are a storyteller who writes historical narratives for short documentary videos.

LANDMARK: %s

BUILDING ANALYSIS:
%s

Write a narrative of about 300-400 words (one to two minutes when spoken) that brings this place to life:

1. OPENING HOOK: open on a vivid moment or question that sets the scene.
2. HISTORICAL JOURNEY: walk through the key moments of the site's history with specific dates, people and lesser-known facts, and show how it changed over time.
3. EMOTIONAL RESONANCE: close on why the place still matters today.

Guidelines:
- Use cinematic language that translates to video.
- Present tense for the building as it stands, past tense for historical events.
- Keep it accessible to a general audience.
- Write flowing prose for narration, not bullet points or headings.`

const shotsPromptTemplate = `You are a documentary director. Break the narrative below into exactly %d video shots.

LANDMARK: %s

HISTORICAL NARRATIVE:
%s

BUILDING ANALYSIS:
%s

For each shot give: shot_number, duration_seconds (integer), shot_type (Establishing shot, Medium shot, Close-up, Aerial shot, Tracking shot or Static shot), visual_description (what is shown, camera angle and movement, lighting), narration (the exact part of the story spoken over the shot), mood, transition, and ai_generation_prompt (a specific, detailed prompt for an AI text-to-video model).

Requirements:
- The shots together must cover the whole narrative in order.
- Vary shot types; include at least one wide establishing shot and one close-up.
- Match durations to the length of each narration.

Return ONLY valid JSON, with no markdown fences or commentary, in exactly this shape:
{
  "total_duration": "1-2 minutes",
  "shots": [
    {
      "shot_number": 1,
      "duration_seconds": 8,
      "shot_type": "Establishing shot",
      "visual_description": "Wide aerial view of the landmark against the skyline",
      "narration": "Opening lines of the story",
      "mood": "Majestic",
      "transition": "Fade in",
      "ai_generation_prompt": "Cinematic aerial drone shot of the landmark at golden hour, 4K, slow camera movement"
    }
  ]
}

Start your response with { and end it with }.`

const refinePromptTemplate = `You are refining the shot list of a historical documentary video.

CURRENT SHOTS:
%s

REFINEMENT FEEDBACK:
%s

Improve the shots according to the feedback while keeping every field. Return ONLY JSON of the form {"shots": [...]}.`

func storyPrompt(analysis, landmark string) string {
	return fmt.Sprintf(storyPromptTemplate, landmark, analysis)
}

func shotsPrompt(story, analysis, landmark string, count int) string {
	return fmt.Sprintf(shotsPromptTemplate, count, landmark, story, analysis)
}

func refinePrompt(shotsJSON string, notes []string) string {
	lines := make([]string, len(notes))
	for i, note := range notes {
		lines[i] = "- " + strings.TrimSpace(note)
	}
	return fmt.Sprintf(refinePromptTemplate, shotsJSON, strings.Join(lines, "\n"))
}

// promptLandmark names the landmark for prompts, or asks the model to
// infer it.
func promptLandmark(name string) string {
	if name == "" || name == types.UnknownLandmark {
		return "(not identified; infer from the analysis)"
	}
	return name
}
