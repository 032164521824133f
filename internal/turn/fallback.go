package turn

// Canned part sets for the paths that never reach the model, or whose model
// output could not be used. Every set satisfies the same schema rules as a
// model reply.

func greetingParts() []Part {
	return []Part{
		&PlainPart{Base: Base{
			Text:       "Hey there! I'm Professor Nova, your AI tutor.",
			Expression: ExpressionSmile,
			Animation:  AnimationTalking1,
		}},
		&PlainPart{Base: Base{
			Text:       "Ask me anything, or switch on video mode and I'll explain it with an animation.",
			Expression: ExpressionDefault,
			Animation:  AnimationTalking0,
		}},
	}
}

func missingCredentialsParts() []Part {
	return []Part{
		&PlainPart{Base: Base{
			Text:       "I can't think right now because no language model API key is configured.",
			Expression: ExpressionSad,
			Animation:  AnimationTalking0,
		}},
		&PlainPart{Base: Base{
			Text:       "Please set OPENAI_API_KEY, or LLM_ENGINE=ollama, and a speech engine, then restart the gateway.",
			Expression: ExpressionDefault,
			Animation:  AnimationTalking2,
		}},
	}
}

func apologyParts() []Part {
	return []Part{
		&PlainPart{Base: Base{
			Text:       "Sorry, I lost my train of thought there. Could you ask me that again?",
			Expression: ExpressionSad,
			Animation:  AnimationTalking1,
		}},
	}
}

const technicalDifficultyScript = `class GenScene(Scene):
    def construct(self):
        title = Text("Technical difficulty", font_size=48)
        note = Text("Please ask your question again.", font_size=32)
        note.next_to(title, DOWN)
        self.play(Write(title))
        self.play(FadeIn(note))
        self.wait(2)
`

func technicalDifficultyParts() []Part {
	text := "I ran into a technical difficulty preparing this video. Please ask me again."
	return []Part{
		&VideoPart{
			Base: Base{
				Text:       text,
				Expression: ExpressionSad,
				Animation:  AnimationTalking0,
			},
			Narration:   text,
			SceneScript: technicalDifficultyScript,
		},
	}
}

// substituteParts is what a turn answers with when the model reply is
// unusable in mode.
func substituteParts(mode Mode) []Part {
	if mode == ModeVideo {
		return technicalDifficultyParts()
	}
	return apologyParts()
}
