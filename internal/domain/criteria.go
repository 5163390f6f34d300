package domain

// Personalization criteria. Each critic reviews a personalized story along
// one of these dimensions; the pairwise and edition critics see all of them.
var (
	CoherenceCriteria = Criteria{
		Type:        "coherence",
		Description: "Evaluates the logical flow and narrative consistency of the personalized story. The integration of personalization should not disrupt the plot, create inconsistencies, or introduce unexplained elements. A clear beginning, middle, and end are essential, with cause-and-effect relationships maintained throughout.",
		Indicators: []string{
			"**Clear Narrative Structure (Beginning, Middle, End):** The story exhibits a well-defined beginning, a logical middle that develops the conflict, and an end that resolves it. The personalization should not disrupt this structure.",
			"**Logical Cause-and-Effect Sequence:** Events follow a clear cause-and-effect relationship. Changes introduced by the personalization should not break the flow of events or create illogical jumps.",
			"**Absence of Plot Contradictions and Loose Ends:** Every element introduced through personalization is explained or has a clear purpose within the narrative.",
		},
		Importance: ImportanceExtremelyHigh,
	}

	EmotionCriteria = Criteria{
		Type:        "emotional impact",
		Description: "Assesses the story's ability to engage and resonate with the child reader. The personalization should make the child feel like a protagonist while keeping literary quality and evoking enjoyment and focused attention.",
		Indicators: []string{
			"**Positive Emotional Response:** The story would evoke laughter, surprise and focused attention during reading.",
			"**Desire to Revisit:** The child would want to reread the story or share it with others.",
			"**Comprehension and Engagement:** The child would follow the plot with interest and react to its emotional cues.",
		},
		Importance: ImportanceVeryHigh,
	}

	LinguisticCriteria = Criteria{
		Type:        "linguistic quality",
		Description: "Evaluates the grammatical correctness, vocabulary appropriateness, and overall language quality of the personalized story for the target age group.",
		Indicators: []string{
			"**Grammatical Correctness:** The story is free from grammatical errors, with proper sentence structure, punctuation and syntax.",
			"**Vocabulary Appropriateness:** The vocabulary challenges readers from 3 to 5 years while staying accessible, and new words appear in a context that aids comprehension.",
			"**Orality and Flow:** The story reads smoothly aloud, with a lively cadence that invites repeated readings.",
		},
		Importance: ImportanceHigh,
	}

	MoralCriteria = Criteria{
		Type:        "the moral",
		Description: "Determines whether the personalization respects and preserves the original story's core message, values, and intent. Changes should not contradict the lesson or ethical implications of the narrative.",
		Indicators: []string{
			"**Central Message Preservation:** The core moral of the original story is maintained throughout the personalized version.",
			"**Ethical or Symbolic Meaning Integrity:** The ending preserves the original ethical or symbolic meaning.",
			"**Logical Consistency and Original Intent:** The logic of the characters' actions and the intent of the story are not distorted.",
		},
		Importance: ImportanceHigh,
	}

	NaturalnessCriteria = Criteria{
		Type:        "naturalness",
		Description: "Measures how seamlessly personalized elements are integrated into the story. The personalization should feel organic and essential to the narrative, and personalized characters should have a functional role in the plot.",
		Indicators: []string{
			"**Functional Role of Personalized Characters:** The personalized character actively participates in the plot and fulfills a clear purpose.",
			"**Narrative Logic and Consistency:** Modifications respect the established logic of the original narrative universe.",
			"**Absence of Artificial Insertion:** Personalized elements are woven into the story without obvious patches or forced additions.",
		},
		Importance: ImportanceVeryHigh,
	}

	StyleCriteria = Criteria{
		Type:        "style",
		Description: "Evaluates the consistency of narrative voice, language level, and literary style throughout the personalized story, so the reader doesn't perceive shifts in how the story is told.",
		Indicators: []string{
			"**Consistent Linguistic Register and Vocabulary:** Personalized sections keep the formality, complexity and word choice of the original.",
			"**Age-Appropriate Language and Tone:** Vocabulary and sentence structures suit the intended children's audience.",
			"**Seamless Stylistic Integration:** There are no noticeable breaks in rhythm or voice between original text and additions.",
		},
		Importance: ImportanceMedium,
	}

	ValueCriteria = Criteria{
		Type:        "added narrative value",
		Description: "Assesses whether the personalization enhances the story beyond cosmetic changes, strengthening the connection with the child reader through meaningful and imaginative use of the child's details.",
		Indicators: []string{
			"**Meaningful Personalization and Creative Integration:** The personalization goes beyond simple substitution.",
			"**Enhanced Immersion and Emotional Connection:** The story feels more engaging because of the personalization.",
			"**Imaginative Adaptation to Reader's World:** Elements are adapted to the reader's familiar environment or experiences.",
		},
		Importance: ImportanceExtremelyHigh,
	}

	VerisimilitudeCriteria = Criteria{
		Type:        "verisimilitude",
		Description: "Evaluates the believability and plausibility of the personalized story within its own universe, so that events and character actions stay credible.",
		Indicators: []string{
			"**Consistency with Established World:** Personalized events and settings align with the rules of the story's universe.",
			"**Plausibility of Events and Character Actions:** Personalized scenarios could logically occur within the story's world.",
			"**Maintaining Suspension of Disbelief:** Personalized elements do not break the reader's immersion.",
		},
		Importance: ImportanceHigh,
	}
)

// Criteria attached by critics that judge the story as a whole.
var (
	PairwiseCriteria = Criteria{
		Type:        "Pairwise Comparison",
		Description: "Comparison between two personalized versions of the book.",
		Importance:  ImportanceHigh,
	}

	OverallQualityCriteria = Criteria{
		Type:        "calidad general de personalización",
		Description: "Evaluación general de la calidad de la personalización del cuento en función de las preferencias del usuario, considerando coherencia, naturalidad, estilo, enseñanza, valor narrativo e impacto emocional.",
		Importance:  ImportanceHigh,
	}

	EditionCriteria = Criteria{
		Type:        "edición",
		Description: "Revisión final de la personalización ganadora antes de publicarla.",
		Importance:  ImportanceHigh,
	}
)

// Questioning criteria drive the shared-reading question generators.
var (
	CompletionCriteria = Criteria{
		Type:        "C: Completion",
		Description: "The child is asked to **complete a sentence or a word**.",
		Indicators: []string{
			"It starts with a question that invites the child to complete with a sentence or word, and then a blank space is left at the end of a sentence",
			"The questions can focus on language structures (rhyme and repetition)",
		},
	}

	RecallCriteria = Criteria{
		Type:        "R: Recall",
		Description: "The child is asked about **details from the section they have just read**.",
		Indicators: []string{
			"The questions should help the child remember what has happened in the story",
			"The questions should help the child understand the plot of a story and describe sequences of events",
		},
	}

	OpenEndedCriteria = Criteria{
		Type:        "O: Open-ended Questions",
		Description: "The child is asked **open-ended questions**.",
		Indicators: []string{
			"The questions should help the child improve their expressive language",
			"The questions should help the child develop their vocabulary and narrative skills",
		},
	}

	WhCriteria = Criteria{
		Type:        "W: Wh-questions",
		Description: "The child is asked **what, where, when, who, and why questions**.",
		Indicators: []string{
			"The questions should help the child learn vocabulary that appears in the book",
		},
	}

	DistancingCriteria = Criteria{
		Type:        "D: Distancing",
		Description: "The child is asked questions that **relate their own life to the story**.",
		Indicators: []string{
			"The questions should help the child develop their vocabulary and conversational and narrative skills",
			"The questions should help the child form a connection between the story and the real world",
		},
	}
)

// ReviewCriteria lists every personalization dimension in the order the
// pairwise and edition critics present them.
func ReviewCriteria() []Criteria {
	return []Criteria{
		CoherenceCriteria,
		LinguisticCriteria,
		NaturalnessCriteria,
		StyleCriteria,
		MoralCriteria,
		ValueCriteria,
		EmotionCriteria,
		VerisimilitudeCriteria,
	}
}
