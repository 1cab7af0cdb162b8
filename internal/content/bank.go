package content

import "sort"

// TopicPresentSimple is the only topic with a built-in bank today.
const TopicPresentSimple = "present-simple"

// focusActivityID is the pseudo activity that owns built-in questions.
const focusActivityID int64 = 0

func mcq(id int64, prompt string, choices []string, answer, explanation string) Question {
	return Question{
		ID:          id,
		ActivityID:  focusActivityID,
		Kind:        KindMCQ,
		Prompt:      PromptFromText(prompt),
		Options:     choices,
		Answer:      answer,
		Explanation: explanation,
		XPReward:    10,
	}
}

func fillBlank(id int64, prompt, answer, explanation string) Question {
	return Question{
		ID:          id,
		ActivityID:  focusActivityID,
		Kind:        KindFillBlank,
		Prompt:      Prompt{Instruction: "Complete the sentence.", Content: prompt},
		Answer:      answer,
		Explanation: explanation,
		XPReward:    10,
	}
}

func orderWords(id int64, instruction string, tokens []string, answer, explanation string) Question {
	return Question{
		ID:          id,
		ActivityID:  focusActivityID,
		Kind:        KindOrderWords,
		Prompt:      Prompt{Instruction: instruction},
		Options:     tokens,
		Answer:      answer,
		Explanation: explanation,
		XPReward:    10,
	}
}

var focusBanks = map[string][]Question{
	TopicPresentSimple: {
		mcq(1001, "She ______ to work every day.", []string{"go", "goes", "going", "gone"}, "goes",
			"Use 'goes' for third person singular (he/she/it) in Present Simple."),
		mcq(1002, "They ______ coffee in the morning.", []string{"drinks", "drink", "drinking", "drank"}, "drink",
			"Use base form 'drink' for plural subjects (they/we) in Present Simple."),
		mcq(1003, "______ she like pizza?", []string{"Do", "Does", "Is", "Are"}, "Does",
			"Use 'Does' for questions with third person singular (he/she/it)."),
		fillBlank(1004, "My brother ______ (play) soccer every weekend.", "plays",
			"Add '-s' to the verb for third person singular: play becomes plays."),
		mcq(1005, "We ______ TV every evening.", []string{"watches", "watch", "watching", "to watch"}, "watch",
			"Use base form 'watch' for plural subjects (we) in Present Simple."),
		mcq(1006, "He ______ breakfast at 7 AM.", []string{"have", "has", "having", "had"}, "has",
			"Use 'has' for third person singular (he/she/it) in Present Simple."),
		fillBlank(1007, "I ______ (not/like) spicy food.", "don't like",
			"Use 'don't' + base verb for negatives with I/you/we/they."),
		mcq(1008, "The sun ______ in the east.", []string{"rise", "rises", "rising", "rose"}, "rises",
			"Use 'rises' for third person singular (it). This is a general truth."),
		orderWords(1009, "Order the words to form a correct sentence:", []string{"studies", "English", "She", "every", "day"},
			"She studies English every day",
			"Subject (She) + verb with -s (studies) + object (English) + time expression (every day)."),
		orderWords(1010, "Order the words to form a correct question:", []string{"like", "you", "Do", "coffee", "?"},
			"Do you like coffee?",
			"Questions in Present Simple: Do/Does + subject + base verb. 'Do' is used with 'you'."),
		mcq(1011, "He ______ know the answer.", []string{"don't", "doesn't", "isn't", "not"}, "doesn't",
			"Use 'doesn't' (does not) for negative sentences with third person singular."),
		mcq(1012, "Where ______ your parents live?", []string{"do", "does", "are", "have"}, "do",
			"Use 'do' with plural subjects (parents = they) in questions."),
		fillBlank(1013, "______ (you/study) Spanish?", "Do you study",
			"Form questions with 'Do' + subject + base verb."),
		fillBlank(1014, "The baby ______ (cry) when he is hungry.", "cries",
			"For verbs ending in consonant + y, change 'y' to 'i' and add 'es'."),
		fillBlank(1015, "The library ______ (open) at 8 AM.", "opens",
			"Use the -s form for singular subjects (the library = it)."),
		orderWords(1016, "Order the words to form a negative sentence:", []string{"not", "play", "tennis", "I", "do"},
			"I do not play tennis",
			"Standard negative structure: Subject + do/does + not + base verb + object."),
		orderWords(1017, "Order the words to form a correct sentence:", []string{"always", "early", "He", "arrives"},
			"He always arrives early",
			"Frequency adverbs (always) usually go before the main verb."),
	},
}

// Topics returns the topics that have a built-in focus bank, sorted.
func Topics() []string {
	out := make([]string, 0, len(focusBanks))
	for k := range focusBanks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// FocusBank returns a copy of the built-in questions for topic, or nil
// when the topic has no bank.
func FocusBank(topic string) []Question {
	bank, ok := focusBanks[topic]
	if !ok {
		return nil
	}
	out := make([]Question, len(bank))
	copy(out, bank)
	return out
}
