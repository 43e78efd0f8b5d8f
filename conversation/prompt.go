package conversation

import (
	"fmt"
	"strings"
)

type Quality string

const (
	QualitySimple   Quality = "simple"
	QualityNormal   Quality = "normal"
	QualityDetailed Quality = "detailed"
)

type Tone string

const (
	ToneCasual Tone = "casual"
	ToneNormal Tone = "normal"
	ToneStrict Tone = "strict"
)

// FallbackSystemPrompt is used when no system prompt file is configured.
const FallbackSystemPrompt = "質問に対して必要最小限の情報のみを簡潔に回答してください。" +
	"前置き、導入文、補足説明、背景情報は一切不要です。" +
	"質問された内容に直接答える核心部分のみを端的に記述してください。" +
	"冗長な表現や装飾的な言葉は避け、事実を箇条書きまたは短い文で述べてください。"

var qualityInstructions = map[Quality]string{
	QualitySimple:   "回答はできるだけ短く、要点だけに絞ってください。",
	QualityNormal:   "回答は要点を押さえつつ、必要な範囲で理由や例を添えてください。",
	QualityDetailed: "回答は網羅的に、背景や具体例、注意点まで含めて詳しく説明してください。",
}

var toneInstructions = map[Tone]string{
	ToneCasual: "親しみやすいくだけた口調で答えてください。",
	ToneNormal: "落ち着いた中立的な口調で答えてください。",
	ToneStrict: "です・ます調の厳格で正確な口調で答えてください。",
}

const (
	detailTemplate      = "「%s」についてもっと詳しく教えてください。"
	notResolvedTemplate = "以下の回答では解決していません。別の視点から詳しく教えてください。\n\n%s"
)

func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := qualityInstructions[q]; !ok {
		return "", fmt.Errorf("unknown quality %q", s)
	}
	return q, nil
}

func ParseTone(s string) (Tone, error) {
	t := Tone(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := toneInstructions[t]; !ok {
		return "", fmt.Errorf("unknown tone %q", s)
	}
	return t, nil
}

// ComposeSystemDirective joins the base prompt with the quality and tone
// instructions. Unknown presets fall back to normal.
func ComposeSystemDirective(base string, q Quality, t Tone) string {
	base = strings.TrimSpace(base)
	if base == "" {
		base = FallbackSystemPrompt
	}
	qi, ok := qualityInstructions[q]
	if !ok {
		qi = qualityInstructions[QualityNormal]
	}
	ti, ok := toneInstructions[t]
	if !ok {
		ti = toneInstructions[ToneNormal]
	}
	return base + "\n\n" + qi + "\n" + ti
}

// ComposeUserTurn is the text sent to the model for a question. The stored
// question keeps only the literal text.
func ComposeUserTurn(text string, withActions bool) string {
	if !withActions {
		return text
	}
	return text + ActionsInstruction
}

// DetailPrompt asks for elaboration on a selected span.
func DetailPrompt(selection string) string {
	return fmt.Sprintf(detailTemplate, selection)
}

// RetryPrompt re-asks with the unsatisfying answer quoted.
func RetryPrompt(answer string) string {
	return fmt.Sprintf(notResolvedTemplate, answer)
}
