package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePresets(t *testing.T) {
	q, err := ParseQuality(" Detailed ")
	require.NoError(t, err)
	assert.Equal(t, QualityDetailed, q)

	_, err = ParseQuality("verbose")
	assert.Error(t, err)

	tone, err := ParseTone("casual")
	require.NoError(t, err)
	assert.Equal(t, ToneCasual, tone)

	_, err = ParseTone("")
	assert.Error(t, err)
}

func TestComposeSystemDirective(t *testing.T) {
	d := ComposeSystemDirective("", QualitySimple, ToneStrict)
	assert.True(t, strings.HasPrefix(d, FallbackSystemPrompt))
	assert.Contains(t, d, qualityInstructions[QualitySimple])
	assert.Contains(t, d, toneInstructions[ToneStrict])

	d = ComposeSystemDirective("  base  ", "", "")
	assert.True(t, strings.HasPrefix(d, "base\n\n"))
	assert.Contains(t, d, qualityInstructions[QualityNormal])
	assert.Contains(t, d, toneInstructions[ToneNormal])
}

func TestTemplates(t *testing.T) {
	assert.Equal(t, "「X is」についてもっと詳しく教えてください。", DetailPrompt("X is"))
	assert.Equal(t, "以下の回答では解決していません。別の視点から詳しく教えてください。\n\nold", RetryPrompt("old"))
}
