package localization_test

import (
	"testing"

	"helpline/backend/internal/localization"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalizerLoadsEmbeddedLocales(t *testing.T) {
	l, err := localization.NewLocalizer()
	require.NoError(t, err)

	assert.Equal(t, "You have no active conversation to end.", l.GetString("en", "end_noop"))
	assert.NotEqual(t, "greeting", l.GetString("ru", "greeting"), "russian locale is loaded")
}

// TestEveryKeyExistsInEveryLocale keeps the locale files in lockstep: a key
// added to one language must be added to the others.
func TestEveryKeyExistsInEveryLocale(t *testing.T) {
	l, err := localization.NewLocalizer()
	require.NoError(t, err)

	keys := []string{
		"greeting",
		"conversation_started",
		"conversation_started_operator",
		"already_in_conversation",
		"client_is_operating",
		"no_operator_available",
		"not_in_conversation",
		"conversation_ended",
		"conversation_ended_operator",
		"end_noop",
		"operator_cannot_end",
		"reply_target_unresolved",
		"delivery_failed",
		"formatting_dropped",
		"unsupported_content",
		"media_group_unsupported",
		"feedback_prompt",
		"feedback_thanks",
		"feedback_duplicate",
		"unsupported_action",
		"internal_error",
		"mood_better",
		"mood_same",
		"mood_worse",
		"mood_skip",
	}

	for _, lang := range []string{"en", "ru"} {
		for _, key := range keys {
			assert.NotEqual(t, key, l.GetString(lang, key), "%s/%s is translated", lang, key)
		}
	}
}

func TestGetStringFallsBack(t *testing.T) {
	l, err := localization.NewLocalizer()
	require.NoError(t, err)

	english := l.GetString("en", "greeting")
	assert.Equal(t, english, l.GetString("de", "greeting"), "unknown language falls back to the default")
	assert.Equal(t, "no_such_key", l.GetString("en", "no_such_key"), "unknown key falls back to itself")
}
