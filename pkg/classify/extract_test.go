package classify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentifier_Priority(t *testing.T) {
	r := DefaultRules()

	tests := []struct {
		name    string
		payload any
		want    string
		ok      bool
	}{
		{"id wins", map[string]any{"id": "a", "chat_id": "b", "chat": map[string]any{"id": "c"}}, "a", true},
		{"chat_id next", map[string]any{"chat_id": "b", "chat": map[string]any{"id": "c"}}, "b", true},
		{"nested last", map[string]any{"chat": map[string]any{"id": "c"}}, "c", true},
		{"empty skipped", map[string]any{"id": "", "chat_id": "b"}, "b", true},
		{"numeric id", map[string]any{"id": float64(42)}, "42", true},
		{"nothing", map[string]any{"name": "x"}, "", false},
		{"not an object", "plain text", "", false},
		{"nil", nil, "", false},
		{"object id ignored", map[string]any{"id": map[string]any{"v": 1}}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Identifier(tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdentifier_ArrayIndexAndJSONPath(t *testing.T) {
	payload := map[string]any{
		"chats": []any{map[string]any{"id": "first"}, map[string]any{"id": "second"}},
	}

	got, ok := Rules{Extract: []string{"chats.1.id"}}.Identifier(payload)
	assert.True(t, ok)
	assert.Equal(t, "second", got)

	got, ok = Rules{Extract: []string{"$.chats[0].id"}}.Identifier(payload)
	assert.True(t, ok)
	assert.Equal(t, "first", got)

	got, ok = Rules{Extract: []string{"0.id"}}.Identifier([]any{map[string]any{"id": "top"}})
	assert.True(t, ok)
	assert.Equal(t, "top", got)
}

func TestWithExtract(t *testing.T) {
	r := DefaultRules()
	assert.Equal(t, DefaultExtract, r.WithExtract(nil).Extract)
	assert.Equal(t, []string{"url"}, r.WithExtract([]string{"url"}).Extract)
	assert.Equal(t, DefaultExtract, r.Extract)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultRules().Validate())
	assert.NoError(t, Rules{Extract: []string{"$.a[0]", "a.b.0"}}.Validate())

	for _, bad := range []string{"", "a..b", "$.a[", " "} {
		err := Rules{Extract: []string{bad}}.Validate()
		assert.True(t, errors.Is(err, ErrInvalidRule), "rule %q: %v", bad, err)
	}
}
