package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGeminiContents(t *testing.T) {
	contents, system := buildGeminiContents([]Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	})

	require.NotNil(t, system)
	assert.Equal(t, "be brief", system.Parts[0].Text)

	require.Len(t, contents, 2)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "hello", contents[1].Parts[0].Text)
}

func TestBuildGeminiContentsSystemOnly(t *testing.T) {
	contents, system := buildGeminiContents([]Message{
		{Role: RoleSystem, Content: "summarize this"},
	})

	assert.Empty(t, contents)
	require.NotNil(t, system)
}

func TestNewGeminiGatewayRequiresKey(t *testing.T) {
	_, err := NewGeminiGateway("", "")
	require.Error(t, err)
}
