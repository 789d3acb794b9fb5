package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mixelka/massmailer/internal/parser"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	n := parser.NewBodyNormalizer()

	t.Run("plain text passes through untouched", func(t *testing.T) {
		t.Parallel()

		body := "Hello,\n\nThe report is attached.\n\nBest,\nAlice"
		got, err := n.Normalize(body)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("stray angle bracket is not markup", func(t *testing.T) {
		t.Parallel()

		body := "Revenue grew by > 20% and costs stayed < budget"
		got, err := n.Normalize(body)
		require.NoError(t, err)
		assert.Equal(t, body, got)
	})

	t.Run("paragraphs become lines", func(t *testing.T) {
		t.Parallel()

		got, err := n.Normalize("<html><body><p>Hello</p><p>World</p></body></html>")
		require.NoError(t, err)
		assert.Equal(t, "Hello\nWorld", got)
	})

	t.Run("scripts and styles are dropped", func(t *testing.T) {
		t.Parallel()

		body := `<html><head><style>p { color: red }</style></head>` +
			`<body><p>Visible</p><script>alert("hidden")</script></body></html>`
		got, err := n.Normalize(body)
		require.NoError(t, err)
		assert.Equal(t, "Visible", got)
	})

	t.Run("list items become lines", func(t *testing.T) {
		t.Parallel()

		got, err := n.Normalize("<ul><li>First</li><li>Second</li></ul>")
		require.NoError(t, err)
		assert.Equal(t, "First\nSecond", got)
	})

	t.Run("invisible characters are removed", func(t *testing.T) {
		t.Parallel()

		got, err := n.Normalize("<p>Zero​width\ufeff</p>")
		require.NoError(t, err)
		assert.Equal(t, "Zerowidth", got)
	})

	t.Run("runs of whitespace collapse", func(t *testing.T) {
		t.Parallel()

		got, err := n.Normalize("<div>Too     many\t\tspaces</div>")
		require.NoError(t, err)
		assert.Equal(t, "Too many spaces", got)
	})

	t.Run("line breaks split text", func(t *testing.T) {
		t.Parallel()

		got, err := n.Normalize("<p>First line<br>Second line</p>")
		require.NoError(t, err)
		assert.Equal(t, "First line\nSecond line", got)
	})
}
