package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderFollowUpEscapesNoteAndSplitsParagraphs(t *testing.T) {
	subject, html, err := renderFollowUp(FollowUpNote{
		LeadName:  "Ana",
		LeadEmail: "a@x.com",
		Score:     82,
		Note:      "Group of 8 in July.\n\nCall <today>.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Qualified lead: Ana (score 82)", subject)
	assert.Contains(t, html, "<p style=\"line-height: 1.5;\">Group of 8 in July.</p>")
	assert.Contains(t, html, "Call &lt;today&gt;.")
	assert.NotContains(t, html, "Company")
}

func TestParagraphsDropsBlankBlocks(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, paragraphs("a\r\n\r\n\n\n b \n\n"))
	assert.Nil(t, paragraphs("   "))
}
