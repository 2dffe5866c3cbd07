package api

import (
	"bytes"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/kidandcat/tracker/internal/db"
)

// Raw HTML in the source is escaped; goldmark only passes it through with
// html.WithUnsafe.
var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

func renderMarkdown(src string) string {
	if src == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return ""
	}
	return buf.String()
}

type issueView struct {
	*db.Issue
	DescriptionHTML string `json:"descriptionHtml"`
}

func viewIssue(is *db.Issue) issueView {
	return issueView{Issue: is, DescriptionHTML: renderMarkdown(is.Description)}
}

func viewIssues(list []db.Issue) []issueView {
	out := make([]issueView, len(list))
	for i := range list {
		out[i] = viewIssue(&list[i])
	}
	return out
}

type commentView struct {
	*db.Comment
	ContentHTML string `json:"contentHtml"`
}

func viewComment(cm *db.Comment) commentView {
	return commentView{Comment: cm, ContentHTML: renderMarkdown(cm.Content)}
}
