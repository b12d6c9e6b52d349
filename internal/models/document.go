package models

import "fmt"

// SourceRef points at the page a piece of text came from.
type SourceRef struct {
	Filename string `json:"filename"`
	PageNum  int    `json:"page_num"`
}

func (s SourceRef) String() string { return fmt.Sprintf("%s#page=%d", s.Filename, s.PageNum) }

// Document is one page of extracted text, ready for indexing.
type Document struct {
	Text     string    `json:"text"`
	Metadata SourceRef `json:"metadata"`
}

// AnswerResult is the reply to a document question. Sources follow
// retrieval rank and may repeat a page.
type AnswerResult struct {
	Answer  string      `json:"answer"`
	Sources []SourceRef `json:"sources"`
}

// Pages returns the distinct page numbers cited, in first-seen order.
func (a AnswerResult) Pages() []int {
	seen := make(map[int]bool, len(a.Sources))
	var pages []int
	for _, s := range a.Sources {
		if !seen[s.PageNum] {
			seen[s.PageNum] = true
			pages = append(pages, s.PageNum)
		}
	}
	return pages
}
