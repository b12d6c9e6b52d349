package document

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type Page struct {
	Number int    `json:"page_num"`
	Text   string `json:"text"`
}

// Label is the page's key in the extracted mapping, e.g. "page_3".
func (p Page) Label() string { return "page_" + strconv.Itoa(p.Number) }

// PageText is the per-page text of one document, in physical page order.
type PageText []Page

func newPageText(pages []string) PageText {
	out := make(PageText, len(pages))
	for i, text := range pages {
		out[i] = Page{Number: i + 1, Text: strings.TrimSpace(text)}
	}
	return out
}

// Blank reports whether no page carries any text.
func (pt PageText) Blank() bool {
	for _, p := range pt {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

func (pt PageText) Map() map[string]string {
	m := make(map[string]string, len(pt))
	for _, p := range pt {
		m[p.Label()] = p.Text
	}
	return m
}

func (pt PageText) Labels() []string {
	labels := make([]string, len(pt))
	for i, p := range pt {
		labels[i] = p.Label()
	}
	return labels
}

// MarshalJSON encodes pt as an object keyed by label, keeping page order.
func (pt PageText) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range pt {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(p.Label())
		val, err := json.Marshal(p.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
