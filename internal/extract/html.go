package extract

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	multiNewlinePattern = regexp.MustCompile(`\n{3,}`)
	multiSpacePattern   = regexp.MustCompile(`[ \t]{2,}`)
)

// htmlToMarkdown converts HTML to simplified markdown and returns the page
// title alongside it.
func htmlToMarkdown(htmlContent string) (string, string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", "", err
	}

	var sb strings.Builder
	var title string
	extractText(doc, &sb, &title, 0)
	return cleanMarkdown(sb.String()), strings.TrimSpace(title), nil
}

func extractText(n *html.Node, sb *strings.Builder, title *string, depth int) {
	if depth > 64 {
		return
	}

	switch n.Type {
	case html.TextNode:
		text := strings.TrimSpace(n.Data)
		if text != "" {
			sb.WriteString(text)
			sb.WriteString(" ")
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "noscript", "iframe", "svg", "nav", "footer", "header":
			return
		case "title":
			if n.FirstChild != nil && *title == "" {
				*title = n.FirstChild.Data
			}
			return
		case "h1", "h2", "h3", "h4", "h5", "h6":
			level := int(n.Data[1] - '0')
			sb.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		case "p", "div", "section", "article":
			sb.WriteString("\n\n")
		case "br":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "pre":
			sb.WriteString("\n\n```" + codeLanguage(n) + "\n")
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				writeRaw(c, sb)
			}
			sb.WriteString("\n```\n\n")
			return
		case "code":
			var code strings.Builder
			writeRaw(n, &code)
			sb.WriteString("`" + strings.TrimSpace(code.String()) + "` ")
			return
		case "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		case "img":
			if alt := getAttr(n, "alt"); alt != "" {
				sb.WriteString(fmt.Sprintf("[Image: %s]", alt))
			}
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		extractText(c, sb, title, depth+1)
	}

	if n.Type == html.ElementNode {
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n")
		case "strong", "b":
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
		}
	}
}

// writeRaw copies text inside <pre> verbatim.
func writeRaw(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeRaw(c, sb)
	}
}

// codeLanguage reads a language-xxx class from a <pre> or its <code> child.
func codeLanguage(pre *html.Node) string {
	nodes := []*html.Node{pre}
	if pre.FirstChild != nil && pre.FirstChild.Type == html.ElementNode && pre.FirstChild.Data == "code" {
		nodes = append(nodes, pre.FirstChild)
	}
	for _, node := range nodes {
		for _, class := range strings.Fields(getAttr(node, "class")) {
			if lang, ok := strings.CutPrefix(class, "language-"); ok {
				return lang
			}
			if lang, ok := strings.CutPrefix(class, "lang-"); ok {
				return lang
			}
		}
	}
	return ""
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// cleanMarkdown removes excessive whitespace outside code fences.
func cleanMarkdown(s string) string {
	var out []string
	inFence := false
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			out = append(out, strings.TrimSpace(line))
			continue
		}
		if inFence {
			out = append(out, line)
			continue
		}
		out = append(out, strings.TrimSpace(multiSpacePattern.ReplaceAllString(line, " ")))
	}
	s = strings.Join(out, "\n")
	s = multiNewlinePattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
