package notion

import (
	"context"
	"fmt"
	"strings"
)

const maxDepth = 8

// Expander returns readable text for a linked URL.
type Expander interface {
	Expand(ctx context.Context, url string) (string, error)
}

// PageContent exports a page's blocks as Markdown text.
func (c *Client) PageContent(ctx context.Context, pageID string) (string, error) {
	blocks, err := c.tree(ctx, pageID, 0)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	c.render(ctx, &sb, blocks, 0)

	content := strings.TrimSpace(sb.String())
	c.logger.Info("exported page", "page_id", pageID, "blocks", len(blocks), "content_len", len(content))
	return content, nil
}

func (c *Client) tree(ctx context.Context, blockID string, depth int) ([]Block, error) {
	blocks, err := c.blockChildren(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if depth >= maxDepth {
		return blocks, nil
	}
	for i := range blocks {
		// Child pages are separate documents.
		if !blocks[i].HasChildren || blocks[i].Type == "child_page" {
			continue
		}
		children, err := c.tree(ctx, blocks[i].ID, depth+1)
		if err != nil {
			return nil, err
		}
		blocks[i].Children = children
	}
	return blocks, nil
}

func (c *Client) render(ctx context.Context, sb *strings.Builder, blocks []Block, depth int) {
	indent := strings.Repeat("  ", depth)
	number := 0

	for _, b := range blocks {
		if b.Type == "numbered_list_item" {
			number++
		} else {
			number = 0
		}

		text := markdownText(b.Content.RichText)
		nested := depth + 1

		switch b.Type {
		case "paragraph":
			if text != "" {
				writeLine(sb, indent, text)
				sb.WriteString("\n")
			}
		case "heading_1":
			writeLine(sb, indent, "# "+text)
			sb.WriteString("\n")
		case "heading_2":
			writeLine(sb, indent, "## "+text)
			sb.WriteString("\n")
		case "heading_3":
			writeLine(sb, indent, "### "+text)
			sb.WriteString("\n")
		case "bulleted_list_item", "toggle":
			writeLine(sb, indent, "- "+text)
		case "numbered_list_item":
			writeLine(sb, indent, fmt.Sprintf("%d. %s", number, text))
		case "to_do":
			box := "[ ]"
			if b.Content.Checked {
				box = "[x]"
			}
			writeLine(sb, indent, "- "+box+" "+text)
		case "quote", "callout":
			for _, line := range strings.Split(text, "\n") {
				writeLine(sb, indent, "> "+line)
			}
			sb.WriteString("\n")
		case "code":
			writeLine(sb, indent, "```"+b.Content.Language)
			for _, line := range strings.Split(plainText(b.Content.RichText), "\n") {
				writeLine(sb, indent, line)
			}
			writeLine(sb, indent, "```")
			sb.WriteString("\n")
		case "equation":
			writeLine(sb, indent, "$$"+b.Content.Expression+"$$")
			sb.WriteString("\n")
		case "divider":
			writeLine(sb, indent, "---")
			sb.WriteString("\n")
		case "child_page":
			writeLine(sb, indent, "["+b.Content.Title+"]")
			sb.WriteString("\n")
		case "bookmark", "link_preview", "embed":
			c.renderLink(ctx, sb, indent, b)
		case "image", "video", "file", "pdf":
			if caption := markdownText(b.Content.Caption); caption != "" {
				writeLine(sb, indent, caption)
				sb.WriteString("\n")
			}
		default:
			// Containers such as columns and synced blocks keep their children flat.
			nested = depth
			if text != "" {
				writeLine(sb, indent, text)
				sb.WriteString("\n")
			}
		}

		if len(b.Children) > 0 {
			c.render(ctx, sb, b.Children, nested)
		}
	}
}

func (c *Client) renderLink(ctx context.Context, sb *strings.Builder, indent string, b Block) {
	if b.Content.URL == "" {
		return
	}
	label := markdownText(b.Content.Caption)
	if label == "" {
		label = b.Content.URL
	}
	writeLine(sb, indent, "["+label+"]("+b.Content.URL+")")
	sb.WriteString("\n")

	if c.expander == nil {
		return
	}
	text, err := c.expander.Expand(ctx, b.Content.URL)
	if err != nil {
		c.logger.Warn("bookmark expansion failed", "url", b.Content.URL, "error", err)
		return
	}
	if text = strings.TrimSpace(text); text != "" {
		for _, line := range strings.Split(text, "\n") {
			writeLine(sb, indent, "> "+line)
		}
		sb.WriteString("\n")
	}
}

func writeLine(sb *strings.Builder, indent, line string) {
	sb.WriteString(indent)
	sb.WriteString(line)
	sb.WriteString("\n")
}

// markdownText renders rich text runs with inline Markdown styling.
func markdownText(runs []RichText) string {
	var sb strings.Builder
	for _, r := range runs {
		s := r.PlainText
		if s == "" {
			continue
		}
		a := r.Annotations
		if a.Code {
			s = "`" + s + "`"
		}
		if a.Bold {
			s = "**" + s + "**"
		}
		if a.Italic {
			s = "*" + s + "*"
		}
		if a.Strikethrough {
			s = "~~" + s + "~~"
		}
		if r.Href != "" {
			s = "[" + s + "](" + r.Href + ")"
		}
		sb.WriteString(s)
	}
	return sb.String()
}
