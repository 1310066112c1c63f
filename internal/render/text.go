package render

import (
	"fmt"
	"io"
	"strings"
)

// Text renders a plain transcript. Mentions are wrapped in ** and media
// are listed by path.
type Text struct{}

// FileName implements Serializer.
func (Text) FileName() string { return "rendered.txt" }

// Serialize implements Serializer.
func (Text) Serialize(w io.Writer, doc *Document) error {
	var sb strings.Builder
	sb.WriteString(doc.Title + "\n")
	sb.WriteString(strings.Repeat("=", max(len([]rune(doc.Title)), 1)) + "\n")

	for _, it := range doc.Items {
		switch v := it.(type) {
		case *DaySeparator:
			fmt.Fprintf(&sb, "\n--- %s ---\n", v.Timestamp)
		case *SystemMessage:
			fmt.Fprintf(&sb, "[%s] * %s\n", v.Timestamp, v.Text)
		case *UserMessage:
			fmt.Fprintf(&sb, "[%s] %s:", v.Timestamp, v.Author)
			if len(v.Body) > 0 {
				sb.WriteByte(' ')
				for _, s := range v.Body {
					if s.Bold {
						sb.WriteString("**" + s.Text + "**")
					} else {
						sb.WriteString(s.Text)
					}
				}
			}
			sb.WriteByte('\n')
			for _, m := range v.Media {
				fmt.Fprintf(&sb, "    [%s] %s\n", m.Kind, m.Src)
			}
			if v.Likes.Filled {
				fmt.Fprintf(&sb, "    liked by %s\n", strings.Join(v.Likes.Names, ", "))
			}
		default:
			return fmt.Errorf("render text: unsupported item %T", it)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}
