package render

import (
	"fmt"
	"html"
	"io"
	"strings"
)

// FontURL is the web font linked from the HTML head.
const FontURL = "https://fonts.googleapis.com/css?family=Open+Sans"

// Serializer writes a Document in one output format.
type Serializer interface {
	// FileName is the document's name inside the archive directory.
	FileName() string
	Serialize(w io.Writer, doc *Document) error
}

// HTML renders the browsable page. Styling lives in main.css.
type HTML struct{}

// FileName implements Serializer.
func (HTML) FileName() string { return "rendered.html" }

// Serialize implements Serializer.
func (HTML) Serialize(w io.Writer, doc *Document) error {
	hw := &htmlWriter{w: w}
	hw.line("<!DOCTYPE html>")
	hw.line("<html>")
	hw.line("<head>")
	hw.line(`<meta charset="utf-8">`)
	hw.line("<title>%s</title>", esc(doc.Title))
	hw.line(`<link href="%s" rel="stylesheet">`, esc(FontURL))
	hw.line(`<link rel="stylesheet" href="main.css">`)
	hw.line("</head>")
	hw.line("<body>")
	hw.line(`<div id="container">`)
	hw.line("<h1>%s</h1>", esc(doc.Title))

	for _, it := range doc.Items {
		switch v := it.(type) {
		case *DaySeparator:
			hw.line(`<div class="message_container" style="background-color: #e4e4e4"><span class="system_message">%s</span></div>`, esc(v.Timestamp))
		case *SystemMessage:
			hw.line(`<div class="message_container" title="%s" style="background-color: #e4e4e4"><span class="system_message">%s</span></div>`, esc(v.Timestamp), esc(v.Text))
		case *UserMessage:
			hw.userMessage(v)
		default:
			return fmt.Errorf("render html: unsupported item %T", it)
		}
	}

	hw.line("</div>")
	hw.line("</body>")
	hw.line("</html>")
	return hw.err
}

// htmlWriter keeps the first write error so callers check once.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (hw *htmlWriter) line(format string, args ...any) {
	if hw.err != nil {
		return
	}
	if len(args) == 0 {
		_, hw.err = io.WriteString(hw.w, format+"\n")
		return
	}
	_, hw.err = fmt.Fprintf(hw.w, format+"\n", args...)
}

func (hw *htmlWriter) userMessage(m *UserMessage) {
	hw.line(`<div class="message_container" title="%s">`, esc(m.Timestamp))
	if m.Avatar.Image != "" {
		hw.line(`<div class="avatar"><img src="%s" alt=""></div>`, esc(m.Avatar.Image))
	} else {
		hw.line(`<div class="avatar">%s</div>`, esc(m.Avatar.Initials))
	}

	hw.line(`<div class="message_box">`)
	hw.line(`<span class="user">%s</span>`, esc(m.Author))
	for _, media := range m.Media {
		switch media.Kind {
		case MediaVideo:
			hw.line(`<span class="message"><video src="%s" controls></video></span>`, esc(media.Src))
		default:
			hw.line(`<span class="message"><img src="%s" alt=""></span>`, esc(media.Src))
		}
	}
	if len(m.Body) > 0 {
		var sb strings.Builder
		for _, s := range m.Body {
			weight := "normal"
			if s.Bold {
				weight = "bold"
			}
			fmt.Fprintf(&sb, `<span style="font-weight: %s;">%s</span>`, weight, esc(s.Text))
		}
		hw.line(`<span class="message">%s</span>`, sb.String())
	}
	hw.line("</div>")

	var names strings.Builder
	for _, n := range m.Likes.Names {
		fmt.Fprintf(&names, "<div>%s</div>", esc(n))
	}
	if m.Likes.Filled {
		hw.line(`<div class="likes tooltip"><img src="assets/heart-full.svg" alt="">%d<div class="tooltiptext">%s</div></div>`, m.Likes.Count, names.String())
	} else {
		hw.line(`<div class="likes"><img src="assets/heart.svg" alt=""></div>`)
	}
	hw.line("</div>")
}

func esc(s string) string {
	return html.EscapeString(s)
}
