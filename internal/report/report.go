package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/tierklinik-dobersberg/logfilter-service/internal/colorutil"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed report.md.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Parse(reportTemplate))

var levelColors = map[logcat.Level]string{
	logcat.LevelVerbose: "#bbbbbb",
	logcat.LevelDebug:   "#305d78",
	logcat.LevelInfo:    "#6a8759",
	logcat.LevelWarn:    "#bbb529",
	logcat.LevelError:   "#cf5b56",
	logcat.LevelAssert:  "#7f0000",
}

type Report struct {
	Title    string
	Query    string
	Total    int
	Messages []*logcat.Message
}

type Level struct {
	Letter     string
	Background string
	Foreground string
}

type Row struct {
	Time    string
	Level   Level
	Tag     string
	App     string
	Message string
}

// Context is passed to the report template. Title and Query are already
// escaped markdown.
type Context struct {
	Title   string
	Query   string
	Total   int
	Shown   int
	Created string
	Rows    []Row
}

func markdownToHTML(md string) (string, error) {
	renderer := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
			html.WithUnsafe(),
		),
	)

	var buf bytes.Buffer
	if err := renderer.Convert([]byte(md), &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func NewContext(r Report) *Context {
	ctx := &Context{
		Title:   inline(r.Title),
		Query:   codeSpan(r.Query),
		Total:   r.Total,
		Shown:   len(r.Messages),
		Created: time.Now().Format(time.DateTime),
		Rows:    make([]Row, len(r.Messages)),
	}

	if r.Title == "" {
		ctx.Title = "Logcat report"
	}

	if r.Query == "" {
		ctx.Query = codeSpan("(none)")
	}

	for idx, m := range r.Messages {
		bg := levelColors[m.Level]

		ctx.Rows[idx] = Row{
			Time: m.Timestamp.Format(logcat.TimestampFormat),
			Level: Level{
				Letter:     m.Level.Letter(),
				Background: bg,
				Foreground: colorutil.Foreground(bg),
			},
			Tag:     cell(m.Tag),
			App:     cell(m.ApplicationID),
			Message: cell(m.Message),
		}
	}

	return ctx
}

// Markdown renders r as a GFM document.
func Markdown(r Report) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, NewContext(r)); err != nil {
		return "", fmt.Errorf("failed to execute report template: %w", err)
	}

	return buf.String(), nil
}

// HTML renders r as HTML.
func HTML(r Report) (string, error) {
	md, err := Markdown(r)
	if err != nil {
		return "", err
	}

	return markdownToHTML(md)
}

var cellReplacer = strings.NewReplacer(
	"|", `\|`,
	"\n", "<br/>",
	"<", "&lt;",
	">", "&gt;",
)

// cell escapes s for use inside a markdown table cell.
func cell(s string) string {
	return cellReplacer.Replace(s)
}

var inlineReplacer = strings.NewReplacer(
	"\\", `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\n", " ",
)

// inline escapes s for use as plain markdown text.
func inline(s string) string {
	return inlineReplacer.Replace(s)
}

// codeSpan wraps s in a code span whose fence is longer than any backtick
// run inside s.
func codeSpan(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")

	longest, run := 0, 0
	for _, c := range s {
		if c != '`' {
			run = 0
			continue
		}

		run++
		longest = max(longest, run)
	}

	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		s = " " + s + " "
	}

	fence := strings.Repeat("`", longest+1)

	return fence + s + fence
}
