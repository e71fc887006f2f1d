// Package transcript turns normalized chat messages into a self-contained
// HTML transcript.
package transcript

import (
	"regexp"
	"strconv"
	"strings"
)

// Transform is one text-to-text step of the content formatter.
type Transform struct {
	Name  string
	Apply func(string) string
}

// Pipeline applies its transforms in order.
type Pipeline []Transform

func (p Pipeline) Run(text string) string {
	for _, t := range p {
		text = t.Apply(text)
	}
	return text
}

// DefaultPipeline is the message/embed formatter. Escaping must stay first and
// code extraction must precede the emphasis steps.
var DefaultPipeline = Pipeline{
	{Name: "escape", Apply: EscapeHTML},
	{Name: "newlines", Apply: ConvertNewlines},
	{Name: "user-mentions", Apply: ReplaceUserMentions},
	{Name: "channel-mentions", Apply: ReplaceChannelMentions},
	{Name: "role-mentions", Apply: ReplaceRoleMentions},
	{Name: "code-blocks", Apply: ReplaceCodeBlocks},
	{Name: "inline-code", Apply: ReplaceInlineCode},
	{Name: "bold", Apply: ReplaceBold},
	{Name: "italic", Apply: ReplaceItalic},
	{Name: "underline", Apply: ReplaceUnderline},
}

// Format converts raw message text to HTML.
func Format(text string) string {
	return DefaultPipeline.Run(text)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes & < > " and '. The replacer works in a single pass, so
// entities it inserts are never escaped again.
func EscapeHTML(text string) string {
	return htmlEscaper.Replace(text)
}

func ConvertNewlines(text string) string {
	return strings.ReplaceAll(text, "\n", "<br>")
}

// Mention tokens are matched in their escaped form.
var (
	userMentionRe    = regexp.MustCompile(`&lt;@!?\d+&gt;`)
	channelMentionRe = regexp.MustCompile(`&lt;#\d+&gt;`)
	roleMentionRe    = regexp.MustCompile(`&lt;@&amp;\d+&gt;`)
)

func ReplaceUserMentions(text string) string {
	return userMentionRe.ReplaceAllLiteralString(text, `<span class="mention">@User</span>`)
}

func ReplaceChannelMentions(text string) string {
	return channelMentionRe.ReplaceAllLiteralString(text, `<span class="mention">#channel</span>`)
}

func ReplaceRoleMentions(text string) string {
	return roleMentionRe.ReplaceAllLiteralString(text, `<span class="mention">@Role</span>`)
}

var (
	// The language tag only counts when a line break follows it.
	codeBlockRe  = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_+#.-]*<br>)?(.*?)```")
	inlineCodeRe = regexp.MustCompile("`([^`]+)`")
	strongEmRe   = regexp.MustCompile(`\*\*\*(.+?)\*\*\*`)
	boldRe       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe     = regexp.MustCompile(`\*(.+?)\*`)
	underlineRe  = regexp.MustCompile(`__(.+?)__`)

	codeRegionRe = regexp.MustCompile(`(?s)<pre class="code-block">.*?</pre>|<code class="inline-code">.*?</code>`)
	// Escaped text never contains a raw '<', so this cannot collide with input.
	codeMaskRe = regexp.MustCompile(`<\x00(\d+)>`)
)

func ReplaceCodeBlocks(text string) string {
	return codeBlockRe.ReplaceAllString(text, `<pre class="code-block"><code>${1}</code></pre>`)
}

func ReplaceInlineCode(text string) string {
	return betweenCode(text, func(s string) string {
		return inlineCodeRe.ReplaceAllString(s, `<code class="inline-code">${1}</code>`)
	})
}

func ReplaceBold(text string) string {
	return outsideCode(text, func(s string) string {
		s = strongEmRe.ReplaceAllString(s, `<strong><em>${1}</em></strong>`)
		return boldRe.ReplaceAllString(s, `<strong>${1}</strong>`)
	})
}

func ReplaceItalic(text string) string {
	return outsideCode(text, func(s string) string {
		return italicRe.ReplaceAllString(s, `<em>${1}</em>`)
	})
}

func ReplaceUnderline(text string) string {
	return outsideCode(text, func(s string) string {
		return underlineRe.ReplaceAllString(s, `<u>${1}</u>`)
	})
}

// outsideCode applies fn to text with every code element produced by
// ReplaceCodeBlocks or ReplaceInlineCode swapped for a placeholder, so
// delimiters may surround code while code content is kept verbatim.
func outsideCode(text string, fn func(string) string) string {
	var regions []string
	masked := codeRegionRe.ReplaceAllStringFunc(text, func(m string) string {
		regions = append(regions, m)
		return "<\x00" + strconv.Itoa(len(regions)-1) + ">"
	})
	if len(regions) == 0 {
		return fn(text)
	}
	return codeMaskRe.ReplaceAllStringFunc(fn(masked), func(p string) string {
		i, err := strconv.Atoi(p[2 : len(p)-1])
		if err != nil || i >= len(regions) {
			return p
		}
		return regions[i]
	})
}

// betweenCode applies fn separately to each stretch of text between code
// elements. Inline code uses it so a backtick pair never spans a code block.
func betweenCode(text string, fn func(string) string) string {
	regions := codeRegionRe.FindAllStringIndex(text, -1)
	if len(regions) == 0 {
		return fn(text)
	}
	var sb strings.Builder
	prev := 0
	for _, r := range regions {
		sb.WriteString(fn(text[prev:r[0]]))
		sb.WriteString(text[r[0]:r[1]])
		prev = r[1]
	}
	sb.WriteString(fn(text[prev:]))
	return sb.String()
}
