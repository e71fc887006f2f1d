package transcript

import (
	"html"
	"regexp"
	"strings"
	"testing"
)

func TestEscapeHTMLRoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain text",
		`<script>alert("x")</script>`,
		"a & b && c",
		"it's &amp; already",
		`'"<>&`,
		"&lt;not a tag&gt;",
	}
	for _, in := range inputs {
		got := EscapeHTML(in)
		if strings.ContainsAny(got, `<>"'`) {
			t.Errorf("EscapeHTML(%q) = %q, contains reserved characters", in, got)
		}
		if back := html.UnescapeString(got); back != in {
			t.Errorf("round trip of %q gave %q", in, back)
		}
	}
}

func TestFormatNeutralizesMarkup(t *testing.T) {
	got := Format(`<img src=x onerror="alert(1)">`)
	if strings.Contains(got, "<img") {
		t.Fatalf("raw tag survived formatting: %q", got)
	}
	want := "&lt;img src=x onerror=&quot;alert(1)&quot;&gt;"
	if got != want {
		t.Errorf("Format = %q, want %q", got, want)
	}
}

func TestFormatMentions(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"<@123>", `<span class="mention">@User</span>`},
		{"<@!123>", `<span class="mention">@User</span>`},
		{"<#456>", `<span class="mention">#channel</span>`},
		{"<@&789>", `<span class="mention">@Role</span>`},
		{"hi <@1> and <@2> in <#3>", `hi <span class="mention">@User</span> and <span class="mention">@User</span> in <span class="mention">#channel</span>`},
		{"<@abc>", "&lt;@abc&gt;"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatMentionsLeaveNoIDs(t *testing.T) {
	in := "<@111111> <@!222222> <#333333> <@&444444>"
	got := Format(in)
	if regexp.MustCompile(`\d{6}`).MatchString(got) {
		t.Errorf("identifier leaked into %q", got)
	}
}

func TestFormatPlainTextUnchanged(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello world", "hello world"},
		{"snake_case value", "snake_case value"},
		{"line one\nline two", "line one<br>line two"},
		{"5 * 3 = 15", "5 * 3 = 15"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatEmphasis(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"**bold**", "<strong>bold</strong>"},
		{"*it*", "<em>it</em>"},
		{"__under__", "<u>under</u>"},
		{"**a** and *b*", "<strong>a</strong> and <em>b</em>"},
		{"**unclosed", "**unclosed"},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatCode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline", "run `ls -la` now", `run <code class="inline-code">ls -la</code> now`},
		{"block", "```x := 1```", `<pre class="code-block"><code>x := 1</code></pre>`},
		{"block with language", "```go\nfmt.Println(1)\n```", `<pre class="code-block"><code>fmt.Println(1)<br></code></pre>`},
		{"escaped inside block", "```<b>&</b>```", `<pre class="code-block"><code>&lt;b&gt;&amp;&lt;/b&gt;</code></pre>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.in); got != tt.want {
				t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatCodeIsNotEmphasized(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"`a*b*c`", `<code class="inline-code">a*b*c</code>`},
		{"`**x**`", `<code class="inline-code">**x**</code>`},
		{"```__init__```", `<pre class="code-block"><code>__init__</code></pre>`},
		{"```a `b` c```", "<pre class=\"code-block\"><code>a `b` c</code></pre>"},
		{"*x* `*y*` *z*", `<em>x</em> <code class="inline-code">*y*</code> <em>z</em>`},
		{"**run `make` first**", `<strong>run <code class="inline-code">make</code> first</strong>`},
		{"*see `x` here*", `<em>see <code class="inline-code">x</code> here</em>`},
		{"__use `y` now__", `<u>use <code class="inline-code">y</code> now</u>`},
		{"**a ```b*c``` d**", `<strong>a <pre class="code-block"><code>b*c</code></pre> d</strong>`},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatStrongEmphasisNests(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"***both***", `<strong><em>both</em></strong>`},
		{"***a*** and **b**", `<strong><em>a</em></strong> and <strong>b</strong>`},
	}
	for _, tt := range tests {
		if got := Format(tt.in); got != tt.want {
			t.Errorf("Format(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultPipelineOrder(t *testing.T) {
	want := []string{
		"escape", "newlines", "user-mentions", "channel-mentions", "role-mentions",
		"code-blocks", "inline-code", "bold", "italic", "underline",
	}
	if len(DefaultPipeline) != len(want) {
		t.Fatalf("pipeline has %d steps, want %d", len(DefaultPipeline), len(want))
	}
	for i, step := range DefaultPipeline {
		if step.Name != want[i] {
			t.Errorf("step %d = %q, want %q", i, step.Name, want[i])
		}
	}
}
