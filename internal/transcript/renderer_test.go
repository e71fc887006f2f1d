package transcript

import (
	"strings"
	"testing"
	"time"

	"transcripthost/internal/domain"
)

var fixedNow = time.Date(2025, 3, 9, 17, 5, 6, 0, time.UTC)

func newTestRenderer() *Renderer {
	return NewRenderer(RendererConfig{Now: func() time.Time { return fixedNow }})
}

func TestRenderMessage(t *testing.T) {
	msgs := []domain.Message{{
		ID:        "m1",
		Author:    domain.Author{ID: "7", Username: "alice"},
		Content:   "**hi** <@42>",
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
	doc := newTestRenderer().Render(msgs, domain.ChannelContext{ID: "10", Name: "ticket-1", GuildID: "20"})
	out := string(doc.HTML)

	for _, want := range []string{
		"<strong>hi</strong>",
		`<span class="mention">@User</span>`,
		"alice",
		"1/1/2024, 12:00:00 AM",
		"#ticket-1",
		"Generated on 3/9/2025, 5:05:06 PM",
		DefaultAvatarURL,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "42") {
		t.Error("mention id leaked into output")
	}
	if doc.MessageCount != 1 {
		t.Errorf("MessageCount = %d, want 1", doc.MessageCount)
	}
	if !doc.GeneratedAt.Equal(fixedNow) {
		t.Errorf("GeneratedAt = %v, want %v", doc.GeneratedAt, fixedNow)
	}
}

func TestRenderEmpty(t *testing.T) {
	doc := newTestRenderer().Render(nil, domain.ChannelContext{ID: "1", Name: "empty"})
	out := string(doc.HTML)
	if !strings.HasPrefix(out, "<!DOCTYPE html>") {
		t.Fatalf("output is not a full document: %.60q", out)
	}
	if strings.Contains(out, `class="message"`) {
		t.Error("empty transcript rendered a message block")
	}
	if !strings.Contains(out, "Messages: 0") {
		t.Error("missing message count")
	}
}

func TestRenderEscapesAuthorAndEmbeds(t *testing.T) {
	msgs := []domain.Message{{
		Author: domain.Author{ID: "1", Username: "<b>mallory</b>"},
		Embeds: []domain.Embed{{Title: "<i>t</i>", Description: "**d** <x>"}},
	}}
	out := string(newTestRenderer().Render(msgs, domain.ChannelContext{Name: "c"}).HTML)
	if strings.Contains(out, "<b>mallory</b>") || strings.Contains(out, "<i>t</i>") {
		t.Error("author or embed title rendered unescaped")
	}
	if !strings.Contains(out, "&lt;b&gt;mallory&lt;/b&gt;") {
		t.Error("escaped author name missing")
	}
	if !strings.Contains(out, "<strong>d</strong> &lt;x&gt;") {
		t.Error("embed description not formatted")
	}
}

func TestRenderDegradesMissingFields(t *testing.T) {
	msgs := []domain.Message{
		{Author: domain.Author{ID: "1", Username: "nobody"}},
		{Author: domain.Author{ID: "2", Username: "u", GlobalName: "Shown Name", Avatar: "abc"}, Content: "x"},
	}
	out := string(newTestRenderer().Render(msgs, domain.ChannelContext{Name: "c"}).HTML)
	if strings.Count(out, `class="message"`) != 2 {
		t.Fatalf("want 2 message blocks")
	}
	if !strings.Contains(out, "Shown Name") {
		t.Error("global name not preferred")
	}
	if !strings.Contains(out, "avatars/2/abc.png") {
		t.Error("custom avatar URL missing")
	}
	if strings.Contains(out, `class="embed"`) || strings.Contains(out, `class="attachment"`) {
		t.Error("absent embeds or attachments produced output")
	}
}

func TestRenderAttachments(t *testing.T) {
	msgs := []domain.Message{{
		Author: domain.Author{ID: "1", Username: "a"},
		Attachments: []domain.Attachment{
			{URL: "https://cdn.example.com/cat.png", Filename: "cat.png", ContentType: "image/png"},
			{URL: "https://cdn.example.com/doc.pdf", Filename: "doc.pdf", ContentType: "application/pdf"},
		},
	}}
	out := string(newTestRenderer().Render(msgs, domain.ChannelContext{Name: "c"}).HTML)
	if !strings.Contains(out, `<img src="https://cdn.example.com/cat.png" alt="cat.png" onerror="this.style.display='none'">`) {
		t.Error("image attachment not rendered inline")
	}
	if !strings.Contains(out, `<a href="https://cdn.example.com/doc.pdf" target="_blank" rel="noopener">doc.pdf</a>`) {
		t.Error("file attachment not rendered as link")
	}
}

func TestRenderKeepsOrder(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{Author: domain.Author{ID: "1", Username: "a"}, Content: "first", Timestamp: base},
		{Author: domain.Author{ID: "1", Username: "a"}, Content: "second", Timestamp: base.Add(time.Minute)},
	}
	out := string(newTestRenderer().Render(msgs, domain.ChannelContext{Name: "c"}).HTML)
	if strings.Index(out, "first") > strings.Index(out, "second") {
		t.Error("messages rendered out of order")
	}
}

func TestRenderLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	r := NewRenderer(RendererConfig{Now: func() time.Time { return fixedNow }, Location: loc})
	msgs := []domain.Message{{Author: domain.Author{Username: "a"}, Timestamp: time.Date(2024, 1, 1, 23, 30, 0, 0, time.UTC)}}
	out := string(r.Render(msgs, domain.ChannelContext{Name: "c"}).HTML)
	if !strings.Contains(out, "1/2/2024, 1:30:00 AM") {
		t.Error("timestamp not shifted to configured location")
	}
}
