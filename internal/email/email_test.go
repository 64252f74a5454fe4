package email

import (
	"context"
	"errors"
	"strings"
	"testing"

	"civicbriefs/internal/config"
	"civicbriefs/internal/core"
)

type fakeSender struct {
	fail map[string]bool
	sent map[string]string
}

func (f *fakeSender) Send(_ context.Context, from, to string, msg []byte) error {
	if f.fail[to] {
		return errors.New("mailbox unavailable")
	}
	if f.sent == nil {
		f.sent = map[string]string{}
	}
	f.sent[to] = string(msg)
	return nil
}

func testCapsule() *core.Capsule {
	return &core.Capsule{Date: "2025-03-14", Items: []core.CapsuleItem{{
		Title:   "Court on federalism",
		URL:     "https://news.test/court",
		Summary: "- The court ruled.",
		Topics:  []core.CapsuleTopic{{Paper: core.PaperGS2, Topic: "Polity", Score: 0.4}},
	}}}
}

func TestGetDefaultEmailTemplate(t *testing.T) {
	tmpl := GetDefaultEmailTemplate()
	if tmpl.Name != "default" {
		t.Errorf("Expected name 'default', got '%s'", tmpl.Name)
	}
	if tmpl.HeaderColor == "" || tmpl.FontFamily == "" {
		t.Error("colors and font should not be empty")
	}
}

func TestGenerateSubject(t *testing.T) {
	got, err := GenerateSubject(GetDefaultEmailTemplate(), "", "2025-03-14")
	if err != nil {
		t.Fatalf("GenerateSubject failed: %v", err)
	}
	if got != "Daily UPSC Capsule - 2025-03-14" {
		t.Errorf("subject = %q", got)
	}
}

func TestMarkdownToHTML(t *testing.T) {
	if MarkdownToHTML("") != "" {
		t.Error("empty markdown should render empty")
	}
	got := string(MarkdownToHTML("### Title\n\n[Source](https://news.test/a)\n"))
	if !strings.Contains(got, "<h3") || !strings.Contains(got, `target="_blank"`) {
		t.Errorf("html = %s", got)
	}
}

func TestRenderHTMLEmail(t *testing.T) {
	out, err := RenderHTMLEmail(EmailData{Title: "Daily", Date: "2025-03-14", Body: MarkdownToHTML("**bold**")}, GetDefaultEmailTemplate())
	if err != nil {
		t.Fatalf("RenderHTMLEmail failed: %v", err)
	}
	for _, want := range []string{"<!DOCTYPE html>", "<title>Daily</title>", "<strong>bold</strong>", "max-width: 800px"} {
		if !strings.Contains(out, want) {
			t.Errorf("email missing %q", want)
		}
	}
}

func TestSendCapsuleNotConfigured(t *testing.T) {
	n := NewNotifier(config.Email{SMTP: config.SMTPConfig{Host: "smtp.test", Port: 587}})
	if n.Configured() {
		t.Fatal("notifier without credentials should be unconfigured")
	}
	sent, failed := n.SendCapsule(context.Background(), testCapsule(), []string{"a@test", "b@test"})
	if sent != 0 || failed != 2 {
		t.Errorf("sent=%d failed=%d, want 0/2", sent, failed)
	}
}

func TestSendCapsuleCounts(t *testing.T) {
	sender := &fakeSender{fail: map[string]bool{"bad@test": true}}
	n := NewNotifierWithSender("briefs@test", sender)

	sent, failed := n.SendCapsule(context.Background(), testCapsule(), []string{"a@test", "bad@test", "c@test"})
	if sent != 2 || failed != 1 {
		t.Errorf("sent=%d failed=%d, want 2/1", sent, failed)
	}

	msg := sender.sent["a@test"]
	for _, want := range []string{
		"From: briefs@test\r\n",
		"To: a@test\r\n",
		"Subject: Daily UPSC Capsule - 2025-03-14\r\n",
		"Content-Type: text/html",
		"Court on federalism",
		"GS2: Polity (0.40)",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}
