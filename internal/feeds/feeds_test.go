package feeds

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">
<channel>
  <title>National</title>
  <item>
    <title> RBI keeps repo rate unchanged </title>
    <link>https://news.test/rbi</link>
    <description>&lt;p&gt;The &lt;b&gt;MPC&lt;/b&gt; voted 5-1.&lt;/p&gt;</description>
    <pubDate>Mon, 02 Jan 2006 15:04:05 +0000</pubDate>
  </item>
  <item>
    <title>Long form</title>
    <link>https://news.test/long</link>
    <description>short</description>
    <content:encoded><![CDATA[<p>Much longer body text here.</p>]]></content:encoded>
  </item>
</channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>PIB</title>
  <entry>
    <title>Cabinet approves mission</title>
    <link rel="self" href="https://pib.test/self"/>
    <link rel="alternate" href="https://pib.test/mission"/>
    <summary>Green hydrogen mission approved.</summary>
    <updated>2025-01-02T10:00:00+05:30</updated>
    <id>tag:pib,1</id>
  </entry>
</feed>`

func TestParseRSS(t *testing.T) {
	items, err := Parse([]byte(rssDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	first := items[0]
	if first.Title != "RBI keeps repo rate unchanged" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Description != "The MPC voted 5-1." {
		t.Errorf("description = %q", first.Description)
	}
	if first.Published != "2006-01-02T15:04:05Z" {
		t.Errorf("published = %q", first.Published)
	}
	if items[1].Description != "Much longer body text here." {
		t.Errorf("content:encoded not preferred: %q", items[1].Description)
	}
}

func TestParseAtom(t *testing.T) {
	items, err := Parse([]byte(atomDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want 1", len(items))
	}
	if items[0].Link != "https://pib.test/mission" {
		t.Errorf("link = %q, want alternate link", items[0].Link)
	}
	if items[0].Published != "2025-01-02T04:30:00Z" {
		t.Errorf("published = %q", items[0].Published)
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("<html><body>not a feed</body></html>")); err == nil {
		t.Error("expected error for non-feed document")
	}
}

func TestManagerFetch(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		switch r.URL.Path {
		case "/rss":
			w.Write([]byte(rssDoc))
		case "/atom":
			w.Write([]byte(atomDoc))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	m := NewManager(time.Second, "test-agent")
	ctx := context.Background()

	if items, err := m.Fetch(ctx, server.URL+"/rss"); err != nil || len(items) != 2 {
		t.Errorf("rss fetch = %d items, %v", len(items), err)
	}
	if gotUA != "test-agent" {
		t.Errorf("User-Agent = %q", gotUA)
	}
	if items, err := m.Fetch(ctx, server.URL+"/atom"); err != nil || len(items) != 1 {
		t.Errorf("atom fetch = %d items, %v", len(items), err)
	}
	if _, err := m.Fetch(ctx, server.URL+"/broken"); err == nil {
		t.Error("expected error for 500 response")
	}
}
