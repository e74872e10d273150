package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dietcoach/internal/clock"
	"dietcoach/internal/models"
)

func TestChatClientRequestShape(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"Looks great! [[ADD: 320]]"}}]}`))
	}))
	defer srv.Close()

	clk := clock.NewManual(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC))
	c := NewChatClient(srv.URL+"/v1/", "sk-test", "gpt-test", 0.7, time.Second, clk)

	profile := models.DefaultProfile()
	profile.Name = "Supriya"
	stats := models.NewDailyStats("2024-01-01")
	stats.Meals = append(stats.Meals, models.MealLog{Time: "08:10", Description: "Poha", Calories: 250})

	window := []models.Message{
		{Role: models.RoleModel, Text: "Good morning"},
		{Role: models.RoleUser, Text: "Breakfast", Image: "data:image/jpeg;base64,AAAA"},
	}
	reply, err := c.Reply(context.Background(), window, profile, stats)
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Looks great! [[ADD: 320]]" {
		t.Fatalf("Unexpected reply %q", reply)
	}

	if got["model"] != "gpt-test" {
		t.Errorf("Unexpected model %v", got["model"])
	}
	msgs := got["messages"].([]any)
	if len(msgs) != 3 {
		t.Fatalf("Expected system + 2 messages, got %d", len(msgs))
	}
	system := msgs[0].(map[string]any)
	content := system["content"].(string)
	if system["role"] != "system" || !strings.Contains(content, "[[ADD: 350]]") ||
		!strings.Contains(content, "Name: Supriya") || !strings.Contains(content, "08:10: Poha (250kcal)") {
		t.Errorf("Unexpected system prompt %q", content)
	}
	if msgs[1].(map[string]any)["role"] != "assistant" {
		t.Errorf("Expected model turn mapped to assistant")
	}
	parts := msgs[2].(map[string]any)["content"].([]any)
	if len(parts) != 2 || parts[0].(map[string]any)["type"] != "image_url" || parts[1].(map[string]any)["text"] != "Breakfast" {
		t.Errorf("Unexpected user parts %v", parts)
	}
}

func TestChatClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "", "m", 0, time.Second, clock.NewManual(time.Now()))
	_, err := c.Reply(context.Background(), []models.Message{{Role: models.RoleUser, Text: "hi"}}, models.DefaultProfile(), models.NewDailyStats("2024-01-01"))
	if err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("Expected status error, got %v", err)
	}

	if _, err := c.Reply(context.Background(), nil, models.DefaultProfile(), models.NewDailyStats("2024-01-01")); err == nil {
		t.Fatalf("Expected error for empty window")
	}
}

func TestChatClientEmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":""}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(srv.URL, "", "m", 0, time.Second, clock.NewManual(time.Now()))
	reply, err := c.Reply(context.Background(), []models.Message{{Role: models.RoleUser, Text: "hi"}}, models.DefaultProfile(), models.NewDailyStats("2024-01-01"))
	if err != nil || reply != EmptyReply {
		t.Fatalf("Expected empty-reply text, got %q %v", reply, err)
	}
}

func TestImageClient(t *testing.T) {
	var body imageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/generations" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.Prompt == "nothing" {
			w.Write([]byte(`{"data":[]}`))
			return
		}
		w.Write([]byte(`{"data":[{"b64_json":"iVBORw0KGgo="}]}`))
	}))
	defer srv.Close()

	c := NewImageClient(srv.URL, "k", "dall-e-3", time.Second)
	uri, err := c.Generate(context.Background(), "masala oats")
	if err != nil {
		t.Fatal(err)
	}
	if uri != "data:image/png;base64,iVBORw0KGgo=" {
		t.Fatalf("Unexpected uri %q", uri)
	}
	if body.ResponseFormat != "b64_json" || body.N != 1 {
		t.Fatalf("Unexpected request %+v", body)
	}

	uri, err = c.Generate(context.Background(), "nothing")
	if err != nil || uri != "" {
		t.Fatalf("Expected empty result, got %q %v", uri, err)
	}
}

func TestImageClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	c := NewImageClient(srv.URL, "", "gpt-image-1", 50*time.Millisecond)
	if _, err := c.Generate(context.Background(), "slow"); err == nil {
		t.Fatalf("Expected timeout error")
	}
}

func TestImageClientInlinesHostedURL(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfakeimagedata")
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/images/generations":
			w.Write([]byte(`{"data":[{"url":"` + srv.URL + `/files/oats.png"}]}`))
		case "/files/oats.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
		case "/files/page.html":
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewImageClient(srv.URL, "k", "gpt-image-1", time.Second)
	uri, err := c.Generate(context.Background(), "masala oats")
	if err != nil {
		t.Fatal(err)
	}
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	if uri != want {
		t.Fatalf("Expected %q, got %q", want, uri)
	}

	if _, _, err := c.fetch(context.Background(), srv.URL+"/files/missing.png"); err == nil {
		t.Fatal("Expected error for missing hosted image")
	}
	if _, ct, err := c.fetch(context.Background(), srv.URL+"/files/page.html"); err != nil || strings.HasPrefix(ct, "image/") {
		t.Fatalf("Expected non-image content type, got %q %v", ct, err)
	}
}
