package planner

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/planwise/internal/model"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		ok   bool
	}{
		{"plain", `{"start":"2025-03-04T14:00:00Z","end":"2025-03-04T16:00:00Z"}`, true},
		{"fenced", "```json\n{\"start\":\"2025-03-04T14:00:00-05:00\",\"end\":\"2025-03-04T16:00:00-05:00\"}\n```", true},
		{"no zone", `{"start":"2025-03-04T14:00","end":"2025-03-04T15:30"}`, true},
		{"end before start", `{"start":"2025-03-04T16:00:00Z","end":"2025-03-04T14:00:00Z"}`, false},
		{"missing end", `{"start":"2025-03-04T14:00:00Z"}`, false},
		{"prose", "I suggest Tuesday afternoon.", false},
		{"bad json", `{"start": }`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseMessage(tt.msg)
			_, ok := res.(Success)
			if ok != tt.ok {
				t.Errorf("ParseMessage(%q) = %#v, want success=%v", tt.msg, res, tt.ok)
			}
			if f, isFailure := res.(Failure); isFailure && f.Reason != ReasonUnparseable {
				t.Errorf("reason = %q, want %q", f.Reason, ReasonUnparseable)
			}
		})
	}
}

func TestParseMessageRevisions(t *testing.T) {
	res := ParseMessage(`{"start":"2025-03-04T14:00:00Z","end":"2025-03-04T16:00:00Z","title":" Essay draft "}`)
	s, ok := res.(Success)
	if !ok {
		t.Fatalf("result = %#v, want Success", res)
	}
	if s.Proposal.Title != "Essay draft" {
		t.Errorf("title = %q, want %q", s.Proposal.Title, "Essay draft")
	}
	want := time.Date(2025, 3, 4, 14, 0, 0, 0, time.UTC)
	if !s.Proposal.Start.Equal(want) {
		t.Errorf("start = %v, want %v", s.Proposal.Start, want)
	}
}

func attachment() *model.Attachment {
	return &model.Attachment{Name: "syllabus.txt", ContentType: "text/plain", Data: []byte("Essay due Friday")}
}

func TestClientPlan(t *testing.T) {
	var gotTitle, gotFile, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plan" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		gotTitle = r.FormValue("title")
		gotAuth = r.Header.Get("Authorization")
		f, _, err := r.FormFile("file")
		if err == nil {
			b, _ := io.ReadAll(f)
			gotFile = string(b)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"message": `{"start":"2025-03-04T14:00:00Z","end":"2025-03-04T16:00:00Z"}`,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client(), nil)
	res := c.Plan(context.Background(), Request{Title: "Essay", File: attachment()})
	if _, ok := res.(Success); !ok {
		t.Fatalf("result = %#v, want Success", res)
	}
	if gotTitle != "Essay" {
		t.Errorf("title = %q, want Essay", gotTitle)
	}
	if gotFile != "Essay due Friday" {
		t.Errorf("file = %q", gotFile)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("authorization = %q", gotAuth)
	}
}

func TestClientFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", srv.Client(), nil)

	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"no file", Request{Title: "Essay"}, ReasonNoFile},
		{"no title", Request{File: attachment()}, ReasonNoTitle},
		{"server error", Request{Title: "Essay", File: attachment()}, ReasonUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := c.Plan(context.Background(), tt.req)
			f, ok := res.(Failure)
			if !ok {
				t.Fatalf("result = %#v, want Failure", res)
			}
			if f.Reason != tt.want {
				t.Errorf("reason = %q, want %q", f.Reason, tt.want)
			}
		})
	}
}

func fakeOpenAI(t *testing.T, content string, prompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.ResponseFormat.Type != "json_schema" {
			t.Errorf("response_format = %q, want json_schema", req.ResponseFormat.Type)
		}
		if prompt != nil && len(req.Messages) > 0 {
			*prompt = req.Messages[len(req.Messages)-1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]string{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestServicePlan(t *testing.T) {
	var prompt string
	srv := fakeOpenAI(t, `{"start":"2025-03-04T14:00:00Z","end":"2025-03-04T16:00:00Z"}`, &prompt)

	s := NewService("sk-test", srv.URL+"/v1", "gpt-4o-mini", nil)
	s.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }

	res := s.Plan(context.Background(), Request{Title: "Essay", Location: "Library", File: attachment()})
	if _, ok := res.(Success); !ok {
		t.Fatalf("result = %#v, want Success", res)
	}
	for _, want := range []string{`"Essay"`, "2025-03-01T00:00:00Z", "Essay due Friday", "Location: Library"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestServiceRequiresFile(t *testing.T) {
	s := NewService("sk-test", "http://127.0.0.1:0/v1", "gpt-4o-mini", nil)
	if _, err := s.Suggest(context.Background(), Request{Title: "Essay"}); err != ErrNoFile {
		t.Errorf("err = %v, want ErrNoFile", err)
	}
	res := s.Plan(context.Background(), Request{Title: "Essay"})
	if f, ok := res.(Failure); !ok || f.Reason != ReasonNoFile {
		t.Errorf("result = %#v, want no-file failure", res)
	}
}

func TestServiceUnparseableReply(t *testing.T) {
	srv := fakeOpenAI(t, "sometime next week", nil)
	s := NewService("sk-test", srv.URL+"/v1", "gpt-4o-mini", nil)
	res := s.Plan(context.Background(), Request{Title: "Essay", File: attachment()})
	if f, ok := res.(Failure); !ok || f.Reason != ReasonUnparseable {
		t.Errorf("result = %#v, want unparseable failure", res)
	}
}

func TestDocumentText(t *testing.T) {
	if _, ok := documentText([]byte{0xff, 0xfe, 0x00}); ok {
		t.Error("binary data should not be inlined")
	}
	long := strings.Repeat("a", maxDocumentRunes+10)
	text, ok := documentText([]byte(long))
	if !ok || !strings.HasSuffix(text, "[truncated]") {
		t.Errorf("long text not truncated")
	}
}
