package zoom

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2, 5*time.Second)
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestListRecordingsFollowsPages(t *testing.T) {
	var tokens []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/host@isca.org.sg/recordings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		q := r.URL.Query()
		if q.Get("from") != "2024-03-01" || q.Get("to") != "2024-03-02" || q.Get("page_size") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		next := q.Get("next_page_token")
		tokens = append(tokens, next)
		switch next {
		case "":
			_, _ = w.Write([]byte(`{"next_page_token":"p2","meetings":[{"id":1,"uuid":"a"},{"id":2,"uuid":"b"}]}`))
		case "p2":
			_, _ = w.Write([]byte(`{"next_page_token":"","meetings":[{"id":3,"uuid":"c"}]}`))
		}
	})

	meetings, err := c.ListRecordings(context.Background(), "tok", "host@isca.org.sg", day("2024-03-01"), day("2024-03-02"))
	if err != nil {
		t.Fatalf("ListRecordings: %v", err)
	}
	if len(meetings) != 3 || meetings[0].UUID != "a" || meetings[2].ID != 3 {
		t.Errorf("meetings = %+v", meetings)
	}
	if strings.Join(tokens, ",") != ",p2" {
		t.Errorf("tokens = %v", tokens)
	}
}

func TestListRecordingsPageFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("next_page_token") == "" {
			_, _ = w.Write([]byte(`{"next_page_token":"p2","meetings":[{"id":1}]}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"code":300,"message":"upstream"}`))
	})

	meetings, err := c.ListRecordings(context.Background(), "tok", "u", day("2024-03-01"), day("2024-03-01"))
	if meetings != nil {
		t.Errorf("partial meetings returned: %+v", meetings)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway || apiErr.Message != "upstream" {
		t.Fatalf("err = %v", err)
	}
}

func TestListUsersTruncation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"complete", `{"total_records":2,"users":[{"email":"a@x"},{"email":"b@x"}]}`, false},
		{"next token", `{"total_records":2,"next_page_token":"n","users":[{"email":"a@x"},{"email":"b@x"}]}`, true},
		{"more records", `{"total_records":5,"users":[{"email":"a@x"}]}`, true},
		{"empty", `{"total_records":0,"users":[]}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("page_size") != "300" {
					t.Errorf("page_size = %s", r.URL.Query().Get("page_size"))
				}
				_, _ = w.Write([]byte(tt.body))
			})
			list, err := c.ListUsers(context.Background(), "tok")
			if err != nil {
				t.Fatalf("ListUsers: %v", err)
			}
			if list.Truncated != tt.want {
				t.Errorf("Truncated = %v, want %v", list.Truncated, tt.want)
			}
		})
	}
}

func TestListParticipantsEscapesUUID(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.EscapedPath())
		if r.URL.Query().Get("next_page_token") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"next_page_token": "n",
				"participants":    []Participant{{ID: "p1", Duration: 300}},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"participants": []Participant{{ID: "p2", Duration: 60}},
		})
	})

	got, err := c.ListParticipants(context.Background(), "tok", "/ab//c==")
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(got) != 2 || got[1].ID != "p2" {
		t.Errorf("participants = %+v", got)
	}
	if paths[0] != "/report/meetings/%252Fab%252F%252Fc==/participants" {
		t.Errorf("path = %s", paths[0])
	}
}

func TestEscapeUUID(t *testing.T) {
	tests := map[string]string{
		"abc==":      "abc==",
		"ab/c+d==":   "ab%2Fc+d==",
		"/abc":       "%252Fabc",
		"ab//cd==":   "ab%252F%252Fcd==",
		"plainUUID1": "plainUUID1",
	}
	for in, want := range tests {
		if got := EscapeUUID(in); got != want {
			t.Errorf("EscapeUUID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDeleteRecordingFile(t *testing.T) {
	var method, path, action string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		method, path, action = r.Method, r.URL.EscapedPath(), r.URL.Query().Get("action")
		if r.URL.Query().Get("action") == "" {
			t.Error("missing action")
		}
		if strings.Contains(r.URL.Path, "denied") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"code":3303,"message":"not allowed"}`))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := c.DeleteRecordingFile(context.Background(), "tok", "ab/c==", "f1"); err != nil {
		t.Fatalf("DeleteRecordingFile: %v", err)
	}
	if method != http.MethodDelete || path != "/meetings/ab%2Fc==/recordings/f1" || action != "trash" {
		t.Errorf("got %s %s action=%s", method, path, action)
	}

	err := c.DeleteRecordingFile(context.Background(), "tok", "m", "denied")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != 3303 {
		t.Fatalf("err = %v", err)
	}
}

func TestDownloadURL(t *testing.T) {
	got, err := DownloadURL("https://zoom.us/rec/download/abc?type=mp4", "tok en")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://zoom.us/rec/download/abc?access_token=tok+en&type=mp4" {
		t.Errorf("DownloadURL = %s", got)
	}
}

func TestMeetingDuration(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := Meeting{StartTime: start, Duration: 3599}
	if m.DurationMinutes() != 59 {
		t.Errorf("DurationMinutes = %d", m.DurationMinutes())
	}
	if !m.End().Equal(start.Add(3599 * time.Second)) {
		t.Errorf("End = %v", m.End())
	}
	end := start.Add(2 * time.Hour)
	m.EndTime = &end
	if !m.End().Equal(end) {
		t.Errorf("End = %v", m.End())
	}
}

func TestMeetingManagement(t *testing.T) {
	type call struct {
		method, path, contentType string
		body                      map[string]any
	}
	var calls []call
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cl := call{method: r.Method, path: r.URL.EscapedPath(), contentType: r.Header.Get("Content-Type")}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&cl.body); err != nil {
				t.Errorf("decode body: %v", err)
			}
		}
		calls = append(calls, cl)

		switch {
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":85746065432,"topic":"FIN101 Review","type":2,"duration":60,"join_url":"https://zoom.us/j/85746065432"}`))
		case r.Method == http.MethodGet && r.URL.Query().Get("next_page_token") == "":
			_, _ = w.Write([]byte(`{"next_page_token":"p2","meetings":[{"id":1,"topic":"a"},{"id":2,"topic":"b"}]}`))
		case r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"meetings":[{"id":3,"topic":"c"}]}`))
		case strings.HasSuffix(r.URL.Path, "/404"):
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":3001,"message":"Meeting does not exist: 404."}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	ctx := context.Background()
	start := time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC)

	m, err := c.CreateMeeting(ctx, "tok", "iscacpd1@isca.org.sg", MeetingRequest{Topic: "FIN101 Review", Type: 2, StartTime: &start, Duration: 60})
	if err != nil {
		t.Fatalf("CreateMeeting: %v", err)
	}
	if m.ID != 85746065432 || m.JoinURL == "" {
		t.Errorf("created = %+v", m)
	}
	if err := c.UpdateMeeting(ctx, "tok", "85746065432", MeetingRequest{Agenda: "moved"}); err != nil {
		t.Fatalf("UpdateMeeting: %v", err)
	}
	if err := c.DeleteMeeting(ctx, "tok", "85746065432"); err != nil {
		t.Fatalf("DeleteMeeting: %v", err)
	}
	list, err := c.ListMeetings(ctx, "tok", "iscacpd1@isca.org.sg")
	if err != nil {
		t.Fatalf("ListMeetings: %v", err)
	}
	if len(list) != 3 || list[2].Topic != "c" {
		t.Errorf("listed = %+v", list)
	}

	create, update, del := calls[0], calls[1], calls[2]
	if create.method != http.MethodPost || create.path != "/users/iscacpd1@isca.org.sg/meetings" || create.contentType != "application/json" {
		t.Errorf("create call = %+v", create)
	}
	if create.body["start_time"] != "2024-03-05T02:00:00Z" || create.body["topic"] != "FIN101 Review" {
		t.Errorf("create body = %v", create.body)
	}
	if update.method != http.MethodPatch || update.path != "/meetings/85746065432" {
		t.Errorf("update call = %+v", update)
	}
	if len(update.body) != 1 || update.body["agenda"] != "moved" {
		t.Errorf("patch should only carry set fields: %v", update.body)
	}
	if del.method != http.MethodDelete || del.path != "/meetings/85746065432" || del.body != nil {
		t.Errorf("delete call = %+v", del)
	}

	err = c.DeleteMeeting(ctx, "tok", "404")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != 3001 {
		t.Fatalf("err = %v", err)
	}
}
