package zoom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"zoomarchive/internal/paginate"
)

const (
	// MaxPageSize is the provider's upper bound for page_size.
	MaxPageSize = 300
	dateLayout  = "2006-01-02"
)

// Client calls the provider REST API. Every call takes the bearer token
// explicitly; the client holds no credentials.
type Client struct {
	BaseURL  string
	HTTP     *http.Client
	PageSize int
}

// New creates a client with a bounded per-request timeout.
func New(baseURL string, pageSize int, timeout time.Duration) *Client {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = 100
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		PageSize: pageSize,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// ListUsers reads one page of account users. It does not paginate; a larger
// tenant is reported through UserList.Truncated.
func (c *Client) ListUsers(ctx context.Context, token string) (UserList, error) {
	q := url.Values{}
	q.Set("page_size", strconv.Itoa(MaxPageSize))

	var out struct {
		TotalRecords  int    `json:"total_records"`
		NextPageToken string `json:"next_page_token"`
		Users         []User `json:"users"`
	}
	if err := c.getJSON(ctx, token, "/users", q, &out); err != nil {
		return UserList{}, fmt.Errorf("list users: %w", err)
	}
	return UserList{
		Users:        out.Users,
		TotalRecords: out.TotalRecords,
		Truncated:    out.NextPageToken != "" || out.TotalRecords > len(out.Users),
	}, nil
}

// RecordingPages lazily walks the recordings of userID between from and to,
// both inclusive at day granularity.
func (c *Client) RecordingPages(ctx context.Context, token, userID string, from, to time.Time) iter.Seq2[Meeting, error] {
	path := "/users/" + url.PathEscape(userID) + "/recordings"
	return paginate.Pages(ctx, func(ctx context.Context, next string) ([]Meeting, string, error) {
		q := url.Values{}
		q.Set("from", from.Format(dateLayout))
		q.Set("to", to.Format(dateLayout))
		q.Set("page_size", strconv.Itoa(c.PageSize))
		if next != "" {
			q.Set("next_page_token", next)
		}
		var out struct {
			NextPageToken string    `json:"next_page_token"`
			Meetings      []Meeting `json:"meetings"`
		}
		if err := c.getJSON(ctx, token, path, q, &out); err != nil {
			return nil, "", err
		}
		return out.Meetings, out.NextPageToken, nil
	})
}

// ListRecordings collects every recording page for userID. A failing page
// discards everything fetched so far.
func (c *Client) ListRecordings(ctx context.Context, token, userID string, from, to time.Time) ([]Meeting, error) {
	var meetings []Meeting
	for m, err := range c.RecordingPages(ctx, token, userID, from, to) {
		if err != nil {
			return nil, fmt.Errorf("list recordings for %s: %w", userID, err)
		}
		meetings = append(meetings, m)
	}
	return meetings, nil
}

// ListParticipants collects the full participant report of a past meeting.
func (c *Client) ListParticipants(ctx context.Context, token, meetingUUID string) ([]Participant, error) {
	path := "/report/meetings/" + EscapeUUID(meetingUUID) + "/participants"
	participants, err := paginate.Collect(ctx, func(ctx context.Context, next string) ([]Participant, string, error) {
		q := url.Values{}
		q.Set("page_size", strconv.Itoa(c.PageSize))
		if next != "" {
			q.Set("next_page_token", next)
		}
		var out struct {
			NextPageToken string        `json:"next_page_token"`
			Participants  []Participant `json:"participants"`
		}
		if err := c.getJSON(ctx, token, path, q, &out); err != nil {
			return nil, "", err
		}
		return out.Participants, out.NextPageToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list participants for %s: %w", meetingUUID, err)
	}
	return participants, nil
}

// DeleteRecordingFile moves one recording file to the cloud trash.
func (c *Client) DeleteRecordingFile(ctx context.Context, token, meetingUUID, fileID string) error {
	endpoint := c.BaseURL + "/meetings/" + EscapeUUID(meetingUUID) + "/recordings/" + url.PathEscape(fileID) + "?action=trash"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("delete recording %s: %w", fileID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// CreateMeeting schedules a meeting hosted by userID.
func (c *Client) CreateMeeting(ctx context.Context, token, userID string, in MeetingRequest) (ScheduledMeeting, error) {
	var out ScheduledMeeting
	if err := c.send(ctx, token, http.MethodPost, "/users/"+url.PathEscape(userID)+"/meetings", in, &out); err != nil {
		return ScheduledMeeting{}, fmt.Errorf("create meeting for %s: %w", userID, err)
	}
	return out, nil
}

// UpdateMeeting patches the set fields of a meeting.
func (c *Client) UpdateMeeting(ctx context.Context, token, meetingID string, in MeetingRequest) error {
	if err := c.send(ctx, token, http.MethodPatch, "/meetings/"+url.PathEscape(meetingID), in, nil); err != nil {
		return fmt.Errorf("update meeting %s: %w", meetingID, err)
	}
	return nil
}

// DeleteMeeting deletes a scheduled meeting.
func (c *Client) DeleteMeeting(ctx context.Context, token, meetingID string) error {
	if err := c.send(ctx, token, http.MethodDelete, "/meetings/"+url.PathEscape(meetingID), nil, nil); err != nil {
		return fmt.Errorf("delete meeting %s: %w", meetingID, err)
	}
	return nil
}

// ListMeetings collects every scheduled meeting of userID.
func (c *Client) ListMeetings(ctx context.Context, token, userID string) ([]ScheduledMeeting, error) {
	path := "/users/" + url.PathEscape(userID) + "/meetings"
	meetings, err := paginate.Collect(ctx, func(ctx context.Context, next string) ([]ScheduledMeeting, string, error) {
		q := url.Values{}
		q.Set("page_size", strconv.Itoa(c.PageSize))
		if next != "" {
			q.Set("next_page_token", next)
		}
		var out struct {
			NextPageToken string             `json:"next_page_token"`
			Meetings      []ScheduledMeeting `json:"meetings"`
		}
		if err := c.getJSON(ctx, token, path, q, &out); err != nil {
			return nil, "", err
		}
		return out.Meetings, out.NextPageToken, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list meetings for %s: %w", userID, err)
	}
	return meetings, nil
}

// DownloadURL appends the bearer token as the access_token query credential.
func DownloadURL(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse download url: %w", err)
	}
	q := u.Query()
	q.Set("access_token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EscapeUUID path-escapes a meeting UUID. UUIDs that begin with "/" or
// contain "//" must be escaped twice.
func EscapeUUID(uuid string) string {
	escaped := url.PathEscape(uuid)
	if strings.HasPrefix(uuid, "/") || strings.Contains(uuid, "//") {
		escaped = url.PathEscape(escaped)
	}
	return escaped
}

func (c *Client) getJSON(ctx context.Context, token, path string, q url.Values, out any) error {
	endpoint := c.BaseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("zoom request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// send issues a JSON request. A nil in sends no body; a nil out discards
// the response body.
func (c *Client) send(ctx context.Context, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("zoom request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	_ = json.Unmarshal(body, apiErr)
	return apiErr
}
