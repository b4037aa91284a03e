package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"zoomarchive/internal/archive"
	"zoomarchive/internal/attendance"
	"zoomarchive/internal/domain"
	"zoomarchive/internal/hostfilter"
	"zoomarchive/internal/logger"
	"zoomarchive/internal/metrics"
	"zoomarchive/internal/zoom"
)

type fakeTokens struct {
	err   error
	calls int
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "tok", nil
}

type deleteCall struct{ meeting, file string }

type fakeAPI struct {
	users      zoom.UserList
	usersErr   error
	recordings map[string][]zoom.Meeting
	listErr    map[string]error
	deleteErr  map[string]error
	listed     []string
	windows    []Range
	deletes    []deleteCall
}

func (f *fakeAPI) ListUsers(context.Context, string) (zoom.UserList, error) {
	return f.users, f.usersErr
}

func (f *fakeAPI) ListRecordings(_ context.Context, _, userID string, from, to time.Time) ([]zoom.Meeting, error) {
	f.listed = append(f.listed, userID)
	f.windows = append(f.windows, Range{From: from, To: to})
	if err := f.listErr[userID]; err != nil {
		return nil, err
	}
	return f.recordings[userID], nil
}

func (f *fakeAPI) DeleteRecordingFile(_ context.Context, _, meetingUUID, fileID string) error {
	f.deletes = append(f.deletes, deleteCall{meetingUUID, fileID})
	return f.deleteErr[fileID]
}

type fakeAttendance struct {
	fail      map[string]bool
	processed []string
}

func (f *fakeAttendance) Process(_ context.Context, _ string, m zoom.Meeting) (attendance.Report, error) {
	f.processed = append(f.processed, m.UUID)
	if f.fail[m.UUID] {
		return attendance.Report{}, domain.NewItemError("attendance processing failed", m.UUID, "", errors.New("boom"))
	}
	return attendance.Report{Path: "/archive/" + m.UUID + ".csv", Sessions: 1}, nil
}

type fakeDownloader struct {
	fail       map[string]bool
	downloaded []string
}

func (f *fakeDownloader) Download(_ context.Context, url, name string, file zoom.RecordingFile, _ zoom.Meeting) (archive.Result, error) {
	if f.fail[file.ID] {
		return archive.Result{}, errors.New("stream reset")
	}
	f.downloaded = append(f.downloaded, file.ID)
	return archive.Result{Path: "/archive/" + name, Bytes: 100}, nil
}

func meeting(uuid, host string, fileIDs ...string) zoom.Meeting {
	m := zoom.Meeting{
		ID:        1,
		UUID:      uuid,
		Topic:     "FIN101 " + uuid,
		HostEmail: host,
		StartTime: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
	}
	for _, id := range fileIDs {
		m.RecordingFiles = append(m.RecordingFiles, zoom.RecordingFile{
			ID:             id,
			FileExtension:  "MP4",
			DownloadURL:    "https://zoom.example/rec/" + id,
			RecordingStart: m.StartTime,
		})
	}
	return m
}

type harness struct {
	tokens *fakeTokens
	api    *fakeAPI
	att    *fakeAttendance
	dl     *fakeDownloader
	m      *metrics.Metrics
	p      *Pipeline
}

func newHarness(opts Options) *harness {
	h := &harness{
		tokens: &fakeTokens{},
		api:    &fakeAPI{recordings: map[string][]zoom.Meeting{}, listErr: map[string]error{}, deleteErr: map[string]error{}},
		att:    &fakeAttendance{fail: map[string]bool{}},
		dl:     &fakeDownloader{fail: map[string]bool{}},
		m:      metrics.New(prometheus.NewRegistry()),
	}
	h.p = New(Deps{
		Tokens:     h.tokens,
		API:        h.api,
		Attendance: h.att,
		Downloader: h.dl,
		Hosts:      hostfilter.New([]string{"iscacpd*@isca.org.sg"}),
		Metrics:    h.m,
		Log:        logger.Discard(),
	}, opts)
	return h
}

func testRange() Range {
	return DayRange(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC), time.UTC)
}

func TestNoDeleteAfterFailedDownload(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: true})
	h.dl.fail["f2"] = true
	h.api.recordings["iscacpd1@isca.org.sg"] = []zoom.Meeting{meeting("m1", "iscacpd1@isca.org.sg", "f1", "f2", "f3")}

	sum, err := h.p.RunUser(context.Background(), "iscacpd1@isca.org.sg", testRange())
	if err != nil {
		t.Fatalf("RunUser: %v", err)
	}
	for _, d := range h.api.deletes {
		if d.file == "f2" {
			t.Fatal("delete attempted for a failed download")
		}
	}
	if len(h.api.deletes) != 2 {
		t.Errorf("deletes = %v, want f1 and f3", h.api.deletes)
	}
	if sum.FilesDownloaded != 2 || sum.FilesFailed != 1 || sum.FilesDeleted != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestAllDownloadsFailNoDeletes(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: true})
	h.dl.fail["f1"] = true
	h.api.recordings["iscacpd1@isca.org.sg"] = []zoom.Meeting{meeting("m1", "iscacpd1@isca.org.sg", "f1")}

	if _, err := h.p.RunUser(context.Background(), "iscacpd1@isca.org.sg", testRange()); err != nil {
		t.Fatal(err)
	}
	if len(h.api.deletes) != 0 {
		t.Errorf("deletes = %v, want none", h.api.deletes)
	}
}

func TestMeetingFailureIsIsolated(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: true})
	host := "iscacpd2@isca.org.sg"
	h.api.recordings[host] = []zoom.Meeting{
		meeting("m1", host, "a1", "a2"),
		meeting("m2", host, "b1"),
		meeting("m3", host, "c1", "c2"),
	}
	h.att.fail["m2"] = true

	sum, err := h.p.RunUser(context.Background(), host, testRange())
	if err != nil {
		t.Fatalf("RunUser: %v", err)
	}
	if fmt.Sprint(h.att.processed) != "[m1 m2 m3]" {
		t.Errorf("attendance processed = %v", h.att.processed)
	}
	if fmt.Sprint(h.dl.downloaded) != "[a1 a2 b1 c1 c2]" {
		t.Errorf("downloaded = %v", h.dl.downloaded)
	}
	if len(h.api.deletes) != 5 {
		t.Errorf("deletes = %v", h.api.deletes)
	}
	if sum.AttendanceWritten != 2 || sum.AttendanceFailed != 1 || sum.Meetings != 3 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Errors) != 1 {
		t.Errorf("errors = %v", sum.Errors)
	}
	if got := testutil.ToFloat64(h.m.Meetings.WithLabelValues("partial")); got != 1 {
		t.Errorf("partial meetings = %v", got)
	}
}

func TestHostFilterSkips(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: true})
	h.api.recordings["mixed@isca.org.sg"] = []zoom.Meeting{
		meeting("ok", "ISCACPD5@isca.org.sg", "f1"),
		meeting("nope", "other@isca.org.sg", "f2"),
	}

	sum, err := h.p.RunUser(context.Background(), "mixed@isca.org.sg", testRange())
	if err != nil {
		t.Fatal(err)
	}
	if sum.MeetingsSkipped != 1 || sum.Meetings != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if fmt.Sprint(h.dl.downloaded) != "[f1]" {
		t.Errorf("downloaded = %v", h.dl.downloaded)
	}
}

func TestHostEmailFallsBackToListingUser(t *testing.T) {
	h := newHarness(Options{})
	m := meeting("m1", "", "f1")
	h.api.recordings["iscacpd9@isca.org.sg"] = []zoom.Meeting{m}

	sum, err := h.p.RunUser(context.Background(), "iscacpd9@isca.org.sg", testRange())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Meetings != 1 || sum.MeetingsSkipped != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestDeleteFailureIsCounted(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: true})
	h.api.deleteErr["f1"] = &zoom.APIError{Status: 404, Code: 3322, Message: "file missing"}
	host := "iscacpd1@isca.org.sg"
	h.api.recordings[host] = []zoom.Meeting{meeting("m1", host, "f1", "f2")}

	sum, err := h.p.RunUser(context.Background(), host, testRange())
	if err != nil {
		t.Fatal(err)
	}
	if sum.DeletesFailed != 1 || sum.FilesDeleted != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestDeleteAfterDownloadDisabled(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: false})
	host := "iscacpd1@isca.org.sg"
	h.api.recordings[host] = []zoom.Meeting{meeting("m1", host, "f1")}

	if _, err := h.p.RunUser(context.Background(), host, testRange()); err != nil {
		t.Fatal(err)
	}
	if len(h.api.deletes) != 0 {
		t.Errorf("deletes = %v", h.api.deletes)
	}
}

func TestRunRangeEnumeratesFleet(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: true})
	h.api.users = zoom.UserList{
		Users:        []zoom.User{{Email: "iscacpd1@isca.org.sg"}, {Email: "iscacpd2@isca.org.sg"}, {Email: "iscacpd3@isca.org.sg"}},
		TotalRecords: 400,
		Truncated:    true,
	}
	h.api.listErr["iscacpd2@isca.org.sg"] = errors.New("502")
	h.api.recordings["iscacpd1@isca.org.sg"] = []zoom.Meeting{meeting("m1", "iscacpd1@isca.org.sg", "f1")}
	h.api.recordings["iscacpd3@isca.org.sg"] = []zoom.Meeting{meeting("m3", "iscacpd3@isca.org.sg", "f3")}

	r := testRange()
	sum, err := h.p.RunRange(context.Background(), r)
	if err != nil {
		t.Fatalf("RunRange: %v", err)
	}
	if !sum.UsersTruncated || sum.Users != 3 || sum.ListingFailures != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if fmt.Sprint(h.dl.downloaded) != "[f1 f3]" {
		t.Errorf("downloaded = %v", h.dl.downloaded)
	}
	if sum.From != "2024-06-10" || sum.To != "2024-06-10" || sum.RunID == "" {
		t.Errorf("summary header = %+v", sum)
	}
	if h.tokens.calls != 1 {
		t.Errorf("token calls = %d", h.tokens.calls)
	}
}

func TestRunRangeUsesConfiguredUsers(t *testing.T) {
	h := newHarness(Options{UserIDs: []string{"iscacpd7@isca.org.sg"}})
	h.api.usersErr = errors.New("must not be called")

	sum, err := h.p.RunRange(context.Background(), testRange())
	if err != nil {
		t.Fatalf("RunRange: %v", err)
	}
	if fmt.Sprint(h.api.listed) != "[iscacpd7@isca.org.sg]" || sum.Users != 1 {
		t.Errorf("listed = %v", h.api.listed)
	}
}

func TestAbortingErrors(t *testing.T) {
	t.Run("auth", func(t *testing.T) {
		h := newHarness(Options{})
		h.tokens.err = errors.New("401 invalid client")
		_, err := h.p.RunRange(context.Background(), testRange())
		if !domain.IsKind(err, domain.KindAuth) {
			t.Fatalf("err = %v", err)
		}
		if len(h.api.listed) != 0 {
			t.Error("listed recordings without a token")
		}
		if got := testutil.ToFloat64(h.m.Runs.WithLabelValues(TriggerRange, "failed")); got != 1 {
			t.Errorf("failed runs = %v", got)
		}
	})
	t.Run("fleet listing", func(t *testing.T) {
		h := newHarness(Options{})
		h.api.usersErr = errors.New("500")
		_, err := h.p.RunRange(context.Background(), testRange())
		if !domain.IsKind(err, domain.KindListing) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("single user listing", func(t *testing.T) {
		h := newHarness(Options{})
		h.api.listErr["u@x"] = errors.New("500")
		_, err := h.p.RunUser(context.Background(), "u@x", testRange())
		if !domain.IsKind(err, domain.KindListing) {
			t.Fatalf("err = %v", err)
		}
	})
	t.Run("missing user", func(t *testing.T) {
		h := newHarness(Options{})
		_, err := h.p.RunUser(context.Background(), "", testRange())
		if !domain.IsKind(err, domain.KindValidation) {
			t.Fatalf("err = %v", err)
		}
		if h.tokens.calls != 0 {
			t.Error("token requested for invalid input")
		}
	})
}

func TestRunWebhook(t *testing.T) {
	h := newHarness(Options{DeleteAfterDownload: true})
	sum, err := h.p.RunWebhook(context.Background(), meeting("w1", "iscacpd1@isca.org.sg", "f1"))
	if err != nil {
		t.Fatalf("RunWebhook: %v", err)
	}
	if sum.Trigger != TriggerWebhook || sum.FilesDeleted != 1 {
		t.Errorf("summary = %+v", sum)
	}

	_, err = h.p.RunWebhook(context.Background(), meeting("w2", "iscacpd1@isca.org.sg"))
	if !domain.IsKind(err, domain.KindValidation) {
		t.Fatalf("err = %v, want validation for meeting without files", err)
	}
}

func TestRunScheduledUsesFiringDate(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	h := newHarness(Options{UserIDs: []string{"iscacpd7@isca.org.sg"}, Location: time.UTC})

	// 23:58 EST on 5 March is already 6 March in UTC.
	firedAt := time.Date(2024, 3, 5, 23, 58, 0, 0, ny)
	sum, err := h.p.RunScheduled(context.Background(), firedAt)
	if err != nil {
		t.Fatalf("RunScheduled: %v", err)
	}
	if sum.Trigger != TriggerSchedule || sum.From != "2024-03-05" || sum.To != "2024-03-05" {
		t.Errorf("summary = %s %s..%s", sum.Trigger, sum.From, sum.To)
	}
	if len(h.api.windows) != 1 {
		t.Fatalf("listings = %d", len(h.api.windows))
	}
	w := h.api.windows[0]
	if !w.From.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) || !w.To.Equal(time.Date(2024, 3, 5, 23, 59, 59, 999999999, time.UTC)) {
		t.Errorf("listed window = %v..%v", w.From, w.To)
	}
}
