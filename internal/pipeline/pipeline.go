// Package pipeline downloads recordings and attendance for allow-listed
// hosts and removes the cloud copies once the local writes are confirmed.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"zoomarchive/internal/archive"
	"zoomarchive/internal/attendance"
	"zoomarchive/internal/auth"
	"zoomarchive/internal/catalog"
	"zoomarchive/internal/domain"
	"zoomarchive/internal/logger"
	"zoomarchive/internal/metrics"
	"zoomarchive/internal/zoom"
)

// Trigger names used in summaries, logs and metrics.
const (
	TriggerRange    = "range"
	TriggerUser     = "user"
	TriggerWebhook  = "webhook"
	TriggerSchedule = "schedule"
)

const maxSummaryErrors = 50

// RecordingAPI is the subset of the provider API the pipeline drives.
type RecordingAPI interface {
	ListUsers(ctx context.Context, token string) (zoom.UserList, error)
	ListRecordings(ctx context.Context, token, userID string, from, to time.Time) ([]zoom.Meeting, error)
	DeleteRecordingFile(ctx context.Context, token, meetingUUID, fileID string) error
}

// AttendanceProcessor writes one meeting's attendance report.
type AttendanceProcessor interface {
	Process(ctx context.Context, token string, meeting zoom.Meeting) (attendance.Report, error)
}

// FileDownloader streams one recording file to the archive.
type FileDownloader interface {
	Download(ctx context.Context, url, name string, file zoom.RecordingFile, meeting zoom.Meeting) (archive.Result, error)
}

// HostFilter allows or denies a meeting by host email.
type HostFilter interface {
	Allowed(email string) bool
}

// Deps are the collaborators a Pipeline calls into.
type Deps struct {
	Tokens     auth.TokenSource
	API        RecordingAPI
	Attendance AttendanceProcessor
	Downloader FileDownloader
	Hosts      HostFilter
	Catalog    catalog.Catalog
	Metrics    *metrics.Metrics
	Log        *slog.Logger
}

// Options tune a Pipeline.
type Options struct {
	// Tenant is the resolved tenant key, recorded on every run.
	Tenant string
	// UserIDs, when set, replace fleet enumeration in range runs.
	UserIDs []string
	// DeleteAfterDownload removes each cloud file after its download is confirmed.
	DeleteAfterDownload bool
	// Location is the archive zone scheduled runs resolve their day in.
	Location *time.Location
}

// Pipeline runs archive passes sequentially. It holds no per-run state, but
// concurrent runs over the same meetings are not coordinated.
type Pipeline struct {
	deps Deps
	opts Options
}

// New builds a pipeline. A nil catalog becomes catalog.Nop.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Catalog == nil {
		deps.Catalog = catalog.Nop{}
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Pipeline{deps: deps, opts: opts}
}

// Summary reports what a run did. Item failures are counted here and never
// returned as errors.
type Summary struct {
	RunID             string   `json:"run_id"`
	Trigger           string   `json:"trigger"`
	Tenant            string   `json:"tenant"`
	From              string   `json:"from,omitempty"`
	To                string   `json:"to,omitempty"`
	Users             int      `json:"users"`
	UsersTruncated    bool     `json:"users_truncated"`
	ListingFailures   int      `json:"listing_failures"`
	Meetings          int      `json:"meetings"`
	MeetingsSkipped   int      `json:"meetings_skipped"`
	AttendanceWritten int      `json:"attendance_written"`
	AttendanceEmpty   int      `json:"attendance_empty"`
	AttendanceFailed  int      `json:"attendance_failed"`
	FilesDownloaded   int      `json:"files_downloaded"`
	FilesFailed       int      `json:"files_failed"`
	FilesDeleted      int      `json:"files_deleted"`
	DeletesFailed     int      `json:"deletes_failed"`
	BytesDownloaded   int64    `json:"bytes_downloaded"`
	Errors            []string `json:"errors,omitempty"`
}

func (s *Summary) addError(err error) {
	if len(s.Errors) < maxSummaryErrors {
		s.Errors = append(s.Errors, err.Error())
	}
}

// RunRange archives every target user's recordings within r. Without
// configured user ids the fleet is enumerated. A user whose listing fails is
// counted and skipped.
func (p *Pipeline) RunRange(ctx context.Context, r Range) (Summary, error) {
	return p.RunRangeAs(ctx, TriggerRange, r)
}

// RunRangeAs is RunRange recorded under a different trigger name.
func (p *Pipeline) RunRangeAs(ctx context.Context, trigger string, r Range) (Summary, error) {
	return p.run(ctx, trigger, &r, func(ctx context.Context, log *slog.Logger, token string, sum *Summary) error {
		users, err := p.targetUsers(ctx, log, token, sum)
		if err != nil {
			return err
		}
		sum.Users = len(users)

		for _, userID := range users {
			meetings, err := p.deps.API.ListRecordings(ctx, token, userID, r.From, r.To)
			if err != nil {
				lerr := domain.NewListingError("list recordings for "+userID, err)
				sum.ListingFailures++
				sum.addError(lerr)
				log.Error("recording listing failed", slog.String("user", userID), slog.String("error", err.Error()))
				continue
			}
			log.Info("recordings listed", slog.String("user", userID), slog.Int("meetings", len(meetings)))
			p.ProcessMeetings(ctx, sum.RunID, token, withHost(meetings, userID), sum)
		}
		return nil
	})
}

// RunScheduled archives the calendar day firedAt falls on in the zone the
// schedule fired in, as a day of the archive zone.
func (p *Pipeline) RunScheduled(ctx context.Context, firedAt time.Time) (Summary, error) {
	return p.RunRangeAs(ctx, TriggerSchedule, CalendarDay(firedAt, p.opts.Location))
}

// RunUser archives one user's recordings within r. A listing failure aborts
// the run.
func (p *Pipeline) RunUser(ctx context.Context, userID string, r Range) (Summary, error) {
	if userID == "" {
		return Summary{}, domain.NewValidationError("userId is required")
	}
	return p.run(ctx, TriggerUser, &r, func(ctx context.Context, log *slog.Logger, token string, sum *Summary) error {
		sum.Users = 1
		meetings, err := p.deps.API.ListRecordings(ctx, token, userID, r.From, r.To)
		if err != nil {
			return domain.NewListingError("list recordings for "+userID, err)
		}
		log.Info("recordings listed", slog.String("user", userID), slog.Int("meetings", len(meetings)))
		p.ProcessMeetings(ctx, sum.RunID, token, withHost(meetings, userID), sum)
		return nil
	})
}

// RunWebhook archives the single meeting delivered by recording.completed.
func (p *Pipeline) RunWebhook(ctx context.Context, meeting zoom.Meeting) (Summary, error) {
	if err := ValidateWebhookMeeting(meeting); err != nil {
		return Summary{}, err
	}
	return p.run(ctx, TriggerWebhook, nil, func(ctx context.Context, _ *slog.Logger, token string, sum *Summary) error {
		p.ProcessMeetings(ctx, sum.RunID, token, []zoom.Meeting{meeting}, sum)
		return nil
	})
}

// ValidateWebhookMeeting checks the shape required of a webhook meeting.
func ValidateWebhookMeeting(m zoom.Meeting) error {
	if m.UUID == "" || len(m.RecordingFiles) == 0 {
		return domain.NewValidationError("invalid meeting data: missing uuid or recording files")
	}
	return nil
}

// ProcessMeetings filters meetings by host, then writes attendance and
// downloads each file, deleting the cloud copy only after a confirmed
// download. Failures are isolated to one meeting or one file.
func (p *Pipeline) ProcessMeetings(ctx context.Context, runID, token string, meetings []zoom.Meeting, sum *Summary) {
	log := logger.FromContext(ctx)
	for _, m := range meetings {
		mlog := log.With(slog.String("meeting_uuid", m.UUID), slog.String("topic", m.Topic))
		if !p.deps.Hosts.Allowed(m.HostEmail) {
			sum.MeetingsSkipped++
			p.deps.Metrics.Meeting("skipped")
			mlog.Info("meeting skipped, host not allowed", slog.String("host_email", m.HostEmail))
			continue
		}
		sum.Meetings++
		if p.processMeeting(ctx, mlog, runID, token, m, sum) {
			p.deps.Metrics.Meeting("ok")
		} else {
			p.deps.Metrics.Meeting("partial")
		}
	}
}

func (p *Pipeline) processMeeting(ctx context.Context, log *slog.Logger, runID, token string, m zoom.Meeting, sum *Summary) bool {
	clean := true

	rep, err := p.deps.Attendance.Process(ctx, token, m)
	switch {
	case err != nil:
		clean = false
		sum.AttendanceFailed++
		sum.addError(err)
		log.Error("attendance failed", slog.String("error", err.Error()))
	case rep.Path == "":
		sum.AttendanceEmpty++
	default:
		sum.AttendanceWritten++
		if err := p.deps.Catalog.RecordAttendance(ctx, runID, m, rep.Aggregates); err != nil {
			log.Warn("catalog attendance write failed", slog.String("error", err.Error()))
		}
	}

	for _, f := range m.RecordingFiles {
		if !p.processFile(ctx, log.With(slog.String("file_id", f.ID)), runID, token, m, f, sum) {
			clean = false
		}
	}
	return clean
}

func (p *Pipeline) processFile(ctx context.Context, log *slog.Logger, runID, token string, m zoom.Meeting, f zoom.RecordingFile, sum *Summary) bool {
	name := archive.RecordingFileName(m.ID, f.ID, f.FileExtension)

	res, err := p.download(ctx, token, name, m, f)
	if err != nil {
		ierr := domain.NewItemError("download failed", m.UUID, f.ID, err)
		sum.FilesFailed++
		sum.addError(ierr)
		p.deps.Metrics.File("failed", 0)
		log.Error("recording download failed", slog.String("file", name), slog.String("error", err.Error()))
		return false
	}
	sum.FilesDownloaded++
	sum.BytesDownloaded += res.Bytes
	p.deps.Metrics.File("ok", res.Bytes)
	if err := p.deps.Catalog.RecordFile(ctx, catalog.File{
		RunID:       runID,
		MeetingUUID: m.UUID,
		MeetingID:   m.ID,
		FileID:      f.ID,
		FileType:    f.FileType,
		Path:        res.Path,
		Bytes:       res.Bytes,
	}); err != nil {
		log.Warn("catalog file write failed", slog.String("error", err.Error()))
	}

	if !p.opts.DeleteAfterDownload {
		return true
	}

	derr := p.deps.API.DeleteRecordingFile(ctx, token, m.UUID, f.ID)
	if cerr := p.deps.Catalog.RecordDeletion(ctx, runID, m.UUID, f.ID, derr); cerr != nil {
		log.Warn("catalog deletion write failed", slog.String("error", cerr.Error()))
	}
	if derr != nil {
		sum.DeletesFailed++
		sum.addError(domain.NewItemError("cloud deletion failed", m.UUID, f.ID, derr))
		p.deps.Metrics.Deletion("failed")
		log.Error("cloud deletion failed", slog.String("file", name), slog.String("error", derr.Error()))
		return false
	}
	sum.FilesDeleted++
	p.deps.Metrics.Deletion("ok")
	log.Info("recording archived and deleted from cloud", slog.String("file", name))
	return true
}

func (p *Pipeline) download(ctx context.Context, token, name string, m zoom.Meeting, f zoom.RecordingFile) (archive.Result, error) {
	if f.DownloadURL == "" {
		return archive.Result{}, domain.NewValidationError("recording file has no download url")
	}
	url, err := zoom.DownloadURL(f.DownloadURL, token)
	if err != nil {
		return archive.Result{}, err
	}
	return p.deps.Downloader.Download(ctx, url, name, f, m)
}

func (p *Pipeline) targetUsers(ctx context.Context, log *slog.Logger, token string, sum *Summary) ([]string, error) {
	if len(p.opts.UserIDs) > 0 {
		return p.opts.UserIDs, nil
	}
	list, err := p.deps.API.ListUsers(ctx, token)
	if err != nil {
		return nil, domain.NewListingError("list users", err)
	}
	if list.Truncated {
		sum.UsersTruncated = true
		log.Warn("user listing truncated, only the first page is archived",
			slog.Int("returned", len(list.Users)),
			slog.Int("total_records", list.TotalRecords),
		)
	}
	users := make([]string, 0, len(list.Users))
	for _, u := range list.Users {
		if u.Email != "" {
			users = append(users, u.Email)
		}
	}
	return users, nil
}

type runBody func(ctx context.Context, log *slog.Logger, token string, sum *Summary) error

// run wraps a body with a run id, token acquisition, catalog bookkeeping and
// the run metric.
func (p *Pipeline) run(ctx context.Context, trigger string, r *Range, body runBody) (Summary, error) {
	sum := Summary{RunID: uuid.NewString(), Trigger: trigger, Tenant: p.opts.Tenant}
	rec := catalog.Run{ID: sum.RunID, Trigger: trigger, Tenant: p.opts.Tenant, StartedAt: time.Now().UTC()}
	if r != nil {
		sum.From, sum.To = r.FromDate(), r.ToDate()
		rec.From, rec.To = r.From, r.To
	}

	log := p.deps.Log.With(slog.String("run_id", sum.RunID), slog.String("trigger", trigger))
	ctx = logger.WithContext(ctx, log)
	log.Info("archive run started", slog.String("from", sum.From), slog.String("to", sum.To))

	if err := p.deps.Catalog.StartRun(ctx, rec); err != nil {
		log.Warn("catalog run start failed", slog.String("error", err.Error()))
	}

	err := p.execute(ctx, log, body, &sum)

	rec.FinishedAt = time.Now().UTC()
	rec.Status = "ok"
	result := "ok"
	if err != nil {
		rec.Status, rec.Error, result = "failed", err.Error(), "failed"
		log.Error("archive run aborted", slog.String("kind", domain.KindOf(err).String()), slog.String("error", err.Error()))
	} else {
		log.Info("archive run finished",
			slog.Int("meetings", sum.Meetings),
			slog.Int("skipped", sum.MeetingsSkipped),
			slog.Int("downloaded", sum.FilesDownloaded),
			slog.Int("download_failures", sum.FilesFailed),
			slog.Int("deleted", sum.FilesDeleted),
			slog.Int("delete_failures", sum.DeletesFailed),
		)
	}
	if cerr := p.deps.Catalog.FinishRun(context.WithoutCancel(ctx), rec); cerr != nil {
		log.Warn("catalog run finish failed", slog.String("error", cerr.Error()))
	}
	p.deps.Metrics.Run(trigger, result)
	return sum, err
}

func (p *Pipeline) execute(ctx context.Context, log *slog.Logger, body runBody, sum *Summary) error {
	token, err := p.deps.Tokens.Token(ctx)
	if err != nil {
		if domain.KindOf(err) == 0 {
			err = domain.NewAuthError("acquire token", err)
		}
		return err
	}
	return body(ctx, log, token, sum)
}

// withHost fills a missing host email with the email the meeting was listed under.
func withHost(meetings []zoom.Meeting, userEmail string) []zoom.Meeting {
	for i := range meetings {
		if meetings[i].HostEmail == "" {
			meetings[i].HostEmail = userEmail
		}
	}
	return meetings
}
