package attendance

import (
	"sort"
	"strings"
	"time"

	"zoomarchive/internal/zoom"
)

// NotAvailable replaces absent participant fields in reports.
const NotAvailable = "N/A"

// Aggregate is one unique participant with every session merged.
type Aggregate struct {
	ID        string
	Name      string
	Email     string
	Seconds   int
	Minutes   int
	FirstJoin time.Time
	LastLeave time.Time
	Sessions  int
	Guest     bool
}

// Merge groups sessions by participant and sums their durations. A session
// joins an existing participant when its trimmed, lower-cased email or its
// participant id matches one already seen, so a rejoin that lost its email
// still lands on the same row. Sessions with neither fall back to user id,
// then display name. Minutes are the floor of total seconds over 60. A
// participant is a guest unless one of its sessions carries hostID.
func Merge(sessions []zoom.Participant, hostID string) []Aggregate {
	index := map[string]int{}
	var out []Aggregate
	for _, s := range sessions {
		keys := sessionKeys(s)
		i, ok := lookup(index, keys)
		if !ok {
			out = append(out, Aggregate{
				ID:    orNA(s.ID),
				Name:  orNA(strings.TrimSpace(s.Name)),
				Email: orNA(strings.TrimSpace(s.UserEmail)),
				Guest: true,
			})
			i = len(out) - 1
		}
		for _, k := range keys {
			if _, taken := index[k]; !taken {
				index[k] = i
			}
		}

		a := &out[i]
		a.Seconds += max(s.Duration, 0)
		a.Sessions++
		if s.ID != "" && s.ID == hostID {
			a.Guest = false
		}
		if a.ID == NotAvailable && s.ID != "" {
			a.ID = s.ID
		}
		if a.Name == NotAvailable && strings.TrimSpace(s.Name) != "" {
			a.Name = strings.TrimSpace(s.Name)
		}
		if a.Email == NotAvailable && strings.TrimSpace(s.UserEmail) != "" {
			a.Email = strings.TrimSpace(s.UserEmail)
		}
		if !s.JoinTime.IsZero() && (a.FirstJoin.IsZero() || s.JoinTime.Before(a.FirstJoin)) {
			a.FirstJoin = s.JoinTime
		}
		if s.LeaveTime.After(a.LastLeave) {
			a.LastLeave = s.LeaveTime
		}
	}

	for i := range out {
		out[i].Minutes = out[i].Seconds / 60
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].FirstJoin.Equal(out[j].FirstJoin) {
			return out[i].FirstJoin.Before(out[j].FirstJoin)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// sessionKeys lists the identities a session can be matched on, strongest first.
func sessionKeys(s zoom.Participant) []string {
	var keys []string
	if email := strings.ToLower(strings.TrimSpace(s.UserEmail)); email != "" {
		keys = append(keys, "email:"+email)
	}
	if s.ID != "" {
		keys = append(keys, "id:"+s.ID)
	}
	if len(keys) > 0 {
		return keys
	}
	if s.UserID != "" {
		return []string{"user:" + s.UserID}
	}
	return []string{"name:" + strings.ToLower(strings.TrimSpace(s.Name))}
}

func lookup(index map[string]int, keys []string) (int, bool) {
	for _, k := range keys {
		if i, ok := index[k]; ok {
			return i, true
		}
	}
	return 0, false
}

func orNA(s string) string {
	if s == "" {
		return NotAvailable
	}
	return s
}
