package timeline

import (
	"strconv"
	"time"

	"github.com/matzehuels/treereplay/pkg/tree"
)

// Statistics summarizes who contributed what to a tree.
type Statistics struct {
	TotalNodes       int           `json:"totalNodes"`
	StudentNodes     int           `json:"studentNodes"`
	AINodes          int           `json:"aiNodes"`
	TeacherNodes     int           `json:"teacherNodes"`
	TotalEvidences   int           `json:"totalEvidences"`
	StudentEvidences int           `json:"studentEvidences"`
	AIEvidences      int           `json:"aiEvidences"`
	FirstActivity    time.Time     `json:"firstActivity,omitzero"`
	LastActivity     time.Time     `json:"lastActivity,omitzero"`
	Duration         time.Duration `json:"-"`
	TotalDuration    string        `json:"totalDuration"`
}

// Summarize computes statistics over an activity list. The list is assumed
// to be sorted, as returned by [Extract].
func Summarize(activities []Activity) Statistics {
	var s Statistics
	for _, a := range activities {
		s.TotalNodes++
		switch a.ActionBy {
		case tree.CreatorStudent:
			s.StudentNodes++
		case tree.CreatorTeacher:
			s.TeacherNodes++
		default:
			s.AINodes++
		}
		for _, ev := range a.Evidences {
			s.TotalEvidences++
			if ev.CreatedBy == tree.CreatorStudent {
				s.StudentEvidences++
			} else {
				s.AIEvidences++
			}
		}
	}
	if n := len(activities); n > 0 {
		s.FirstActivity = activities[0].Timestamp
		s.LastActivity = activities[n-1].Timestamp
		s.Duration = s.LastActivity.Sub(s.FirstActivity)
	}
	s.TotalDuration = FormatDuration(s.Duration)
	return s
}

// FormatDuration renders a duration at minute resolution, e.g. "1h 5m",
// "12m" or "0m".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	if h > 0 {
		return strconv.Itoa(h) + "h " + strconv.Itoa(m) + "m"
	}
	return strconv.Itoa(m) + "m"
}
