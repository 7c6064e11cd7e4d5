package classroom

import (
	"strings"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/timeline"
	"github.com/matzehuels/treereplay/pkg/tree"
)

// Teacher is the logged-in user.
type Teacher struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number"`
}

// Student is a member of the teacher's roster.
type Student struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Number string `json:"number,omitempty"`
}

// Assignment is an argumentation assignment handed out to students.
type Assignment struct {
	ID           int64  `json:"id"`
	Title        string `json:"title,omitempty"`
	Subject      string `json:"subject"`
	Chapter      string `json:"chapter,omitempty"`
	Topic        string `json:"topic,omitempty"`
	StudentCount int    `json:"studentCount,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
}

// DisplayTitle is the heading shown above a replay: the title, else the
// chapter, else the topic.
func (a Assignment) DisplayTitle() string {
	for _, s := range []string{a.Title, a.Chapter, a.Topic} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// CreateAssignmentRequest is the body of an assignment creation.
type CreateAssignmentRequest struct {
	Subject    string   `json:"subject"`
	Chapter    string   `json:"chapter"`
	Topic      string   `json:"topic"`
	StudentIDs []int64  `json:"studentIds"`
	Phases     []string `json:"phases"`
}

// Validate checks the request before it is sent.
func (r CreateAssignmentRequest) Validate() error {
	for _, f := range []struct{ name, value string }{
		{"subject", r.Subject},
		{"chapter", r.Chapter},
		{"topic", r.Topic},
	} {
		if strings.TrimSpace(f.value) == "" {
			return errors.New(errors.ErrCodeInvalidInput, "%s is required", f.name)
		}
		if err := errors.ValidateText(f.name, f.value); err != nil {
			return err
		}
	}
	if len(r.StudentIDs) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "select at least one student")
	}
	return nil
}

// TreeLog is one student's argumentation tree for an assignment.
type TreeLog struct {
	Assignment Assignment          `json:"assignment"`
	Student    Student             `json:"student"`
	Tree       *tree.Node          `json:"treeStructure"`
	Statistics timeline.Statistics `json:"statistics"`
	// ServerStatistics reports whether Statistics came from the API rather
	// than being computed locally.
	ServerStatistics bool `json:"-"`
}

// Title is the subject heading of the replay.
func (l *TreeLog) Title() string {
	if t := l.Assignment.DisplayTitle(); t != "" {
		return t
	}
	if l.Tree != nil {
		return l.Tree.Text()
	}
	return ""
}

// Session is an authenticated classroom login.
type Session struct {
	Teacher Teacher `json:"teacher"`
	// Cookie is the Cookie header value to send on later requests.
	Cookie string `json:"cookie"`
}
