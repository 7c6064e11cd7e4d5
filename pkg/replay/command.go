package replay

import (
	"strings"

	"github.com/matzehuels/treereplay/pkg/errors"
	"github.com/matzehuels/treereplay/pkg/timeline"
)

// Command names accepted by [Session.Apply].
const (
	CmdPlay   = "play"
	CmdPause  = "pause"
	CmdToggle = "toggle"
	CmdNext   = "next"
	CmdPrev   = "prev"
	CmdSeek   = "seek"
	CmdSpeed  = "speed"
)

// Command is a playback instruction as sent by a remote viewer.
type Command struct {
	Cmd   string         `json:"cmd"`
	Index int            `json:"index,omitempty"`
	Speed timeline.Speed `json:"speed,omitempty"`
}

// Apply runs a command against the session's player.
func (s *Session) Apply(c Command) error {
	switch strings.ToLower(c.Cmd) {
	case CmdPlay:
		s.player.Play()
	case CmdPause:
		s.player.Pause()
	case CmdToggle:
		s.player.Toggle()
	case CmdNext:
		s.player.Next()
	case CmdPrev:
		s.player.Prev()
	case CmdSeek:
		s.player.Seek(c.Index)
	case CmdSpeed:
		sp, err := timeline.ParseSpeed(string(c.Speed))
		if err != nil {
			return err
		}
		return s.player.SetSpeed(sp)
	default:
		return errors.New(errors.ErrCodeInvalidCommand, "unknown command %q", c.Cmd)
	}
	return nil
}
