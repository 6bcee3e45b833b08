package game

import "time"

// Phase is one of the four stages of a round.
type Phase string

const (
	PhaseSelecting Phase = "selecting"
	PhaseAnswering Phase = "answering"
	PhaseResult    Phase = "result"
	PhaseVoting    Phase = "voting"
)

// Choice is an agent's answer for the current question.
type Choice string

const (
	ChoiceO   Choice = "O"
	ChoiceX   Choice = "X"
	ChoiceTie Choice = "TIE"
)

// ValidChoice reports whether c is one of the three accepted answers.
func ValidChoice(c Choice) bool {
	return c == ChoiceO || c == ChoiceX || c == ChoiceTie
}

// AgentSession is the ephemeral per-connection state the engine owns while
// an agent is connected. Durable fields mirror the persisted record and are
// written through to the store as side effects.
type AgentSession struct {
	ID       int64
	Nickname string
	Choice   Choice // empty until the agent moves this round
	Comment  string
	X        float64
	Y        float64
	TargetX  float64
	TargetY  float64
	Score    int
	Level    int
}

type currentQuestion struct {
	text       string
	makerID    int64
	questionID int64 // zero when the persist attempt failed
}

// AgentView is the public projection of one agent session.
type AgentView struct {
	ID       int64   `json:"id"`
	Nickname string  `json:"nickname"`
	Score    int     `json:"score"`
	Level    int     `json:"level"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	TargetX  float64 `json:"targetX"`
	TargetY  float64 `json:"targetY"`
	Choice   *Choice `json:"choice"`
	Comment  *string `json:"comment"`
}

// StateView is the full snapshot handed to newly connected agents and
// spectators. PhaseEndsAt is an absolute server timestamp in milliseconds so
// clients compute remaining time independent of network jitter.
type StateView struct {
	Round         int         `json:"round"`
	Phase         Phase       `json:"phase"`
	Question      *string     `json:"question"`
	QuestionMaker *string     `json:"questionMaker"`
	Agents        []AgentView `json:"agents"`
	PhaseEndsAt   int64       `json:"phaseEndsAt"`
}

func (s *AgentSession) view() AgentView {
	view := AgentView{
		ID:       s.ID,
		Nickname: s.Nickname,
		Score:    s.Score,
		Level:    s.Level,
		X:        s.X,
		Y:        s.Y,
		TargetX:  s.TargetX,
		TargetY:  s.TargetY,
	}
	if s.Choice != "" {
		choice := s.Choice
		view.Choice = &choice
	}
	if s.Comment != "" {
		comment := s.Comment
		view.Comment = &comment
	}
	return view
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}
