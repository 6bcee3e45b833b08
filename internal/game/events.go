package game

// Outbound event names. Agent events go through Broadcast/NotifyAgent;
// ROUND_RESULT and AGENT_COMMENTED are spectator-only derivatives.
const (
	EventAgentJoined           = "AGENT_JOINED"
	EventAgentLeft             = "AGENT_LEFT"
	EventQuestionMakerSelected = "QUESTION_MAKER_SELECTED"
	EventRequestQuestion       = "REQUEST_QUESTION"
	EventQuestion              = "QUESTION"
	EventCommentingPhase       = "COMMENTING_PHASE"
	EventAgentMoved            = "AGENT_MOVED"
	EventAgentComment          = "AGENT_COMMENT"
	EventResult                = "RESULT"
	EventVotingPhase           = "VOTING_PHASE"
	EventGameState             = "GAME_STATE"
	EventRoundResult           = "ROUND_RESULT"
	EventAgentCommented        = "AGENT_COMMENTED"
)

// JoinedAgent carries the public fields announced when an agent connects.
type JoinedAgent struct {
	ID       int64   `json:"id"`
	Nickname string  `json:"nickname"`
	Score    int     `json:"score"`
	Level    int     `json:"level"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type AgentJoinedPayload struct {
	Agent JoinedAgent `json:"agent"`
}

type AgentLeftPayload struct {
	AgentID int64 `json:"agentId"`
}

type MakerSelectedPayload struct {
	AgentID  int64  `json:"agentId"`
	Nickname string `json:"nickname"`
	Round    int    `json:"round"`
}

type RequestQuestionPayload struct {
	Instruction string `json:"instruction"`
	TimeLimit   int    `json:"time_limit"`
}

type QuestionPayload struct {
	Question      string  `json:"question"`
	QuestionMaker *string `json:"question_maker"`
	Round         int     `json:"round"`
	TimeLimit     int     `json:"time_limit"`
}

type CommentingPayload struct {
	TimeLimit int `json:"time_limit"`
}

type MovedPayload struct {
	AgentID int64   `json:"agentId"`
	Choice  Choice  `json:"choice"`
	TargetX float64 `json:"targetX"`
	TargetY float64 `json:"targetY"`
}

type CommentPayload struct {
	AgentID  int64  `json:"agentId"`
	Nickname string `json:"nickname"`
	Message  string `json:"message"`
}

// ResultPayload includes both absolute scores and per-agent deltas so
// clients can animate changes without recomputing them.
type ResultPayload struct {
	OCount         int           `json:"o_count"`
	XCount         int           `json:"x_count"`
	MajorityChoice Choice        `json:"majority_choice"`
	Scores         map[int64]int `json:"scores"`
	ScoreChanges   map[int64]int `json:"score_changes"`
	QuestionID     *int64        `json:"question_id,omitempty"`
}

type VotingPayload struct {
	TimeLimit  int    `json:"time_limit"`
	QuestionID *int64 `json:"questionId,omitempty"`
}

type RoundResultPayload struct {
	OCount         int    `json:"oCount"`
	XCount         int    `json:"xCount"`
	MajorityChoice Choice `json:"majorityChoice"`
	QuestionID     int64  `json:"questionId"`
}

type AgentCommentedPayload struct {
	AgentID int64  `json:"agentId"`
	Message string `json:"message"`
}
