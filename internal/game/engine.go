// Package game implements the round/phase state machine and scoring engine
// for the agent arena quiz show. One Engine instance owns all mutable
// session state; persistence and transport are injected ports.
package game

import (
	"context"
	"log"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"agent-arena/server/internal/storage"
)

// Engine drives the selecting → answering → result → voting loop, tracks
// connected agent sessions, computes scoring, and emits events through the
// notifier. All handlers run to completion under one mutex; exactly one
// phase timer is outstanding at any time.
type Engine struct {
	store     storage.Store
	notifier  Notifier
	logger    *log.Logger
	clock     Clock
	scheduler Scheduler
	cfg       Config

	mu          sync.Mutex
	rng         *rand.Rand
	roundNumber int
	phase       Phase
	question    *currentQuestion
	agents      map[int64]*AgentSession
	phaseEndsAt time.Time
	roundStart  time.Time
	timer       Timer
	timerGen    uint64
	running     bool
}

// New constructs an engine with the given collaborators. Zero-value deps
// fall back to the system clock, runtime timers, and the default logger.
func New(store storage.Store, notifier Notifier, cfg Config, deps Deps) *Engine {
	deps = deps.withDefaults()
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &Engine{
		store:     store,
		notifier:  notifier,
		logger:    deps.Logger,
		clock:     deps.Clock,
		scheduler: deps.Scheduler,
		rng:       deps.RNG,
		cfg:       cfg.normalized(),
		phase:     PhaseSelecting,
		agents:    make(map[int64]*AgentSession),
	}
}

// Initialize seeds the round counter from the latest persisted round so
// numbering continues across restarts.
func (e *Engine) Initialize(ctx context.Context) {
	latest, err := e.store.LatestRoundNumber(ctx)
	if err != nil {
		e.logger.Printf("[engine] failed to read latest round number: %v", err)
		latest = 0
	}
	e.mu.Lock()
	e.roundNumber = latest
	e.mu.Unlock()
	e.logger.Printf("[engine] initialized at round %d", latest)
}

// HandleAgentConnect registers an authenticated agent. A second connection
// for the same id replaces the previous session. Starting threshold is
// checked after registration.
func (e *Engine) HandleAgentConnect(ctx context.Context, agent storage.Agent) {
	e.mu.Lock()
	if _, exists := e.agents[agent.ID]; exists {
		e.logger.Printf("[engine] agent %s reconnected, replacing session", agent.Nickname)
	}
	spawn := randomSpawnPosition(e.rng, e.positionsLocked())
	sess := &AgentSession{
		ID:       agent.ID,
		Nickname: agent.Nickname,
		X:        spawn.x,
		Y:        spawn.y,
		TargetX:  spawn.x,
		TargetY:  spawn.y,
		Score:    agent.Score,
		Level:    agent.Level,
	}
	e.agents[agent.ID] = sess
	joined := AgentJoinedPayload{Agent: JoinedAgent{
		ID:       agent.ID,
		Nickname: agent.Nickname,
		Score:    agent.Score,
		Level:    agent.Level,
		X:        sess.X,
		Y:        sess.Y,
	}}
	state := e.stateLocked()
	total := len(e.agents)
	e.mu.Unlock()

	if err := e.store.UpdateAgentConnection(ctx, agent.ID, true); err != nil {
		e.logger.Printf("[engine] failed to mark agent %d connected: %v", agent.ID, err)
	}

	e.notifier.Broadcast(EventAgentJoined, joined)
	e.notifier.NotifyAgent(agent.ID, EventGameState, state)
	e.notifier.NotifySpectators(EventGameState, state)
	e.logger.Printf("[engine] agent %s connected (%d total)", agent.Nickname, total)

	e.tryStartRound()
}

// HandleAgentDisconnect removes the session. The current round continues;
// absentees are simply excluded from tallies.
func (e *Engine) HandleAgentDisconnect(ctx context.Context, agentID int64) {
	e.mu.Lock()
	sess, ok := e.agents[agentID]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.agents, agentID)
	remaining := len(e.agents)
	state := e.stateLocked()
	e.mu.Unlock()

	if err := e.store.UpdateAgentConnection(ctx, agentID, false); err != nil {
		e.logger.Printf("[engine] failed to mark agent %d disconnected: %v", agentID, err)
	}

	e.notifier.Broadcast(EventAgentLeft, AgentLeftPayload{AgentID: agentID})
	e.notifier.NotifySpectators(EventGameState, state)
	e.logger.Printf("[engine] agent %s disconnected (%d remaining)", sess.Nickname, remaining)
}

// HandleHeartbeat refreshes the advisory liveness timestamp. The stale
// sweep that acts on it is owned by the app wiring, not the engine.
func (e *Engine) HandleHeartbeat(ctx context.Context, agentID int64) {
	if err := e.store.UpdateAgentHeartbeat(ctx, agentID); err != nil {
		e.logger.Printf("[engine] failed to record heartbeat for agent %d: %v", agentID, err)
	}
}

// HandleQuestionSubmit accepts the maker's question during selecting. The
// first accepted submission wins; later or out-of-phase submissions are
// dropped with a log line.
func (e *Engine) HandleQuestionSubmit(ctx context.Context, agentID int64, text string) {
	e.mu.Lock()
	if e.phase != PhaseSelecting {
		e.logger.Printf("[engine] question submitted in wrong phase")
		e.mu.Unlock()
		return
	}
	if e.question != nil {
		e.logger.Printf("[engine] question already submitted")
		e.mu.Unlock()
		return
	}
	sess, ok := e.agents[agentID]
	if !ok {
		e.mu.Unlock()
		return
	}
	q := &currentQuestion{text: text, makerID: agentID}
	e.question = q
	round := e.roundNumber
	nickname := sess.Nickname
	e.mu.Unlock()

	creator := agentID
	id, err := e.store.CreateQuestion(ctx, storage.NewQuestion{
		Text:           text,
		CreatorAgentID: &creator,
		RoundNumber:    round,
	})
	if err != nil {
		e.logger.Printf("[engine] failed to persist question: %v", err)
	} else {
		e.mu.Lock()
		q.questionID = id
		e.mu.Unlock()
	}
	if err := e.store.UpdateAgentStats(ctx, agentID, storage.StatDelta{QuestionsAsked: 1}); err != nil {
		e.logger.Printf("[engine] failed to update stats for agent %d: %v", agentID, err)
	}

	e.logger.Printf("[engine] question submitted by %s: %s", nickname, text)
}

// HandleMove records an agent's answer during answering. Last write wins;
// the display target is derived from the choice with jitter.
func (e *Engine) HandleMove(agentID int64, choice Choice) {
	if !ValidChoice(choice) {
		e.logger.Printf("[engine] invalid choice %q from agent %d", choice, agentID)
		return
	}
	e.mu.Lock()
	if e.phase != PhaseAnswering {
		e.logger.Printf("[engine] move submitted in wrong phase")
		e.mu.Unlock()
		return
	}
	sess, ok := e.agents[agentID]
	if !ok {
		e.mu.Unlock()
		return
	}
	sess.Choice = choice
	target := choiceTarget(e.rng, choice)
	sess.TargetX = target.x
	sess.TargetY = target.y
	payload := MovedPayload{AgentID: agentID, Choice: choice, TargetX: target.x, TargetY: target.y}
	nickname := sess.Nickname
	state := e.stateLocked()
	e.mu.Unlock()

	e.notifier.Broadcast(EventAgentMoved, payload)
	e.notifier.NotifySpectators(EventGameState, state)
	e.logger.Printf("[engine] %s chose %s", nickname, choice)
}

// HandleComment stores and broadcasts an agent comment during answering or
// result. Messages are capped at ten sentence-like segments.
func (e *Engine) HandleComment(agentID int64, message string) {
	e.mu.Lock()
	if e.phase != PhaseAnswering && e.phase != PhaseResult {
		e.logger.Printf("[engine] comment submitted in wrong phase")
		e.mu.Unlock()
		return
	}
	sess, ok := e.agents[agentID]
	if !ok {
		e.mu.Unlock()
		return
	}
	message = limitSentences(message, maxCommentSentences)
	sess.Comment = message
	payload := CommentPayload{AgentID: agentID, Nickname: sess.Nickname, Message: message}
	state := e.stateLocked()
	e.mu.Unlock()

	e.notifier.Broadcast(EventAgentComment, payload)
	e.notifier.NotifySpectators(EventAgentCommented, AgentCommentedPayload{AgentID: agentID, Message: message})
	e.notifier.NotifySpectators(EventGameState, state)
	e.logger.Printf("[engine] %s commented: %s", payload.Nickname, message)
}

// ForceNextRound cancels any pending phase timer and starts the next round
// immediately. Exposed to the admin surface.
func (e *Engine) ForceNextRound() {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.timerGen++
	gen := e.timerGen
	e.running = true
	e.mu.Unlock()
	e.startNextRound(gen)
}

// GameState returns the full snapshot with no side effects.
func (e *Engine) GameState() StateView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

// ConnectedAgentCount reports the number of live agent sessions.
func (e *Engine) ConnectedAgentCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.agents)
}

func (e *Engine) tryStartRound() {
	e.mu.Lock()
	if e.running || len(e.agents) < e.cfg.MinAgents {
		e.mu.Unlock()
		return
	}
	e.timerGen++
	gen := e.timerGen
	e.running = true
	e.mu.Unlock()
	e.startNextRound(gen)
}

// startNextRound is the selecting-phase entry. It increments the round,
// resets sessions, respawns positions, and picks the question maker.
func (e *Engine) startNextRound(gen uint64) {
	e.mu.Lock()
	if gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	if len(e.agents) == 0 {
		e.logger.Printf("[engine] no agents connected, skipping round")
		e.running = false
		e.timer = nil
		e.mu.Unlock()
		return
	}

	e.roundNumber++
	e.phase = PhaseSelecting
	e.question = nil
	e.roundStart = e.clock.Now()

	ids := e.sortedIDsLocked()
	positions := make([]position, 0, len(ids))
	for _, id := range ids {
		sess := e.agents[id]
		sess.Choice = ""
		sess.Comment = ""
		spawn := randomSpawnPosition(e.rng, positions)
		positions = append(positions, spawn)
		sess.X = spawn.x
		sess.Y = spawn.y
		sess.TargetX = spawn.x
		sess.TargetY = spawn.y
	}

	makerID := ids[e.rng.Intn(len(ids))]
	maker := e.agents[makerID]
	round := e.roundNumber
	nickname := maker.Nickname

	e.scheduleLocked(e.cfg.SelectingBudget, func(g uint64) { e.selectingExpired(g, makerID) })
	state := e.stateLocked()
	e.mu.Unlock()

	e.logger.Printf("[engine] round %d: %s is the question maker", round, nickname)
	e.notifier.Broadcast(EventQuestionMakerSelected, MakerSelectedPayload{
		AgentID:  makerID,
		Nickname: nickname,
		Round:    round,
	})
	e.notifier.NotifySpectators(EventGameState, state)
	e.notifier.NotifyAgent(makerID, EventRequestQuestion, RequestQuestionPayload{
		Instruction: "Create an interesting O/X quiz question",
		TimeLimit:   int(e.cfg.SelectingBudget.Seconds()),
	})
}

func (e *Engine) selectingExpired(gen uint64, makerID int64) {
	e.mu.Lock()
	if gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	hasQuestion := e.question != nil
	round := e.roundNumber
	e.mu.Unlock()

	if !hasQuestion {
		e.logger.Printf("[engine] no question submitted, using fallback")
		e.useFallbackQuestion(gen, makerID, round)
	}
	e.startAnsweringPhase(gen)
}

// useFallbackQuestion synthesizes a question from the fixed pool. The maker
// keeps attribution only if the agent record still exists in the store.
func (e *Engine) useFallbackQuestion(gen uint64, makerID int64, round int) {
	ctx := context.Background()

	e.mu.Lock()
	text := fallbackQuestions[e.rng.Intn(len(fallbackQuestions))]
	e.mu.Unlock()

	creator := &makerID
	if _, err := e.store.GetAgentByID(ctx, makerID); err != nil {
		creator = nil
	}
	id, err := e.store.CreateQuestion(ctx, storage.NewQuestion{
		Text:           text,
		CreatorAgentID: creator,
		RoundNumber:    round,
	})
	if err != nil {
		e.logger.Printf("[engine] failed to persist fallback question: %v", err)
	}

	e.mu.Lock()
	if gen == e.timerGen && e.question == nil {
		e.question = &currentQuestion{text: text, makerID: makerID, questionID: id}
	}
	e.mu.Unlock()
	e.logger.Printf("[engine] fallback question used: %s", text)
}

func (e *Engine) startAnsweringPhase(gen uint64) {
	e.mu.Lock()
	if gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	if e.question == nil {
		// Should never happen: the selecting timeout guarantees a
		// question. Recover by skipping to result with empty tallies.
		e.logger.Printf("[engine] defect: answering phase entered without a question, skipping to result")
		e.mu.Unlock()
		e.calculateResult(gen)
		return
	}

	e.phase = PhaseAnswering
	q := *e.question
	var makerNick *string
	if maker, ok := e.agents[q.makerID]; ok {
		nick := maker.Nickname
		makerNick = &nick
	}
	round := e.roundNumber

	e.scheduleLocked(e.cfg.AnsweringBudget, e.calculateResult)
	state := e.stateLocked()
	e.mu.Unlock()

	e.notifier.Broadcast(EventQuestion, QuestionPayload{
		Question:      q.text,
		QuestionMaker: makerNick,
		Round:         round,
		TimeLimit:     int(e.cfg.AnsweringBudget.Seconds()),
	})
	e.notifier.Broadcast(EventCommentingPhase, CommentingPayload{
		TimeLimit: int(e.cfg.CommentBudget.Seconds()),
	})
	e.notifier.NotifySpectators(EventGameState, state)
	e.logger.Printf("[engine] answering phase started: %s", q.text)
}

// calculateResult is the result-phase entry: tally, apply the minority-wins
// rule, score, persist the round, and broadcast.
func (e *Engine) calculateResult(gen uint64) {
	ctx := context.Background()

	e.mu.Lock()
	if gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseResult

	oCount, xCount := 0, 0
	for _, sess := range e.agents {
		switch sess.Choice {
		case ChoiceO:
			oCount++
		case ChoiceX:
			xCount++
		}
	}
	tie := oCount == xCount
	outcome := ChoiceTie
	if !tie {
		if oCount < xCount {
			outcome = ChoiceO
		} else {
			outcome = ChoiceX
		}
	}

	scoreChanges := make(map[int64]int)
	var writes []func(context.Context) error
	for _, id := range e.sortedIDsLocked() {
		sess := e.agents[id]
		agentID := id
		if tie {
			if sess.Choice != ChoiceTie {
				continue
			}
			scoreChanges[agentID] = tieBetPoints
			sess.Score += tieBetPoints
			writes = append(writes,
				func(ctx context.Context) error { return e.store.UpdateAgentScore(ctx, agentID, tieBetPoints) },
				func(ctx context.Context) error {
					return e.store.UpdateAgentStats(ctx, agentID, storage.StatDelta{Wins: 1})
				},
			)
			continue
		}
		switch {
		case sess.Choice == outcome:
			scoreChanges[agentID] = winPoints
			sess.Score += winPoints
			writes = append(writes,
				func(ctx context.Context) error { return e.store.UpdateAgentScore(ctx, agentID, winPoints) },
				func(ctx context.Context) error {
					return e.store.UpdateAgentStats(ctx, agentID, storage.StatDelta{Wins: 1})
				},
			)
		case sess.Choice != "":
			scoreChanges[agentID] = -lossPenalty
			sess.Score -= lossPenalty
			writes = append(writes,
				func(ctx context.Context) error { return e.store.UpdateAgentScore(ctx, agentID, -lossPenalty) },
				func(ctx context.Context) error {
					return e.store.UpdateAgentStats(ctx, agentID, storage.StatDelta{Losses: 1})
				},
			)
		}
	}

	if e.question != nil {
		makerID := e.question.makerID
		if maker, ok := e.agents[makerID]; ok {
			scoreChanges[makerID] += makerBonus
			maker.Score += makerBonus
			writes = append(writes, func(ctx context.Context) error {
				return e.store.UpdateAgentScore(ctx, makerID, makerBonus)
			})
		}
	}

	var roundRecord *storage.NewRound
	var questionID *int64
	if e.question != nil && e.question.questionID != 0 {
		qid := e.question.questionID
		questionID = &qid
		makerID := e.question.makerID
		label := string(outcome)
		if tie {
			label = "T"
		}
		roundRecord = &storage.NewRound{
			RoundNumber:     e.roundNumber,
			QuestionID:      qid,
			MakerAgentID:    &makerID,
			OCount:          oCount,
			XCount:          xCount,
			Outcome:         label,
			DurationSeconds: int(e.clock.Now().Sub(e.roundStart).Seconds()),
		}
	}

	scores := make(map[int64]int, len(e.agents))
	for id, sess := range e.agents {
		scores[id] = sess.Score
	}
	payload := ResultPayload{
		OCount:         oCount,
		XCount:         xCount,
		MajorityChoice: outcome,
		Scores:         scores,
		ScoreChanges:   scoreChanges,
		QuestionID:     questionID,
	}

	e.scheduleLocked(e.cfg.ResultBudget, e.startVotingPhase)
	state := e.stateLocked()
	e.mu.Unlock()

	// Best-effort write-through: a failed persist never blocks the round.
	for _, write := range writes {
		if err := write(ctx); err != nil {
			e.logger.Printf("[engine] failed to persist score update: %v", err)
		}
	}
	if roundRecord != nil {
		if err := e.store.CreateRound(ctx, *roundRecord); err != nil {
			e.logger.Printf("[engine] failed to save round: %v", err)
		}
	}

	e.notifier.Broadcast(EventResult, payload)
	spectatorResult := RoundResultPayload{OCount: oCount, XCount: xCount, MajorityChoice: outcome}
	if questionID != nil {
		spectatorResult.QuestionID = *questionID
	}
	e.notifier.NotifySpectators(EventRoundResult, spectatorResult)
	e.notifier.NotifySpectators(EventGameState, state)
	e.logger.Printf("[engine] result: O=%d, X=%d, winning(minority)=%s", oCount, xCount, outcome)
}

func (e *Engine) startVotingPhase(gen uint64) {
	e.mu.Lock()
	if gen != e.timerGen {
		e.mu.Unlock()
		return
	}
	e.phase = PhaseVoting
	var questionID *int64
	if e.question != nil && e.question.questionID != 0 {
		qid := e.question.questionID
		questionID = &qid
	}
	e.scheduleLocked(e.cfg.VotingBudget, e.startNextRound)
	state := e.stateLocked()
	e.mu.Unlock()

	e.notifier.Broadcast(EventVotingPhase, VotingPayload{
		TimeLimit:  int(e.cfg.VotingBudget.Seconds()),
		QuestionID: questionID,
	})
	e.notifier.NotifySpectators(EventGameState, state)
	e.logger.Printf("[engine] voting phase started")
}

// scheduleLocked supersedes any pending timer and arms the next phase
// deadline. The generation counter keeps a superseded timer from firing
// into a newer phase. Caller holds e.mu.
func (e *Engine) scheduleLocked(d time.Duration, fn func(gen uint64)) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timerGen++
	gen := e.timerGen
	e.running = true
	e.phaseEndsAt = e.clock.Now().Add(d)
	e.timer = e.scheduler.AfterFunc(d, func() { fn(gen) })
}

func (e *Engine) stateLocked() StateView {
	agents := make([]AgentView, 0, len(e.agents))
	for _, id := range e.sortedIDsLocked() {
		agents = append(agents, e.agents[id].view())
	}
	state := StateView{
		Round:       e.roundNumber,
		Phase:       e.phase,
		Agents:      agents,
		PhaseEndsAt: millis(e.phaseEndsAt),
	}
	if e.question != nil {
		text := e.question.text
		state.Question = &text
		if maker, ok := e.agents[e.question.makerID]; ok {
			nick := maker.Nickname
			state.QuestionMaker = &nick
		}
	}
	return state
}

func (e *Engine) positionsLocked() []position {
	positions := make([]position, 0, len(e.agents))
	for _, sess := range e.agents {
		positions = append(positions, position{x: sess.X, y: sess.Y})
	}
	return positions
}

func (e *Engine) sortedIDsLocked() []int64 {
	ids := make([]int64, 0, len(e.agents))
	for id := range e.agents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// limitSentences caps a message at max sentence-like segments, splitting on
// '.', '!', and '?' and dropping empty pieces.
func limitSentences(message string, max int) string {
	segments := strings.FieldsFunc(message, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	sentences := segments[:0]
	for _, segment := range segments {
		if strings.TrimSpace(segment) != "" {
			sentences = append(sentences, segment)
		}
	}
	if len(sentences) <= max {
		return message
	}
	return strings.Join(sentences[:max], ". ") + "."
}
