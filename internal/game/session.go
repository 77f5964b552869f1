package game

import (
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
	"github.com/szdorah/Quiz0r-sub001/internal/broadcast"
	"github.com/szdorah/Quiz0r-sub001/internal/models"
	"github.com/szdorah/Quiz0r-sub001/internal/powerup"
	"github.com/szdorah/Quiz0r-sub001/internal/scoring"
)

// Publisher is the outbound half of the realtime channel. The broadcast
// hub satisfies it; tests supply fakes.
type Publisher interface {
	Publish(code string, role broadcast.Role, ev broadcast.Event)
	PublishToPlayer(code, playerID string, ev broadcast.Event)
	CloseGame(code string)
}

// FinalResult is handed to the certificate pipeline when a game finishes.
type FinalResult struct {
	SessionID uint
	Code      string
	HostID    uint
	QuizTitle string
	Ranking   []RankedPlayer
}

type RankedPlayer struct {
	PlayerID     string
	Name         string
	AvatarColor  string
	AvatarEmoji  string
	Rank         int
	Score        int
	IsActive     bool
	LanguageCode string
	PowerUpsUsed []string
}

var avatarPalette = []string{
	"#e21b3c", "#1368ce", "#d89e00", "#26890c",
	"#864cbf", "#0aa3b1", "#e67e22", "#e84393",
}

type usageKey struct {
	playerID   string
	questionID uint
	powerType  powerup.Type
}

// Session owns all mutable state of one live game. Every operation takes
// the session lock, which is the single-writer discipline the design
// requires: two players answering at once never race, and sessions for
// different game codes share no state at all.
type Session struct {
	mu sync.Mutex

	model     models.GameSession
	quiz      models.Quiz
	questions []models.Question

	players map[string]*models.Player
	budgets map[string]*powerup.Budget
	answers map[uint]map[string]*models.PlayerAnswer
	usages  map[usageKey]*models.PowerUpUsage

	timer    *time.Timer
	timerGen int

	lastReveal *RevealView

	store       Store
	pub         Publisher
	onFinished  func(FinalResult)
	onCancelled func(code string)
	now         func() time.Time
}

// NewSession builds a live session for a quiz. Questions are loaded once
// and immutable for the session's lifetime.
func NewSession(model models.GameSession, quiz models.Quiz, store Store, pub Publisher, onFinished func(FinalResult)) *Session {
	questions := make([]models.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].OrderNum < questions[j].OrderNum
	})

	model.Status = models.GameStatusWaiting
	model.CurrentQuestionIndex = -1

	return &Session{
		model:      model,
		quiz:       quiz,
		questions:  questions,
		players:    make(map[string]*models.Player),
		budgets:    make(map[string]*powerup.Budget),
		answers:    make(map[uint]map[string]*models.PlayerAnswer),
		usages:     make(map[usageKey]*models.PowerUpUsage),
		store:      store,
		pub:        pub,
		onFinished: onFinished,
		now:        time.Now,
	}
}

// OnCancelled registers fn to run whenever the game reaches CANCELLED,
// on the host-cancel path and the fatal-data path alike. The registry's
// evict hangs off it so no cancelled game stays resolvable.
func (s *Session) OnCancelled(fn func(code string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCancelled = fn
}

func (s *Session) Code() string { return s.model.Code }

func (s *Session) HostID() uint { return s.model.HostID }

func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Status
}

// RequestJoin admits or queues a player per the admission rules: an
// active admitted holder of the name wins NameTaken, a previously known
// inactive player is reactivated, a refused player is rejected for good.
func (s *Session) RequestJoin(name, avatarEmoji, languageCode string) (*models.Player, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > 20 {
		return nil, apperr.New(apperr.KindValidation, "name must be 1-20 characters")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model.Status == models.GameStatusFinished || s.model.Status == models.GameStatusCancelled {
		return nil, apperr.New(apperr.KindStateConflict, "game is over")
	}

	for _, p := range s.players {
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		if p.AdmissionStatus == models.AdmissionRefused {
			return nil, apperr.New(apperr.KindPermissionDenied, "you have been refused from this game")
		}
		if p.IsActive {
			return nil, apperr.New(apperr.KindValidation, "name already taken")
		}
		// Rejoin: reactivate the retained player record.
		p.IsActive = true
		s.mirrorPlayer(p)
		s.recheckAllAnsweredLocked()
		s.broadcastStateLocked()
		return p, nil
	}

	status := models.AdmissionPending
	if s.model.AutoAdmit {
		status = models.AdmissionAdmitted
	}
	if languageCode == "" {
		languageCode = "en"
	}

	player := &models.Player{
		ID:              uuid.NewString(),
		GameSessionID:   s.model.ID,
		Name:            name,
		AvatarColor:     avatarPalette[len(s.players)%len(avatarPalette)],
		AvatarEmoji:     avatarEmoji,
		AdmissionStatus: status,
		IsActive:        true,
		LanguageCode:    languageCode,
		JoinedAt:        s.now(),
	}
	s.players[player.ID] = player
	b := powerup.Budget{
		Hint:   s.quiz.HintCount,
		Copy:   s.quiz.CopyAnswerCount,
		Double: s.quiz.DoublePointsCount,
	}
	s.budgets[player.ID] = &b

	s.mirrorPlayer(player)
	s.broadcastStateLocked()
	return player, nil
}

// Admit transitions a pending player to admitted.
func (s *Session) Admit(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "player not found")
	}
	if p.AdmissionStatus == models.AdmissionAdmitted {
		return apperr.New(apperr.KindStateConflict, "player already admitted")
	}
	if p.AdmissionStatus == models.AdmissionRefused {
		return apperr.New(apperr.KindStateConflict, "player was refused")
	}
	p.AdmissionStatus = models.AdmissionAdmitted
	s.mirrorPlayer(p)
	s.recheckAllAnsweredLocked()
	s.broadcastStateLocked()
	return nil
}

// Refuse permanently rejects a player; later join attempts with the same
// name fail with PermissionDenied.
func (s *Session) Refuse(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return apperr.New(apperr.KindNotFound, "player not found")
	}
	if p.AdmissionStatus == models.AdmissionRefused {
		return apperr.New(apperr.KindStateConflict, "player already refused")
	}
	p.AdmissionStatus = models.AdmissionRefused
	p.IsActive = false
	s.mirrorPlayer(p)
	s.recheckAllAnsweredLocked()
	s.broadcastStateLocked()
	return nil
}

// SetConnected toggles connection liveness. A disconnect during a
// question shrinks the eligible set so the remaining players can still
// trigger the early reveal.
func (s *Session) SetConnected(playerID string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok || p.IsActive == active {
		return
	}
	p.IsActive = active
	s.mirrorPlayer(p)
	s.recheckAllAnsweredLocked()
	s.broadcastStateLocked()
}

// HostStart moves WAITING to the first slide.
func (s *Session) HostStart() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model.Status != models.GameStatusWaiting {
		return apperr.New(apperr.KindStateConflict, "game already started")
	}
	return s.advanceLocked()
}

// HostNext advances past a section, a scoreboard, or (as a convenience
// for hosts that skip the reveal tap) a closed question.
func (s *Session) HostNext() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.model.Status {
	case models.GameStatusWaiting, models.GameStatusSection, models.GameStatusScoreboard:
		return s.advanceLocked()
	case models.GameStatusRevealing:
		return s.revealLocked()
	default:
		return apperr.Newf(apperr.KindStateConflict, "cannot advance from %s", s.model.Status)
	}
}

// HostReveal closes the current question if it is still open, then
// scores it and shows the result.
func (s *Session) HostReveal() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.model.Status {
	case models.GameStatusQuestion:
		s.enterRevealingLocked()
		return s.revealLocked()
	case models.GameStatusRevealing:
		return s.revealLocked()
	default:
		return apperr.New(apperr.KindStateConflict, "no active question to reveal")
	}
}

// HostEnd finishes the game early from any gameplay state.
func (s *Session) HostEnd() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.model.Status {
	case models.GameStatusFinished, models.GameStatusCancelled:
		return apperr.New(apperr.KindStateConflict, "game is over")
	}
	s.finishLocked()
	return nil
}

// HostCancel aborts the game, notifies everyone and severs the game's
// connections. No certificates are generated.
func (s *Session) HostCancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.model.Status {
	case models.GameStatusFinished, models.GameStatusCancelled:
		return apperr.New(apperr.KindStateConflict, "game is over")
	}
	s.cancelLocked("cancelled by host")
	return nil
}

// SubmitAnswer records one answer per (player, question). A duplicate
// submission returns the stored answer unchanged so client retries are
// harmless. Elapsed time is computed server-side from questionStartedAt;
// the client-reported value is ignored for scoring.
func (s *Session) SubmitAnswer(playerID string, questionID uint, selected []uint, clientElapsedMs int64) (*models.PlayerAnswer, error) {
	_ = clientElapsedMs // UX feedback only, never trusted for scoring

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "player not found")
	}
	if p.AdmissionStatus != models.AdmissionAdmitted || !p.IsActive {
		return nil, apperr.New(apperr.KindPermissionDenied, "player is not an admitted active participant")
	}

	q := s.currentQuestionLocked()
	if s.model.Status != models.GameStatusQuestion || q == nil || q.ID != questionID {
		return nil, apperr.New(apperr.KindStateConflict, "question is not open for answers")
	}
	if len(selected) == 0 {
		return nil, apperr.New(apperr.KindValidation, "at least one option must be selected")
	}
	valid := make(map[uint]bool, len(q.Options))
	for _, o := range q.Options {
		valid[o.ID] = true
	}
	for _, id := range selected {
		if !valid[id] {
			return nil, apperr.Newf(apperr.KindValidation, "option %d does not belong to the question", id)
		}
	}

	if prior, ok := s.answers[questionID][playerID]; ok {
		return prior, nil
	}

	answer := &models.PlayerAnswer{
		GameSessionID:     s.model.ID,
		PlayerID:          playerID,
		QuestionID:        questionID,
		SelectedOptionIDs: append([]uint(nil), selected...),
		ElapsedMs:         s.elapsedMsLocked(),
		AnsweredAt:        s.now(),
	}
	s.storeAnswerLocked(answer)

	s.pub.Publish(s.model.Code, broadcast.RoleHostControl, broadcast.Event{
		Type: EventAnswerReceived,
		Data: map[string]any{"player_id": playerID, "question_id": questionID},
	})
	s.pub.Publish(s.model.Code, broadcast.RoleHostDisplay, broadcast.Event{
		Type: EventAnswerReceived,
		Data: map[string]any{"answered_count": len(s.answers[questionID])},
	})

	if s.allEligibleAnsweredLocked() {
		s.enterRevealingLocked()
	}
	return answer, nil
}

// UsePowerUp validates, consumes budget and records the usage. The
// returned payload is delivered to the requesting player only.
func (s *Session) UsePowerUp(playerID string, questionID uint, typ powerup.Type, targetPlayerID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !typ.Valid() {
		return nil, apperr.Newf(apperr.KindValidation, "unknown power-up type %q", typ)
	}

	p, ok := s.players[playerID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "player not found")
	}
	if p.AdmissionStatus != models.AdmissionAdmitted || !p.IsActive {
		return nil, apperr.New(apperr.KindPermissionDenied, "player is not an admitted active participant")
	}

	q := s.currentQuestionLocked()
	if s.model.Status != models.GameStatusQuestion || q == nil || q.ID != questionID {
		return nil, apperr.New(apperr.KindStateConflict, "question is not open")
	}

	key := usageKey{playerID: playerID, questionID: questionID, powerType: typ}
	if _, used := s.usages[key]; used {
		return nil, apperr.Newf(apperr.KindStateConflict, "%s already used on this question", typ)
	}

	usage := &models.PowerUpUsage{
		GameSessionID: s.model.ID,
		PlayerID:      playerID,
		QuestionID:    questionID,
		Type:          string(typ),
		UsedAt:        s.now(),
	}
	result := map[string]any{"type": string(typ), "question_id": questionID}

	// Validate before consuming: a rejected use must not cost budget.
	var copyTarget string
	switch typ {
	case powerup.TypeHint:
		if q.Hint == "" {
			return nil, apperr.New(apperr.KindValidation, "question has no hint")
		}
	case powerup.TypeCopy:
		if _, answered := s.answers[questionID][playerID]; answered {
			return nil, apperr.New(apperr.KindStateConflict, "answer already submitted")
		}
		target, err := s.pickCopyTargetLocked(playerID, questionID, targetPlayerID)
		if err != nil {
			return nil, err
		}
		copyTarget = target
	}

	if err := s.budgets[playerID].Consume(typ); err != nil {
		return nil, err
	}

	switch typ {
	case powerup.TypeHint:
		result["hint"] = q.Hint

	case powerup.TypeCopy:
		usage.TargetPlayerID = copyTarget
		result["target_player_id"] = copyTarget
		// The copier commits now; the selection is resolved from the
		// target's final answer at reveal time.
		answer := &models.PlayerAnswer{
			GameSessionID: s.model.ID,
			PlayerID:      playerID,
			QuestionID:    questionID,
			Copied:        true,
			ElapsedMs:     s.elapsedMsLocked(),
			AnsweredAt:    s.now(),
		}
		s.storeAnswerLocked(answer)

	case powerup.TypeDouble:
		// Recorded now, applied as a multiplier at scoring time.
	}

	s.usages[key] = usage
	if err := s.store.SavePowerUpUsage(usage); err != nil {
		log.Printf("game %s: power-up mirror failed: %v", s.model.Code, err)
	}

	if typ == powerup.TypeCopy && s.allEligibleAnsweredLocked() {
		s.enterRevealingLocked()
	}
	return result, nil
}

// RelayMonitor forwards a monitor payload to the host's player-monitor
// view. It bypasses the state machine by design.
func (s *Session) RelayMonitor(eventType string, payload *MonitorPayload) {
	s.pub.Publish(s.model.Code, broadcast.RoleMonitor, broadcast.Event{Type: eventType, Data: payload})
}

// StateFor builds the role projection used for (re)sync of one client.
func (s *Session) StateFor(role broadcast.Role, playerID string) broadcast.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked()
	var data any
	switch role {
	case broadcast.RoleHostControl, broadcast.RoleMonitor:
		data = snap.ForHostControl()
	case broadcast.RoleHostDisplay:
		data = snap.ForHostDisplay()
	default:
		data = snap.ForPlayer(playerID)
	}
	return broadcast.Event{Type: EventGameState, Data: data}
}

// Player returns the retained player record, also for inactive players.
func (s *Session) Player(playerID string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.players[playerID]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "player not found")
	}
	cp := *p
	return &cp, nil
}

// FinalRanking returns all admitted players ordered by score. Inactive
// players keep their historical entry.
func (s *Session) FinalRanking() []RankedPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankingLocked()
}

// --- internals, all assume s.mu is held ---

func (s *Session) currentQuestionLocked() *models.Question {
	idx := s.model.CurrentQuestionIndex
	if idx < 0 || idx >= len(s.questions) {
		return nil
	}
	return &s.questions[idx]
}

func (s *Session) elapsedMsLocked() int64 {
	if s.model.QuestionStartedAt == nil {
		return 0
	}
	return s.now().Sub(*s.model.QuestionStartedAt).Milliseconds()
}

func (s *Session) storeAnswerLocked(answer *models.PlayerAnswer) {
	if s.answers[answer.QuestionID] == nil {
		s.answers[answer.QuestionID] = make(map[string]*models.PlayerAnswer)
	}
	s.answers[answer.QuestionID][answer.PlayerID] = answer
	if err := s.store.SaveAnswer(answer); err != nil {
		log.Printf("game %s: answer mirror failed: %v", s.model.Code, err)
	}
}

// pickCopyTargetLocked resolves the source player for a copy power-up:
// the requested target if they have answered, otherwise any other player
// who has.
func (s *Session) pickCopyTargetLocked(playerID string, questionID uint, targetPlayerID string) (string, error) {
	answered := s.answers[questionID]
	if targetPlayerID != "" {
		if targetPlayerID == playerID {
			return "", apperr.New(apperr.KindValidation, "cannot copy your own answer")
		}
		if a, ok := answered[targetPlayerID]; ok && !a.Copied {
			return targetPlayerID, nil
		}
		return "", apperr.New(apperr.KindStateConflict, "target player has not answered yet")
	}
	for id, a := range answered {
		if id != playerID && !a.Copied {
			return id, nil
		}
	}
	return "", apperr.New(apperr.KindStateConflict, "no other player has answered yet")
}

func (s *Session) eligibleLocked() []*models.Player {
	var out []*models.Player
	for _, p := range s.players {
		if p.AdmissionStatus == models.AdmissionAdmitted && p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) allEligibleAnsweredLocked() bool {
	q := s.currentQuestionLocked()
	if s.model.Status != models.GameStatusQuestion || q == nil {
		return false
	}
	eligible := s.eligibleLocked()
	if len(eligible) == 0 {
		return false
	}
	answered := s.answers[q.ID]
	for _, p := range eligible {
		if _, ok := answered[p.ID]; !ok {
			return false
		}
	}
	return true
}

// recheckAllAnsweredLocked closes the question early when an admission or
// disconnect shrank the eligible set below the answered set. A departing
// player must never stall the reveal.
func (s *Session) recheckAllAnsweredLocked() {
	if s.allEligibleAnsweredLocked() {
		s.enterRevealingLocked()
	}
}

// advanceLocked moves to the next slide: a section interstitial, an open
// question, or the end of the game.
func (s *Session) advanceLocked() error {
	next := s.model.CurrentQuestionIndex + 1
	if next >= len(s.questions) {
		s.finishLocked()
		return nil
	}

	q := &s.questions[next]
	s.model.CurrentQuestionIndex = next
	s.lastReveal = nil

	if q.Type == models.QuestionTypeSection {
		s.model.Status = models.GameStatusSection
		s.model.QuestionStartedAt = nil
		s.mirrorSessionLocked()
		s.broadcastStateLocked()
		return nil
	}

	if len(q.Options) == 0 {
		// Question data is unusable; an ambiguous half-open game is
		// worse than a cancelled one.
		log.Printf("game %s: question %d has no options, cancelling", s.model.Code, q.ID)
		s.cancelLocked("question data missing")
		return apperr.New(apperr.KindStateConflict, "question data missing, game cancelled")
	}

	now := s.now()
	s.model.Status = models.GameStatusQuestion
	s.model.QuestionStartedAt = &now
	s.startTimerLocked(time.Duration(q.TimeLimit) * time.Second)
	s.mirrorSessionLocked()
	s.broadcastStateLocked()
	return nil
}

func (s *Session) startTimerLocked(d time.Duration) {
	s.cancelTimerLocked()
	gen := s.timerGen
	s.timer = time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A superseded timer must never fire a stale transition.
		if gen != s.timerGen || s.model.Status != models.GameStatusQuestion {
			return
		}
		s.enterRevealingLocked()
	})
}

func (s *Session) cancelTimerLocked() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// enterRevealingLocked closes the question: no more answers, timer dead.
func (s *Session) enterRevealingLocked() {
	if s.model.Status != models.GameStatusQuestion {
		return
	}
	s.cancelTimerLocked()
	s.model.Status = models.GameStatusRevealing
	s.mirrorSessionLocked()
	s.broadcastStateLocked()
}

// revealLocked scores the closed question and shows the result. Copy
// selections are resolved against the source player's final answer here,
// and the double-points multiplier is applied after the speed and
// partial-credit computation.
func (s *Session) revealLocked() error {
	if s.model.Status != models.GameStatusRevealing {
		return apperr.New(apperr.KindStateConflict, "question is not closed yet")
	}
	q := s.currentQuestionLocked()
	if q == nil {
		return apperr.New(apperr.KindStateConflict, "no current question")
	}

	correct := q.CorrectOptionIDs()
	distribution := make(map[uint]int)

	for playerID, answer := range s.answers[q.ID] {
		p := s.players[playerID]
		if p == nil || p.AdmissionStatus != models.AdmissionAdmitted {
			continue
		}

		selection := answer.SelectedOptionIDs
		if answer.Copied {
			selection = s.resolveCopyLocked(playerID, q.ID)
			answer.SelectedOptionIDs = selection
		}
		for _, id := range selection {
			distribution[id]++
		}

		c, w := scoring.SelectionBreakdown(selection, correct)
		var points int
		switch q.Type {
		case models.QuestionTypeMultiSelect:
			points = scoring.MultiSelect(q.Points, q.TimeLimit, answer.ElapsedMs, len(correct), c, w)
		default:
			points = scoring.SingleSelect(q.Points, q.TimeLimit, answer.ElapsedMs, c == len(correct) && w == 0)
		}
		doubled := s.usages[usageKey{playerID: playerID, questionID: q.ID, powerType: powerup.TypeDouble}] != nil
		points = powerup.ApplyDouble(points, doubled)

		answer.Points = points
		answer.IsCorrect = points > 0
		answer.IsFullyCorrect = scoring.IsFullyCorrect(selection, correct)
		p.TotalScore += points

		if err := s.store.SaveAnswer(answer); err != nil {
			log.Printf("game %s: answer mirror failed: %v", s.model.Code, err)
		}
		s.mirrorPlayer(p)
	}

	s.lastReveal = &RevealView{
		QuestionID:       q.ID,
		CorrectOptionIDs: correct,
		Distribution:     distribution,
	}
	s.model.Status = models.GameStatusScoreboard
	s.mirrorSessionLocked()
	s.broadcastStateLocked()
	return nil
}

// resolveCopyLocked follows the copy chain to the source player's final
// selection. Copying a copier yields nothing, which matches the rule
// that only real answers may be copied.
func (s *Session) resolveCopyLocked(playerID string, questionID uint) []uint {
	key := usageKey{playerID: playerID, questionID: questionID, powerType: powerup.TypeCopy}
	usage := s.usages[key]
	if usage == nil || usage.TargetPlayerID == "" {
		return nil
	}
	source := s.answers[questionID][usage.TargetPlayerID]
	if source == nil || source.Copied {
		return nil
	}
	return append([]uint(nil), source.SelectedOptionIDs...)
}

func (s *Session) finishLocked() {
	s.cancelTimerLocked()
	s.model.Status = models.GameStatusFinished
	s.model.QuestionStartedAt = nil
	s.mirrorSessionLocked()

	ranking := s.rankingLocked()
	snap := s.snapshotLocked()
	finished := broadcast.Event{Type: EventGameFinished, Data: snap.ForHostDisplay()}
	s.pub.Publish(s.model.Code, broadcast.RoleHostControl, broadcast.Event{Type: EventGameFinished, Data: snap.ForHostControl()})
	s.pub.Publish(s.model.Code, broadcast.RoleHostDisplay, finished)
	for _, p := range s.players {
		s.pub.PublishToPlayer(s.model.Code, p.ID, broadcast.Event{Type: EventGameFinished, Data: snap.ForPlayer(p.ID)})
	}

	if s.onFinished != nil {
		result := FinalResult{
			SessionID: s.model.ID,
			Code:      s.model.Code,
			HostID:    s.model.HostID,
			QuizTitle: s.quiz.Title,
			Ranking:   ranking,
		}
		// Certificates run in their own concurrency domain; gameplay
		// never waits on them.
		go s.onFinished(result)
	}
}

func (s *Session) cancelLocked(reason string) {
	s.cancelTimerLocked()
	s.model.Status = models.GameStatusCancelled
	s.model.QuestionStartedAt = nil
	s.mirrorSessionLocked()

	ev := broadcast.Event{Type: EventGameCancelled, Data: map[string]any{"reason": reason}}
	s.pub.Publish(s.model.Code, broadcast.RoleHostControl, ev)
	s.pub.Publish(s.model.Code, broadcast.RoleHostDisplay, ev)
	s.pub.Publish(s.model.Code, broadcast.RoleMonitor, ev)
	for _, p := range s.players {
		s.pub.PublishToPlayer(s.model.Code, p.ID, ev)
	}
	s.pub.CloseGame(s.model.Code)
	if s.onCancelled != nil {
		s.onCancelled(s.model.Code)
	}
}

func (s *Session) rankingLocked() []RankedPlayer {
	var ranked []RankedPlayer
	for _, p := range s.players {
		if p.AdmissionStatus != models.AdmissionAdmitted {
			continue
		}
		var powers []string
		for key := range s.usages {
			if key.playerID == p.ID {
				powers = append(powers, string(key.powerType))
			}
		}
		sort.Strings(powers)
		ranked = append(ranked, RankedPlayer{
			PlayerID:     p.ID,
			Name:         p.Name,
			AvatarColor:  p.AvatarColor,
			AvatarEmoji:  p.AvatarEmoji,
			Score:        p.TotalScore,
			IsActive:     p.IsActive,
			LanguageCode: p.LanguageCode,
			PowerUpsUsed: powers,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Name < ranked[j].Name
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

func (s *Session) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Code:              s.model.Code,
		Status:            s.model.Status,
		QuestionIndex:     s.model.CurrentQuestionIndex,
		TotalQuestions:    len(s.questions),
		QuestionStartedAt: s.model.QuestionStartedAt,
		Reveal:            s.lastReveal,
	}

	snap.EligibleCount = len(s.eligibleLocked())

	var currentAnswers map[string]*models.PlayerAnswer
	if q := s.currentQuestionLocked(); q != nil {
		qv := &QuestionView{
			ID:        q.ID,
			Type:      q.Type,
			Text:      q.Text,
			TimeLimit: q.TimeLimit,
			Points:    q.Points,
			HasHint:   q.Hint != "",
		}
		for _, o := range q.Options {
			correct := o.IsCorrect
			qv.Options = append(qv.Options, OptionView{
				ID:        o.ID,
				Text:      o.Text,
				Color:     o.Color,
				IsCorrect: &correct,
			})
		}
		snap.Question = qv

		currentAnswers = s.answers[q.ID]
		snap.AnsweredCount = len(currentAnswers)
	}

	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := s.players[id]
		_, answered := currentAnswers[id]
		snap.Players = append(snap.Players, PlayerSnapshot{
			ID:              p.ID,
			Name:            p.Name,
			AvatarColor:     p.AvatarColor,
			AvatarEmoji:     p.AvatarEmoji,
			TotalScore:      p.TotalScore,
			AdmissionStatus: p.AdmissionStatus,
			IsActive:        p.IsActive,
			Answered:        answered,
			Budget:          *s.budgets[p.ID],
		})
	}

	for _, r := range s.rankingLocked() {
		snap.Scoreboard = append(snap.Scoreboard, ScoreboardEntry{
			Rank:        r.Rank,
			PlayerID:    r.PlayerID,
			Name:        r.Name,
			AvatarColor: r.AvatarColor,
			AvatarEmoji: r.AvatarEmoji,
			TotalScore:  r.Score,
			IsActive:    r.IsActive,
		})
	}
	return snap
}

// broadcastStateLocked derives every role projection from one canonical
// snapshot and publishes them.
func (s *Session) broadcastStateLocked() {
	snap := s.snapshotLocked()
	s.pub.Publish(s.model.Code, broadcast.RoleHostControl, broadcast.Event{Type: EventGameState, Data: snap.ForHostControl()})
	s.pub.Publish(s.model.Code, broadcast.RoleHostDisplay, broadcast.Event{Type: EventGameState, Data: snap.ForHostDisplay()})
	for _, p := range s.players {
		s.pub.PublishToPlayer(s.model.Code, p.ID, broadcast.Event{Type: EventGameState, Data: snap.ForPlayer(p.ID)})
	}
}

func (s *Session) mirrorSessionLocked() {
	s.model.UpdatedAt = s.now()
	if err := s.store.SaveSession(&s.model); err != nil {
		log.Printf("game %s: session mirror failed: %v", s.model.Code, err)
	}
}

func (s *Session) mirrorPlayer(p *models.Player) {
	if err := s.store.SavePlayer(p); err != nil {
		log.Printf("game %s: player mirror failed: %v", s.model.Code, err)
	}
}
