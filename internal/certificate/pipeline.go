// Package certificate renders the post-game artifacts: one award image
// per player and one leaderboard summary for the host. Generation is
// asynchronous, bounded and retryable; its outcome never affects the
// finished game's scores.
package certificate

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/szdorah/Quiz0r-sub001/internal/apperr"
	"github.com/szdorah/Quiz0r-sub001/internal/broadcast"
	"github.com/szdorah/Quiz0r-sub001/internal/game"
	"github.com/szdorah/Quiz0r-sub001/internal/models"
)

// Store persists certificate records.
type Store interface {
	Create(cert *models.Certificate) error
	Update(cert *models.Certificate) error
	ByID(id string) (*models.Certificate, error)
	BySession(sessionID uint) ([]models.Certificate, error)
}

// Renderer draws one artifact to disk.
type Renderer interface {
	RenderHost(path string, job HostJob) error
	RenderPlayer(path string, job PlayerJob) error
}

// MessageSource produces the personalized congratulation text.
type MessageSource interface {
	Congratulation(player game.RankedPlayer, quizTitle string) (string, error)
}

// Publisher reports batch progress back to the host.
type Publisher interface {
	Publish(code string, role broadcast.Role, ev broadcast.Event)
}

type HostJob struct {
	QuizTitle string
	Code      string
	Ranking   []game.RankedPlayer
}

type PlayerJob struct {
	QuizTitle string
	Code      string
	Player    game.RankedPlayer
	Message   string
}

const (
	defaultMaxInFlight = 5
	defaultRetryDelay  = 2 * time.Second
	maxAttempts        = 2 // one automatic retry
)

// Pipeline generates certificate batches for finished games. It runs in
// its own concurrency domain: at most maxInFlight renders at a time, so
// a finishing game never competes with live game traffic.
type Pipeline struct {
	store       Store
	renderer    Renderer
	messages    MessageSource
	pub         Publisher
	outputDir   string
	maxInFlight int
	retryDelay  time.Duration

	// onBatchDone fires when every certificate of a game has reached a
	// terminal state; the registry eviction hangs off it.
	onBatchDone func(code string)

	mu      sync.Mutex
	results map[uint]game.FinalResult
}

func NewPipeline(store Store, renderer Renderer, messages MessageSource, pub Publisher, outputDir string, onBatchDone func(code string)) *Pipeline {
	return &Pipeline{
		store:       store,
		renderer:    renderer,
		messages:    messages,
		pub:         pub,
		outputDir:   outputDir,
		maxInFlight: defaultMaxInFlight,
		retryDelay:  defaultRetryDelay,
		onBatchDone: onBatchDone,
		results:     make(map[uint]game.FinalResult),
	}
}

// EnqueueGame creates pending certificates for the host and for every
// admitted, still-connected player, then starts the batch in the
// background. Called from the orchestrator's finish hook.
func (p *Pipeline) EnqueueGame(result game.FinalResult) {
	p.mu.Lock()
	p.results[result.SessionID] = result
	p.mu.Unlock()

	var batch []*models.Certificate

	host := &models.Certificate{
		ID:            uuid.NewString(),
		GameSessionID: result.SessionID,
		Type:          models.CertificateTypeHost,
		Status:        models.CertificateStatusPending,
	}
	batch = append(batch, host)

	for _, rp := range result.Ranking {
		if !rp.IsActive {
			continue
		}
		playerID := rp.PlayerID
		batch = append(batch, &models.Certificate{
			ID:            uuid.NewString(),
			GameSessionID: result.SessionID,
			Type:          models.CertificateTypePlayer,
			PlayerID:      &playerID,
			Status:        models.CertificateStatusPending,
		})
	}

	for _, cert := range batch {
		if err := p.store.Create(cert); err != nil {
			log.Printf("certificates %s: create failed: %v", result.Code, err)
		}
	}

	go p.runBatch(result, batch)
}

// Regenerate resets the listed certificates to pending and re-runs them.
func (p *Pipeline) Regenerate(sessionID uint, certificateIDs []string) error {
	p.mu.Lock()
	result, ok := p.results[sessionID]
	p.mu.Unlock()
	if !ok {
		return apperr.New(apperr.KindNotFound, "game ranking is no longer available")
	}

	var batch []*models.Certificate
	for _, id := range certificateIDs {
		cert, err := p.store.ByID(id)
		if err != nil {
			return apperr.Wrap(apperr.KindNotFound, "certificate not found", err)
		}
		if cert.GameSessionID != sessionID {
			return apperr.New(apperr.KindValidation, "certificate does not belong to this game")
		}
		cert.Status = models.CertificateStatusPending
		cert.ErrorMessage = ""
		if err := p.store.Update(cert); err != nil {
			return err
		}
		batch = append(batch, cert)
	}

	go p.runBatch(result, batch)
	return nil
}

// runBatch drains one batch with bounded concurrency and reports
// progress after every terminal certificate.
func (p *Pipeline) runBatch(result game.FinalResult, batch []*models.Certificate) {
	start := time.Now()
	sem := make(chan struct{}, p.maxInFlight)
	var wg sync.WaitGroup

	var mu sync.Mutex
	completed, failed := 0, 0

	for _, cert := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(cert *models.Certificate) {
			defer wg.Done()
			defer func() { <-sem }()

			err := p.process(cert, result)

			mu.Lock()
			if err != nil {
				failed++
			} else {
				completed++
			}
			done := completed + failed
			elapsed := time.Since(start)
			var eta float64
			if remaining := len(batch) - done; remaining > 0 && done > 0 {
				perCert := elapsed.Seconds() / float64(done)
				eta = perCert * float64(remaining)
			}
			progress := map[string]any{
				"total":       len(batch),
				"completed":   completed,
				"failed":      failed,
				"eta_seconds": eta,
			}
			mu.Unlock()

			p.pub.Publish(result.Code, broadcast.RoleHostControl, broadcast.Event{
				Type: game.EventCertProgress,
				Data: progress,
			})
		}(cert)
	}
	wg.Wait()

	log.Printf("certificates %s: batch done (%d completed, %d failed)", result.Code, completed, failed)
	if p.onBatchDone != nil {
		p.onBatchDone(result.Code)
	}
}

// process drives one certificate to a terminal state. The retry policy
// is an explicit bounded loop: one automatic retry with a short backoff
// for transient failures only, then failed. RetryCount grows by at most
// one per run.
func (p *Pipeline) process(cert *models.Certificate, result game.FinalResult) error {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			cert.RetryCount++
			time.Sleep(p.retryDelay)
		}

		cert.Status = models.CertificateStatusGenerating
		if err := p.store.Update(cert); err != nil {
			log.Printf("certificate %s: status update failed: %v", cert.ID, err)
		}

		lastErr = p.generate(cert, result)
		if lastErr == nil {
			cert.Status = models.CertificateStatusCompleted
			cert.ErrorMessage = ""
			if err := p.store.Update(cert); err != nil {
				log.Printf("certificate %s: status update failed: %v", cert.ID, err)
			}
			return nil
		}
		log.Printf("certificate %s: attempt %d failed: %v", cert.ID, attempt+1, lastErr)

		// Only transient failures earn the retry; a certificate that
		// cannot ever render again fails immediately.
		if apperr.KindOf(lastErr) != apperr.KindTransient {
			break
		}
	}

	cert.Status = models.CertificateStatusFailed
	cert.ErrorMessage = lastErr.Error()
	if err := p.store.Update(cert); err != nil {
		log.Printf("certificate %s: status update failed: %v", cert.ID, err)
	}
	return lastErr
}

func (p *Pipeline) generate(cert *models.Certificate, result game.FinalResult) error {
	path := filepath.Join(p.outputDir, result.Code, cert.ID+".png")

	if cert.Type == models.CertificateTypeHost {
		if err := p.renderer.RenderHost(path, HostJob{
			QuizTitle: result.QuizTitle,
			Code:      result.Code,
			Ranking:   result.Ranking,
		}); err != nil {
			return apperr.Wrap(apperr.KindTransient, "host certificate render failed", err)
		}
		cert.FilePath = path
		return nil
	}

	player, ok := findRanked(result.Ranking, cert.PlayerID)
	if !ok {
		return apperr.New(apperr.KindNotFound, "player missing from final ranking")
	}

	message, err := p.messages.Congratulation(player, result.QuizTitle)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "congratulation message failed", err)
	}
	cert.AIMessage = message

	if err := p.renderer.RenderPlayer(path, PlayerJob{
		QuizTitle: result.QuizTitle,
		Code:      result.Code,
		Player:    player,
		Message:   message,
	}); err != nil {
		return apperr.Wrap(apperr.KindTransient, "player certificate render failed", err)
	}
	cert.FilePath = path
	return nil
}

func findRanked(ranking []game.RankedPlayer, playerID *string) (game.RankedPlayer, bool) {
	if playerID == nil {
		return game.RankedPlayer{}, false
	}
	for _, rp := range ranking {
		if rp.PlayerID == *playerID {
			return rp, true
		}
	}
	return game.RankedPlayer{}, false
}

// StatusSummary aggregates the batch state for the polling endpoint.
type StatusSummary struct {
	Total        int                  `json:"total"`
	Pending      int                  `json:"pending"`
	Generating   int                  `json:"generating"`
	Completed    int                  `json:"completed"`
	Failed       int                  `json:"failed"`
	Certificates []models.Certificate `json:"certificates"`
}

// Status reports the certificate batch of one game.
func (p *Pipeline) Status(sessionID uint) (*StatusSummary, error) {
	certs, err := p.store.BySession(sessionID)
	if err != nil {
		return nil, err
	}
	summary := &StatusSummary{Total: len(certs), Certificates: certs}
	for _, c := range certs {
		switch c.Status {
		case models.CertificateStatusPending:
			summary.Pending++
		case models.CertificateStatusGenerating:
			summary.Generating++
		case models.CertificateStatusCompleted:
			summary.Completed++
		case models.CertificateStatusFailed:
			summary.Failed++
		}
	}
	return summary, nil
}

// Find returns the certificate of the given type for a player (nil
// playerID for the host certificate).
func (p *Pipeline) Find(sessionID uint, certType string, playerID *string) (*models.Certificate, error) {
	certs, err := p.store.BySession(sessionID)
	if err != nil {
		return nil, err
	}
	for i := range certs {
		c := &certs[i]
		if c.Type != certType {
			continue
		}
		if certType == models.CertificateTypePlayer {
			if playerID == nil || c.PlayerID == nil || *c.PlayerID != *playerID {
				continue
			}
		}
		return c, nil
	}
	return nil, apperr.Newf(apperr.KindNotFound, "no %s certificate for this game", certType)
}
