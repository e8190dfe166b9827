package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/ashureev/devpulse/internal/analysis"
	"github.com/ashureev/devpulse/internal/domain"
	"github.com/ashureev/devpulse/internal/store"
)

// SessionAggregator folds processed activities into their session document.
type SessionAggregator struct {
	repo    store.SessionRepository
	quantum time.Duration
	retry   store.RetryPolicy
}

// NewSessionAggregator creates a SessionAggregator. A non-positive quantum
// falls back to DefaultQuantum.
func NewSessionAggregator(repo store.SessionRepository, quantum time.Duration, retry store.RetryPolicy) *SessionAggregator {
	if quantum <= 0 {
		quantum = DefaultQuantum
	}
	return &SessionAggregator{repo: repo, quantum: quantum, retry: retry}
}

// Apply folds p into the session keyed by p.SessionID, creating it on the
// first event of its bucket. Lost races are retried from a fresh read until
// the retry budget is spent.
func (a *SessionAggregator) Apply(ctx context.Context, p domain.ProcessedActivity) (Outcome, error) {
	var outcome Outcome
	err := store.Transact(ctx, a.retry, func(ctx context.Context) error {
		current, err := a.repo.GetSession(ctx, p.SessionID)
		if err != nil {
			return err
		}
		if current == nil {
			outcome = OutcomeCreated
			return a.repo.CreateSession(ctx, NewSession(p))
		}
		outcome = OutcomeUpdated
		FoldSession(current, p, a.quantum)
		return a.repo.UpdateSession(ctx, current)
	})
	if err != nil {
		return 0, fmt.Errorf("apply activity to session %s: %w", p.SessionID, err)
	}
	return outcome, nil
}

// NewSession builds the session created by the first event of a bucket.
// It starts with zero durations and a zero score.
func NewSession(p domain.ProcessedActivity) *domain.Session {
	languages := []string{}
	if lang := p.Language(); lang != "" {
		languages = append(languages, lang)
	}
	return &domain.Session{
		SessionID:     p.SessionID,
		UserID:        p.UserID,
		ProjectName:   p.ProjectName,
		StartTime:     p.Timestamp,
		Activities:    []domain.ProcessedActivity{p},
		FilesModified: []string{p.FilePath},
		Languages:     languages,
	}
}

// FoldSession applies one subsequent event to s in place: it appends the
// activity, credits one quantum to total and to productive or wasted time,
// extends the file and language sets and recomputes the score.
func FoldSession(s *domain.Session, p domain.ProcessedActivity, quantum time.Duration) {
	q := quantum.Milliseconds()

	s.Activities = append(s.Activities, p)
	end := p.Timestamp
	s.EndTime = &end

	s.TotalDuration += q
	if p.IsProductive {
		s.ProductiveTime += q
	} else {
		s.WastedTime += q
	}

	if !s.HasFile(p.FilePath) {
		s.FilesModified = append(s.FilesModified, p.FilePath)
	}
	if lang := p.Language(); lang != "" && !s.HasLanguage(lang) {
		s.Languages = append(s.Languages, lang)
	}

	s.ProductivityScore = analysis.Score(
		time.Duration(s.TotalDuration)*time.Millisecond,
		time.Duration(s.ProductiveTime)*time.Millisecond,
	)
}
