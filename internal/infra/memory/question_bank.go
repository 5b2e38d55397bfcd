package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"campus-quiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches a subject's full question bank from a backing store.
type BankLoader interface {
	LoadBank(ctx context.Context, subject string) (domain.SubjectBank, error)
	ListSubjects(ctx context.Context) ([]domain.SubjectInfo, error)
}

// QuestionBank caches subject banks with TTL to avoid repeated DB hits and
// samples a fresh size-capped quiz set from the cached bank per attempt.
type QuestionBank struct {
	loader     BankLoader
	ttl        time.Duration
	sampleSize int
	clock      func() time.Time
	sf         singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedBank
}

type cachedBank struct {
	bank      domain.SubjectBank
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration, sampleSize int) *QuestionBank {
	if sampleSize <= 0 {
		sampleSize = 50
	}
	return &QuestionBank{
		loader:     loader,
		ttl:        ttl,
		sampleSize: sampleSize,
		clock:      time.Now,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:      make(map[string]cachedBank),
	}
}

func (b *QuestionBank) ListSubjects(ctx context.Context) ([]domain.SubjectInfo, error) {
	return b.loader.ListSubjects(ctx)
}

// FetchQuizSet returns a freshly sampled question subset for one attempt.
// The underlying bank is cached; the sample is not.
func (b *QuestionBank) FetchQuizSet(ctx context.Context, subject string) (domain.QuizSet, error) {
	bank, err := b.getBank(ctx, subject)
	if err != nil {
		return domain.QuizSet{}, err
	}
	return domain.QuizSet{
		Subject:   bank.Subject,
		Questions: b.sample(bank.Questions),
	}, nil
}

func (b *QuestionBank) getBank(ctx context.Context, subject string) (domain.SubjectBank, error) {
	now := b.clock()

	b.mu.RLock()
	if entry, ok := b.cache[subject]; ok && entry.expiresAt.After(now) {
		b.mu.RUnlock()
		return entry.bank, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do(subject, func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if entry, ok := b.cache[subject]; ok && entry.expiresAt.After(now) {
			b.mu.RUnlock()
			return entry.bank, nil
		}
		b.mu.RUnlock()

		bank, err := b.loader.LoadBank(ctx, subject)
		if err != nil {
			return domain.SubjectBank{}, err
		}

		b.mu.Lock()
		b.cache[subject] = cachedBank{
			bank:      bank,
			expiresAt: now.Add(b.ttlWithJitter()),
		}
		b.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return domain.SubjectBank{}, err
	}
	return result.(domain.SubjectBank), nil
}

// sample shuffles a copy of the bank and keeps at most sampleSize questions.
func (b *QuestionBank) sample(questions []domain.Question) []domain.Question {
	picked := make([]domain.Question, len(questions))
	copy(picked, questions)

	b.rndMu.Lock()
	b.rnd.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	b.rndMu.Unlock()

	if len(picked) > b.sampleSize {
		picked = picked[:b.sampleSize]
	}
	return picked
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticBankLoader struct {
	banks map[string]domain.SubjectBank
}

func NewStaticBankLoader(banks map[string]domain.SubjectBank) *StaticBankLoader {
	return &StaticBankLoader{banks: banks}
}

func (l *StaticBankLoader) LoadBank(_ context.Context, subject string) (domain.SubjectBank, error) {
	if bank, ok := l.banks[subject]; ok {
		return bank, nil
	}
	return domain.SubjectBank{}, domain.ErrSubjectNotFound
}

func (l *StaticBankLoader) ListSubjects(_ context.Context) ([]domain.SubjectInfo, error) {
	infos := make([]domain.SubjectInfo, 0, len(l.banks))
	for _, bank := range l.banks {
		infos = append(infos, domain.SubjectInfo{
			Subject:     bank.Subject,
			Icon:        bank.Icon,
			Description: bank.Description,
			Color:       bank.Color,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Subject < infos[j].Subject })
	return infos, nil
}
