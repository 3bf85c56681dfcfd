package topics

import (
	"math/rand"
	"sync"
	"time"
)

const (
	topicCount = 3

	// Cached picks survive for a day, but a fresh set is drawn for
	// requests arriving after the daily study window opens.
	cacheTTL    = 24 * time.Hour
	refreshHour = 9
)

// themePool holds the rotation of proposed essay themes.
var themePool = []string{
	"A persistência da violência contra a mulher na sociedade brasileira",
	"Desafios para a valorização de comunidades e povos tradicionais no Brasil",
	"O estigma associado às doenças mentais na sociedade brasileira",
	"Democratização do acesso ao cinema no Brasil",
	"Manipulação do comportamento do usuário pelo controle de dados na internet",
	"Caminhos para combater a intolerância religiosa no Brasil",
	"Publicidade infantil em questão no Brasil",
	"Os desafios da educação digital nas escolas públicas brasileiras",
	"Combate ao trabalho análogo à escravidão no Brasil contemporâneo",
	"Impactos da inteligência artificial no mercado de trabalho brasileiro",
	"Caminhos para reduzir a evasão escolar no ensino médio",
	"O desafio do descarte irregular de lixo eletrônico no Brasil",
	"Alternativas para a crise hídrica nas grandes cidades brasileiras",
	"A importância da vacinação para a saúde pública no Brasil",
	"Invisibilidade da população em situação de rua no Brasil",
	"Desafios para o enfrentamento do analfabetismo funcional no Brasil",
	"O papel do esporte na inclusão social de jovens brasileiros",
	"Caminhos para garantir a segurança alimentar no Brasil",
	"Os efeitos das fake news no processo democrático brasileiro",
	"Valorização do patrimônio histórico e cultural brasileiro",
}

// Service hands out numbered essay themes, drawing a new random set
// once per day.
type Service struct {
	mu       sync.Mutex
	cached   []string
	cachedAt time.Time

	now  func() time.Time
	rand *rand.Rand
}

func NewService() *Service {
	return &Service{
		now:  time.Now,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Topics returns the current set of themes. With force true the cache
// is bypassed and a new set is drawn.
func (s *Service) Topics(force bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !force && s.cached != nil && !s.stale(now) {
		return s.cached
	}

	s.cached = s.pick()
	s.cachedAt = now
	return s.cached
}

func (s *Service) stale(now time.Time) bool {
	if now.Sub(s.cachedAt) >= cacheTTL {
		return true
	}
	// Picks made before today's refresh hour expire once it passes.
	refresh := time.Date(now.Year(), now.Month(), now.Day(), refreshHour, 0, 0, 0, now.Location())
	return s.cachedAt.Before(refresh) && !now.Before(refresh)
}

func (s *Service) pick() []string {
	idx := s.rand.Perm(len(themePool))
	out := make([]string, 0, topicCount)
	for i := 0; i < topicCount && i < len(idx); i++ {
		out = append(out, themePool[idx[i]])
	}
	return out
}
