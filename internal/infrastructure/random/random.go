package random

import (
	"math/rand/v2"
	"sync"
	"time"

	"quality-vision/internal/domain/port"
)

// Source потокобезопасный PCG-генератор с воспроизводимым зерном.
type Source struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New создаёт генератор. Зерно 0 означает случайное зерно от времени.
func New(seed uint64) *Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Source{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 возвращает число из [0, 1)
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

var _ port.RandomSource = (*Source)(nil)
