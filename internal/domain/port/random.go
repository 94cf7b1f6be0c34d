package port

// RandomSource источник случайных чисел детектора
type RandomSource interface {
	// Float64 возвращает число из [0, 1)
	Float64() float64
}
