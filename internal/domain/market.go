package domain

import "time"

// MarketRef describe un mercado time-boxed de resolución binaria/múltiple.
// Inmutable una vez descubierto: los mercados no cambian, solo expiran.
type MarketRef struct {
	ID        string
	Slug      string
	Question  string
	Tokens    []OutcomeToken
	CloseTime time.Time
}

// OutcomeToken es un lado negociable del mercado ("Up"/"Down", o uno de
// los N buckets de un evento multi-outcome).
type OutcomeToken struct {
	TokenID string
	Label   string
}

// Expired devuelve true si el mercado ya pasó su hora de cierre.
func (m MarketRef) Expired(now time.Time) bool {
	return !m.CloseTime.IsZero() && now.After(m.CloseTime)
}

// TimeToClose devuelve cuánto falta para el cierre. Negativo si ya cerró.
func (m MarketRef) TimeToClose(now time.Time) time.Duration {
	return m.CloseTime.Sub(now)
}

// Token busca el OutcomeToken con el tokenID dado.
func (m MarketRef) Token(tokenID string) (OutcomeToken, bool) {
	for _, t := range m.Tokens {
		if t.TokenID == tokenID {
			return t, true
		}
	}
	return OutcomeToken{}, false
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del market ID como fallback.
func TruncateQuestion(question, marketID string, maxLen int) string {
	q := question
	if q == "" {
		if len(marketID) > 20 {
			q = marketID[:20] + "..."
		} else {
			q = marketID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
