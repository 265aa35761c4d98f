package domain

import "github.com/shopspring/decimal"

// AggregateStats acumula resultados por Strategy Instance. Solo se actualiza
// cuando una Position llega a estado terminal.
type AggregateStats struct {
	Wins        int
	Losses      int
	Stopped     int
	Emergencies int
	// Forced cuenta resoluciones por timeout. Se excluyen de Wins/Losses y de
	// TotalPnL: sin evidencia real no sabemos qué pasó con ese dinero.
	Forced      int
	Aborted     int
	TotalTrades int
	TotalPnL    decimal.Decimal
}

// Record incorpora una Position terminal a las estadísticas.
func (s *AggregateStats) Record(p *Position) {
	switch p.Result {
	case ResultAborted:
		s.Aborted++
		return // nunca hubo trade
	case ResultForced:
		s.Forced++
		s.TotalTrades++
		return
	case ResultWin:
		s.Wins++
	case ResultLoss:
		s.Losses++
	case ResultStopped:
		s.Stopped++
		if p.RealizedPnL.IsNegative() {
			s.Losses++
		} else {
			s.Wins++
		}
	case ResultTarget:
		s.Wins++
	case ResultEmergency:
		s.Emergencies++
		if p.RealizedPnL.IsNegative() {
			s.Losses++
		} else {
			s.Wins++
		}
	}
	s.TotalTrades++
	s.TotalPnL = s.TotalPnL.Add(p.RealizedPnL)
}

// WinRate devuelve el porcentaje de wins sobre trades decididos (0-100).
func (s AggregateStats) WinRate() float64 {
	decided := s.Wins + s.Losses
	if decided == 0 {
		return 0
	}
	return float64(s.Wins) / float64(decided) * 100
}
