package moderation

// ActionEscalator переводит репутацию в наказание. Две полосы:
// score ≤ Ban — бан, иначе score ≤ Mute — мут, иначе ничего.
// Чистая функция от счёта, без памяти о прошлых наказаниях
// (повторы подавляет Enforcer).
type ActionEscalator struct {
	Mute int
	Ban  int
}

// Decide возвращает решение для новой репутации.
func (e ActionEscalator) Decide(score int) ActionDecision {
	switch {
	case score <= e.Ban:
		return ActionDecision{Action: ActionBan, ThresholdCrossed: e.Ban, ResultingScore: score}
	case score <= e.Mute:
		return ActionDecision{Action: ActionMute, ThresholdCrossed: e.Mute, ResultingScore: score}
	default:
		return ActionDecision{Action: ActionNone, ResultingScore: score}
	}
}
