package call

// Affordances описывает действия, доступные пользователю для текущей
// пары (статус, направление). Вычисляется заново при каждом изменении
// статуса и нигде не хранится.
type Affordances struct {
	CanAccept bool // подтвердить входящий
	CanReject bool // отклонить входящий
	CanCancel bool // отменить исходящий до ответа
	CanHangup bool // завершить установленный звонок
}

// ComputeAffordances возвращает доступные действия как чистую функцию
// от статуса и направления звонка. Направление перепроверяется, хотя
// достижимые статусы уже различают входящие и исходящие звонки.
func ComputeAffordances(status Status, direction Direction) Affordances {
	switch {
	case status == StatusIncoming && direction == DirectionIncoming:
		return Affordances{CanAccept: true, CanReject: true}
	case (status == StatusOutgoing || status == StatusRinging) && direction == DirectionOutgoing:
		return Affordances{CanCancel: true}
	case status == StatusAccepted || status == StatusInCall:
		return Affordances{CanHangup: true}
	default:
		return Affordances{}
	}
}
