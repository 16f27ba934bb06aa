// Package call реализует конечный автомат жизненного цикла звонка.
//
// Статус звонка меняется только через FSM: локальные действия
// пользователя (инициация, подтверждение, отклонение, завершение) и
// удаленные сигнальные события транслируются в события автомата.
// События с чужим идентификатором звонка фильтруются до автомата.
//
// # Состояния
//
//	idle -> {outgoing, incoming} -> {ringing, accepted} -> in_call -> {ended, failed}
//	incoming -> {accepted, ended} напрямую
//
// ringing достижим только для исходящих звонков. ended и failed
// терминальны: после них движок освобождает все медиа ресурсы.
//
// Доступные пользователю действия (accept/reject/cancel/hangup)
// вычисляются чистой функцией ComputeAffordances от пары
// (статус, направление) и нигде не хранятся отдельно.
package call
