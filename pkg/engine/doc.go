// Package engine связывает компоненты движка звонков: сигнальный
// канал, автомат статуса звонка, аудио конвейер и видео тракт.
//
// Engine обслуживает один активный звонок. Локальные действия
// пользователя (Initiate, Accept, Reject, Cancel, Hangup) и удаленные
// сигнальные события транслируются в переходы автомата; переходы
// запускают и останавливают захват и воспроизведение. Событие с чужим
// идентификатором звонка не меняет ничего.
//
// Teardown выполняется на любом терминальном переходе: идемпотентно
// снимаются таймеры, освобождаются устройства, удаляются scratch
// файлы. Запросы reject/cancel/end уходят best-effort - освобождение
// локальных ресурсов никогда не ждет подтверждения сети.
package engine
